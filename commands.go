package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/refcrawl/browser"
	"github.com/lukemcguire/refcrawl/crawler"
	"github.com/lukemcguire/refcrawl/report"
	"github.com/lukemcguire/refcrawl/result"
	"github.com/lukemcguire/refcrawl/tui"
)

// RunCmd audits the configured blog.
type RunCmd struct {
	TUI    bool   `name:"tui" help:"Show live progress in a terminal UI."`
	Format string `name:"format" enum:"text,json,csv" default:"text" help:"Console output format: text, json or csv."`
	NoSave bool   `name:"no-save" help:"Do not write report files."`
}

// Run executes the audit, saves the reports and prints the results.
func (r *RunCmd) Run(a *app) (err error) {
	engine, err := browser.New(a.cfg.Browser())
	if err != nil {
		return fmt.Errorf("start page engine: %w", err)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close page engine: %w", closeErr))
		}
	}()

	var progressCh chan crawler.CrawlEvent
	if r.TUI {
		progressCh = make(chan crawler.CrawlEvent, 100)
	}

	c, err := crawler.New(a.cfg.Crawler(), engine, a.logger, progressCh)
	if err != nil {
		return err
	}
	auditor := crawler.NewAuditor(c, nil)

	var rep *result.Report
	if r.TUI {
		rep, err = runTUI(a.ctx, auditor, progressCh)
	} else {
		rep, err = auditor.Run(a.ctx)
	}
	if err != nil {
		return err
	}

	if !r.NoSave {
		now := time.Now()
		paths, saveErr := report.Save(a.cfg.ReportDir, now, report.FromReport(rep, a.cfg.MaxRetries, now))
		if saveErr != nil {
			return fmt.Errorf("save report: %w", saveErr)
		}
		a.logger.Info().Str("html", paths.HTML).Str("json", paths.JSON).Str("markdown", paths.Markdown).Msg("report saved")
	}

	if !r.TUI {
		if err := writeReport(a, r.Format, rep); err != nil {
			return err
		}
	}

	if rep.HasBrokenStatus() {
		return errBrokenLinks
	}
	return nil
}

func runTUI(ctx context.Context, runner tui.Runner, progressCh <-chan crawler.CrawlEvent) (*result.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := tui.NewModel(ctx, cancel, runner, progressCh)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("run tui: %w", err)
	}

	m := final.(tui.Model)
	if m.Err() != nil {
		return nil, m.Err()
	}
	if m.Report() == nil {
		return nil, context.Canceled
	}
	return m.Report(), nil
}

func writeReport(a *app, format string, rep *result.Report) error {
	switch format {
	case "json":
		return result.WriteJSON(a.stdout, rep.Links)
	case "csv":
		return result.WriteCSV(a.stdout, rep.Links)
	default:
		result.PrintReport(a.stdout, rep)
		return nil
	}
}

// ClassifyCmd explains the article classification of each URL.
type ClassifyCmd struct {
	URLs []string `arg:"" name:"url" help:"URLs to classify."`
}

// Run prints the classification steps for every URL.
func (c *ClassifyCmd) Run(a *app) error {
	rules := a.cfg.Crawler().Rules
	for i, u := range c.URLs {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		v := rules.Explain(u)
		fmt.Fprintf(a.stdout, "url: %s\n", v.URL)
		switch {
		case v.ExcludedBy != "":
			fmt.Fprintf(a.stdout, "excluded by: %s\n", v.ExcludedBy)
		case v.ParseError != "":
			fmt.Fprintf(a.stdout, "parse error: %s\n", v.ParseError)
		default:
			fmt.Fprintf(a.stdout, "path: %s\n", v.Path)
			fmt.Fprintf(a.stdout, "tag match: %t\n", v.TagMatch)
			if v.TagMatch {
				fmt.Fprintf(a.stdout, "category: %s\n", v.Category)
				fmt.Fprintf(a.stdout, "slug: %s\n", v.Slug)
				fmt.Fprintf(a.stdout, "has hyphen: %t\n", v.SlugHasHyphen)
				fmt.Fprintf(a.stdout, "length: %d (> %d: %t)\n", v.SlugLength, rules.MinSlugLength, v.SlugLength > rules.MinSlugLength)
			}
			fmt.Fprintf(a.stdout, "top-level match: %t\n", v.TopLevelMatch)
		}
		fmt.Fprintf(a.stdout, "article: %t\n", v.IsArticle)
	}
	return nil
}

// MissingCmd compares a saved HTML report against the live site.
type MissingCmd struct {
	Report string `name:"report" required:"" type:"existingfile" help:"Saved HTML report to compare against."`
	JSON   bool   `name:"json" help:"Print the result as JSON."`
}

// Run lists the site's articles that the saved report does not contain.
func (m *MissingCmd) Run(a *app) (err error) {
	f, err := os.Open(m.Report)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}
	defer f.Close()

	engine, err := browser.New(a.cfg.Browser())
	if err != nil {
		return fmt.Errorf("start page engine: %w", err)
	}
	defer func() {
		if closeErr := engine.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close page engine: %w", closeErr))
		}
	}()

	c, err := crawler.New(a.cfg.Crawler(), engine, a.logger, nil)
	if err != nil {
		return err
	}
	missing, err := c.FindMissing(a.ctx, f)
	if err != nil {
		return err
	}

	if m.JSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(missing); err != nil {
			return fmt.Errorf("write json output: %w", err)
		}
		return nil
	}

	fmt.Fprintf(a.stdout, "Report lists %d articles, site has %d, missing %d (%d with references)\n",
		missing.Reported, missing.Discovered, len(missing.Missing), len(missing.WithReferences()))
	for _, article := range missing.Missing {
		marker := " "
		if article.HasReferences {
			marker = "*"
		}
		fmt.Fprintf(a.stdout, "%s %s (%s)", marker, article.Title, article.URL)
		if article.Error != "" {
			fmt.Fprintf(a.stdout, " error: %s", article.Error)
		}
		fmt.Fprintln(a.stdout)
	}
	return nil
}
