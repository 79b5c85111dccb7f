// Package report renders audit results as an HTML document, a JSON summary
// and a Markdown digest, and persists them under timestamped file names.
package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"time"

	"github.com/lukemcguire/refcrawl/result"
)

//go:embed report.html.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"statusOrError": statusOrError,
	"errorText":     errorText,
	"articleTitle":  articleTitle,
}).Parse(reportTemplate))

// Data is everything the report needs from one audit run.
type Data struct {
	RunID       string
	TargetURL   string
	GeneratedAt time.Time
	MaxRetries  int
	Articles    []result.ArticleInfo
	Links       []result.LinkResult
}

// FromReport builds report data from a finished audit.
func FromReport(r *result.Report, maxRetries int, generatedAt time.Time) Data {
	return Data{
		RunID:       r.RunID,
		TargetURL:   r.TargetURL,
		GeneratedAt: generatedAt,
		MaxRetries:  maxRetries,
		Articles:    r.Articles,
		Links:       r.Links,
	}
}

// Summary splits the checked links into the report's categories. Every
// link lands in exactly one of Working, Broken or Timeouts; Redirected is
// the subset of Working that moved.
type Summary struct {
	All            []result.LinkResult
	Working        []result.LinkResult
	Broken         []result.LinkResult
	Timeouts       []result.LinkResult
	Redirected     []result.LinkResult
	WithReferences []result.ArticleInfo
}

// Summarize derives the category sets from articles and links.
func Summarize(articles []result.ArticleInfo, links []result.LinkResult) Summary {
	s := Summary{All: links}
	for _, link := range links {
		switch {
		case link.IsBroken:
			s.Broken = append(s.Broken, link)
		case link.IsTimeout:
			s.Timeouts = append(s.Timeouts, link)
		default:
			s.Working = append(s.Working, link)
			if link.Redirected() {
				s.Redirected = append(s.Redirected, link)
			}
		}
	}
	for _, article := range articles {
		if article.HasReferences() {
			s.WithReferences = append(s.WithReferences, article)
		}
	}
	return s
}

// Balanced reports whether working, broken and timeout links add up to all links.
func (s Summary) Balanced() bool {
	return len(s.Working)+len(s.Broken)+len(s.Timeouts) == len(s.All)
}

type view struct {
	Data
	Summary Summary
}

// Render writes the HTML report. Every interpolated value is escaped.
func Render(w io.Writer, data Data) error {
	v := view{Data: data, Summary: Summarize(data.Articles, data.Links)}
	if err := tmpl.Execute(w, v); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

func statusOrError(link result.LinkResult) string {
	if link.Status == nil || *link.Status == 0 {
		return "Error"
	}
	return strconv.Itoa(*link.Status)
}

func errorText(link result.LinkResult) string {
	switch {
	case link.ErrorMessage != "":
		return link.ErrorMessage
	case link.StatusText != "":
		return link.StatusText
	default:
		return "-"
	}
}

func articleTitle(link result.LinkResult) string {
	if link.ArticleTitle == "" {
		return "Unknown"
	}
	return link.ArticleTitle
}
