package crawler

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/lukemcguire/refcrawl/urlutil"
)

// referenceMarkers identify article HTML that carries a References heading.
var referenceMarkers = []string{">References<", ">Reference<"}

// MissingArticle is a site article that a saved report never mentions.
type MissingArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	HasReferences bool   `json:"hasReferences"`
	Error         string `json:"error,omitempty"`
}

// MissingReport compares a saved report against the live site.
type MissingReport struct {
	Reported   int              `json:"reported"`
	Discovered int              `json:"discovered"`
	Missing    []MissingArticle `json:"missing"`
}

// WithReferences returns the missing articles that do carry references.
func (m *MissingReport) WithReferences() []MissingArticle {
	var out []MissingArticle
	for _, article := range m.Missing {
		if article.HasReferences {
			out = append(out, article)
		}
	}
	return out
}

// ReportedArticles lists the article URLs linked from a saved HTML report,
// normalized for comparison.
func (c *Crawler) ReportedArticles(report io.Reader) ([]string, error) {
	keep := func(u string) bool {
		return urlutil.IsSameDomain(u, c.target.Hostname()) && c.cfg.Rules.IsArticle(u)
	}
	links, err := ExtractLinks(report, c.target, keep)
	if err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return normalizeAll(links), nil
}

// FindMissing re-crawls the listing pages and reports every article the
// saved report does not contain, flagging those whose HTML shows a
// References heading.
func (c *Crawler) FindMissing(ctx context.Context, report io.Reader) (*MissingReport, error) {
	reported, err := c.ReportedArticles(report)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(reported))
	for _, u := range reported {
		known[u] = true
	}

	discovery, err := c.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover articles: %w", err)
	}

	out := &MissingReport{Reported: len(reported), Discovered: len(discovery.Articles), Missing: []MissingArticle{}}
	for _, articleURL := range discovery.Articles {
		key, normErr := urlutil.Normalize(articleURL)
		if normErr != nil {
			key = articleURL
		}
		if known[key] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		missing := c.inspectArticle(ctx, articleURL)
		c.logger.Info().Str("url", articleURL).Bool("has_references", missing.HasReferences).Msg("article missing from report")
		out.Missing = append(out.Missing, missing)
	}
	return out, nil
}

func (c *Crawler) inspectArticle(ctx context.Context, articleURL string) MissingArticle {
	missing := MissingArticle{URL: articleURL, Title: articleURL}

	page, err := c.open(ctx, articleURL)
	if err != nil {
		missing.Error = err.Error()
		return missing
	}
	defer page.Close()

	missing.Title = articleTitle(ctx, page)
	body, err := page.HTML(ctx)
	if err != nil {
		missing.Error = err.Error()
		return missing
	}
	for _, marker := range referenceMarkers {
		if strings.Contains(body, marker) {
			missing.HasReferences = true
			break
		}
	}
	return missing
}

func normalizeAll(links []string) []string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		if normalized, err := urlutil.Normalize(link); err == nil {
			out = append(out, normalized)
		} else {
			out = append(out, link)
		}
	}
	return out
}
