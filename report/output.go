package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/lukemcguire/refcrawl/result"
)

type scannedArticle struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	ReferenceCount int    `json:"referenceCount"`
}

type jsonSummary struct {
	RunID               string              `json:"runId,omitempty"`
	TargetURL           string              `json:"targetUrl"`
	ArticlesScanned     []scannedArticle    `json:"articlesScanned"`
	LinkResults         []result.LinkResult `json:"linkResults"`
	BrokenLinks         []result.LinkResult `json:"brokenLinks"`
	TimeoutLinks        []result.LinkResult `json:"timeoutLinks"`
	ArticlesProcessed   int                 `json:"articlesProcessed"`
	ReferenceLinksCount int                 `json:"referenceLinksCount"`
}

// WriteJSON writes the run summary as indented JSON.
func WriteJSON(w io.Writer, data Data) error {
	s := Summarize(data.Articles, data.Links)
	out := jsonSummary{
		RunID:               data.RunID,
		TargetURL:           data.TargetURL,
		ArticlesScanned:     make([]scannedArticle, 0, len(data.Articles)),
		LinkResults:         nonNil(s.All),
		BrokenLinks:         nonNil(s.Broken),
		TimeoutLinks:        nonNil(s.Timeouts),
		ArticlesProcessed:   len(data.Articles),
		ReferenceLinksCount: len(data.Links),
	}
	for _, article := range data.Articles {
		out.ArticlesScanned = append(out.ArticlesScanned, scannedArticle{
			URL:            article.URL,
			Title:          article.Title,
			ReferenceCount: len(article.ReferenceLinks),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("write json summary: %w", err)
	}
	return nil
}

// Markdown converts a rendered HTML report into Markdown, e.g. for a CI
// job summary.
func Markdown(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	converted, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert report to markdown: %w", err)
	}
	return converted, nil
}

// Timestamp formats t the way report file names carry it: UTC ISO-8601
// with ':' and '.' replaced by '-'.
func Timestamp(t time.Time) string {
	iso := t.UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(iso)
}

// Paths lists the files written by Save.
type Paths struct {
	HTML     string
	JSON     string
	Markdown string
}

// Save writes the HTML report, JSON summary and Markdown digest into dir,
// creating it if needed.
func Save(dir string, now time.Time, data Data) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create report dir: %w", err)
	}

	ts := Timestamp(now)
	paths := Paths{
		HTML:     filepath.Join(dir, "reference-links-report-"+ts+".html"),
		JSON:     filepath.Join(dir, "link-results-"+ts+".json"),
		Markdown: filepath.Join(dir, "reference-links-report-"+ts+".md"),
	}

	var htmlBuf bytes.Buffer
	if err := Render(&htmlBuf, data); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.HTML, htmlBuf.Bytes(), 0o644); err != nil {
		return Paths{}, fmt.Errorf("write html report: %w", err)
	}

	var jsonBuf bytes.Buffer
	if err := WriteJSON(&jsonBuf, data); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.JSON, jsonBuf.Bytes(), 0o644); err != nil {
		return Paths{}, fmt.Errorf("write json summary: %w", err)
	}

	markdown, err := Markdown(htmlBuf.String())
	if err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(paths.Markdown, []byte(markdown), 0o644); err != nil {
		return Paths{}, fmt.Errorf("write markdown report: %w", err)
	}

	return paths, nil
}

func nonNil(links []result.LinkResult) []result.LinkResult {
	if links == nil {
		return []result.LinkResult{}
	}
	return links
}
