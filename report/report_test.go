package report_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukemcguire/refcrawl/report"
	"github.com/lukemcguire/refcrawl/result"
)

func intPtr(v int) *int { return &v }

func sampleData() report.Data {
	const article = "https://blog.example.com/tag/fitness/power-training"
	return report.Data{
		RunID:       "run-1",
		TargetURL:   "https://blog.example.com/",
		GeneratedAt: time.Date(2026, 10, 18, 9, 30, 15, 123_000_000, time.UTC),
		MaxRetries:  2,
		Articles: []result.ArticleInfo{
			{URL: article, Title: "Power <script>alert(1)</script>", ReferenceLinks: []string{"https://a.example.org/ok", "https://a.example.org/gone"}},
			{URL: "https://blog.example.com/how-to-stay-active-daily", Title: "Stay Active", ReferenceLinks: []string{}},
		},
		Links: []result.LinkResult{
			{OriginalURL: "https://a.example.org/ok", FoundOnPage: article, ArticleTitle: "Power", Status: intPtr(200), Attempts: 1, Category: result.CategoryOK},
			{OriginalURL: "https://a.example.org/gone", FoundOnPage: article, ArticleTitle: "Power", Status: intPtr(404), StatusText: "Not Found", IsBroken: true, Attempts: 1, Category: result.CategoryBroken},
			{OriginalURL: "https://a.example.org/refused", FoundOnPage: article, ArticleTitle: "Power", ErrorMessage: "dial tcp: <b>refused</b>", IsBroken: true, Attempts: 1, Category: result.CategoryBroken},
			{OriginalURL: "https://a.example.org/slow", FoundOnPage: article, ArticleTitle: "", ErrorMessage: "context deadline exceeded", IsTimeout: true, Attempts: 2, Category: result.CategoryTimeout},
			{OriginalURL: "https://a.example.org/old", FoundOnPage: article, ArticleTitle: "Power", Status: intPtr(200), RedirectedTo: "https://a.example.org/new", Attempts: 1, Category: result.CategoryOK},
		},
	}
}

func TestSummarize(t *testing.T) {
	data := sampleData()
	s := report.Summarize(data.Articles, data.Links)

	assert.Len(t, s.All, 5)
	assert.Len(t, s.Broken, 2)
	assert.Len(t, s.Timeouts, 1)
	assert.Len(t, s.Working, 2)
	require.Len(t, s.Redirected, 1)
	assert.Equal(t, "https://a.example.org/new", s.Redirected[0].RedirectedTo)
	require.Len(t, s.WithReferences, 1)
	assert.Equal(t, "https://blog.example.com/tag/fitness/power-training", s.WithReferences[0].URL)
	assert.True(t, s.Balanced())
}

func TestSummarize_Empty(t *testing.T) {
	s := report.Summarize(nil, nil)
	assert.Empty(t, s.All)
	assert.True(t, s.Balanced())
}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleData()))
	out := buf.String()

	assert.Contains(t, out, "Target: https://blog.example.com/")
	assert.Contains(t, out, "Generated: 2026-10-18T09:30:15Z")
	assert.Contains(t, out, "Broken Reference Links (2)")
	assert.Contains(t, out, "Timeout Links (1)")
	assert.Contains(t, out, "after 2 attempts")
	assert.Contains(t, out, "Redirected Links (1)")
	assert.Contains(t, out, "Articles Scanned (1 with references)")
	assert.Contains(t, out, "Working Links (2)")
	assert.Contains(t, out, `<td class="status error">404</td>`)
	assert.Contains(t, out, `<td class="status error">Error</td>`)
	assert.Contains(t, out, "<td>Not Found</td>")
	assert.Contains(t, out, "Unknown")
	assert.Contains(t, out, "<details>\n        <summary>Working Links")
	assert.NotContains(t, out, "Stay Active")
}

func TestRender_EscapesInterpolatedText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleData()))
	out := buf.String()

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>refused</b>")
	assert.Contains(t, out, "Power &lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, out, "dial tcp: &lt;b&gt;refused&lt;/b&gt;")
}

func TestRender_OmitsEmptySections(t *testing.T) {
	data := sampleData()
	data.Links = data.Links[:1]

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, data))
	out := buf.String()

	assert.NotContains(t, out, `id="broken"`)
	assert.NotContains(t, out, `id="timeouts"`)
	assert.NotContains(t, out, `id="redirects"`)
	assert.Contains(t, out, `id="articles"`)
	assert.Contains(t, out, "Working Links (1)")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf, sampleData()))

	var decoded struct {
		ArticlesScanned []struct {
			URL            string `json:"url"`
			Title          string `json:"title"`
			ReferenceCount int    `json:"referenceCount"`
		} `json:"articlesScanned"`
		LinkResults         []result.LinkResult `json:"linkResults"`
		BrokenLinks         []result.LinkResult `json:"brokenLinks"`
		TimeoutLinks        []result.LinkResult `json:"timeoutLinks"`
		ArticlesProcessed   int                 `json:"articlesProcessed"`
		ReferenceLinksCount int                 `json:"referenceLinksCount"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	require.Len(t, decoded.ArticlesScanned, 2)
	assert.Equal(t, 2, decoded.ArticlesScanned[0].ReferenceCount)
	assert.Len(t, decoded.LinkResults, 5)
	assert.Len(t, decoded.BrokenLinks, 2)
	assert.Len(t, decoded.TimeoutLinks, 1)
	assert.Equal(t, 2, decoded.ArticlesProcessed)
	assert.Equal(t, 5, decoded.ReferenceLinksCount)
	assert.Contains(t, buf.String(), "Power <script>", "JSON output is not HTML-escaped")
}

func TestWriteJSON_EmptyListsAreArrays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.WriteJSON(&buf, report.Data{TargetURL: "https://blog.example.com/"}))

	out := buf.String()
	assert.Contains(t, out, `"brokenLinks": []`)
	assert.Contains(t, out, `"timeoutLinks": []`)
	assert.Contains(t, out, `"articlesScanned": []`)
}

func TestMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, sampleData()))

	markdown, err := report.Markdown(buf.String())
	require.NoError(t, err)
	assert.Contains(t, markdown, "Reference Links Report")
	assert.Contains(t, markdown, "Broken Reference Links")
	assert.Contains(t, markdown, "https://a.example.org/gone")
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2026, 10, 18, 9, 30, 15, 123_000_000, time.FixedZone("CEST", 2*3600))
	assert.Equal(t, "2026-10-18T07-30-15-123Z", report.Timestamp(ts))
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "broken-link-reports")
	now := time.Date(2026, 10, 18, 9, 30, 15, 0, time.UTC)

	paths, err := report.Save(dir, now, sampleData())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "reference-links-report-2026-10-18T09-30-15-000Z.html"), paths.HTML)
	assert.Equal(t, filepath.Join(dir, "link-results-2026-10-18T09-30-15-000Z.json"), paths.JSON)
	assert.Equal(t, filepath.Join(dir, "reference-links-report-2026-10-18T09-30-15-000Z.md"), paths.Markdown)

	for _, p := range []string{paths.HTML, paths.JSON, paths.Markdown} {
		info, statErr := os.Stat(p)
		require.NoError(t, statErr)
		assert.Positive(t, info.Size(), p)
	}

	body, err := os.ReadFile(paths.HTML)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "<!DOCTYPE html>"))
}

func TestSave_UnwritableDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := report.Save(filepath.Join(file, "reports"), time.Now(), sampleData())
	assert.Error(t, err)
}
