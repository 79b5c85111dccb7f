package result

import (
	"fmt"
	"io"
)

// PrintReport writes broken and timed-out references and a summary to w.
func PrintReport(w io.Writer, r *Report) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if len(r.Broken) == 0 && len(r.Timeouts) == 0 {
		writef("No broken reference links found!\n")
	}

	if len(r.Broken) > 0 {
		writef("Broken Links:\n")
		for i, link := range r.Broken {
			writef("  URL: %s\n", link.OriginalURL)
			if link.Status != nil {
				writef("  Status: %d %s\n", *link.Status, link.StatusText)
			} else {
				writef("  Error: %s\n", link.ErrorMessage)
			}
			writef("  Article: %s (%s)\n", link.ArticleTitle, link.FoundOnPage)
			if i < len(r.Broken)-1 {
				writef("\n")
			}
		}
	}

	if len(r.Timeouts) > 0 {
		if len(r.Broken) > 0 {
			writef("\n")
		}
		writef("Timeouts:\n")
		for _, link := range r.Timeouts {
			writef("  %s after %d attempts (%s)\n", link.OriginalURL, link.Attempts, link.FoundOnPage)
		}
	}

	s := r.Stats
	writef("Scanned %d articles (%d with references), checked %d reference links: %d broken, %d timeouts, %d redirects, %d working\n",
		s.ArticlesFound, s.ArticlesWithReferences, s.ReferenceLinks, s.Broken, s.Timeouts, s.Redirects, s.Working)
}
