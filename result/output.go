package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteJSON writes the link results as a formatted JSON array to the writer.
// URLs are written verbatim (no HTML escaping).
func WriteJSON(w io.Writer, links []LinkResult) error {
	if links == nil {
		links = []LinkResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(links); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

var csvHeader = []string{
	"url", "status", "category", "redirected_to", "attempts", "article_url", "article_title", "error",
}

// WriteCSV writes the link results as CSV to the writer.
// Always includes a header row, even if there are no results.
func WriteCSV(w io.Writer, links []LinkResult) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, link := range links {
		record := []string{
			link.OriginalURL,
			statusStr(link.Status),
			string(link.Category),
			link.RedirectedTo,
			strconv.Itoa(link.Attempts),
			link.FoundOnPage,
			link.ArticleTitle,
			link.ErrorMessage,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", link.OriginalURL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// statusStr renders a status code, or "" when no response was received.
func statusStr(status *int) string {
	if status == nil {
		return ""
	}
	return strconv.Itoa(*status)
}
