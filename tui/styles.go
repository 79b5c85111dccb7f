package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/refcrawl/result"
)

var (
	titleStyle       = lipgloss.NewStyle().Bold(true)
	successStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle         = lipgloss.NewStyle().Faint(true)
	urlStyle         = lipgloss.NewStyle()
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

// RenderSummary produces a Lip Gloss styled summary of an audit report.
func RenderSummary(rep *result.Report) string {
	if rep == nil {
		return errorStyle.Render("No results available.")
	}

	var builder strings.Builder
	s := rep.Stats

	if len(rep.Broken) == 0 && len(rep.Timeouts) == 0 {
		builder.WriteString(successStyle.Render("No broken reference links found!"))
		builder.WriteString("\n")
		builder.WriteString(dimStyle.Render(fmt.Sprintf(
			"Checked %d references from %d articles in %s",
			s.ReferenceLinks,
			s.ArticlesWithReferences,
			s.Duration.Round(1_000_000),
		)))
		builder.WriteString("\n")
		return builder.String()
	}

	sections := []struct {
		category result.Category
		links    []result.LinkResult
	}{
		{result.CategoryBroken, rep.Broken},
		{result.CategoryTimeout, rep.Timeouts},
	}
	for _, section := range sections {
		if len(section.links) == 0 {
			continue
		}
		builder.WriteString(categoryStyle.Render(fmt.Sprintf("## %s (%d)", result.FormatCategory(section.category), len(section.links))))
		builder.WriteString("\n")
		builder.WriteString(linkTable(section.links).Render())
		builder.WriteString("\n\n")
	}

	builder.WriteString(titleStyle.Render(fmt.Sprintf(
		"Found %d broken and %d timed out out of %d references in %d articles (%s)",
		s.Broken,
		s.Timeouts,
		s.ReferenceLinks,
		s.ArticlesFound,
		s.Duration.Round(1_000_000),
	)))
	builder.WriteString("\n")

	return builder.String()
}

func linkTable(links []result.LinkResult) *table.Table {
	rows := make([][]string, 0, len(links))
	for _, link := range links {
		status := fmt.Sprintf("%d", link.StatusCode())
		if link.ErrorMessage != "" {
			status = link.ErrorMessage
		}
		rows = append(rows, []string{link.OriginalURL, status, link.ArticleTitle})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("Reference", "Status", "Article").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 {
				return statusErrorStyle
			}
			return urlStyle
		}).
		Rows(rows...)
}
