package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/refcrawl/crawler"
	"github.com/lukemcguire/refcrawl/result"
)

// ProgressMsg carries one progress event from the audit.
type ProgressMsg struct {
	Event crawler.CrawlEvent
}

// AuditDoneMsg signals the audit has finished.
type AuditDoneMsg struct {
	Report *result.Report
	Err    error
}

// progressClosedMsg is sent once the progress channel is closed.
type progressClosedMsg struct{}

// waitForProgress returns a tea.Cmd that reads one event from the progress
// channel.
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return progressClosedMsg{}
		}
		return ProgressMsg{Event: evt}
	}
}
