// Package tui provides the Bubble Tea terminal UI for refcrawl, displaying
// live audit progress and a styled summary of the results.
package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/refcrawl/crawler"
	"github.com/lukemcguire/refcrawl/result"
)

// Runner runs one audit. *crawler.Auditor satisfies it.
type Runner interface {
	Run(ctx context.Context) (*result.Report, error)
}

// Model is the Bubble Tea model for the audit TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	runner     Runner
	spinner    spinner.Model
	progressCh <-chan crawler.CrawlEvent

	phase    crawler.Phase
	listing  int
	articles int
	refs     int
	done     int
	total    int
	broken   int
	timeouts int
	current  string

	quitting bool
	finished bool
	report   *result.Report
	err      error
	width    int
}

// NewModel creates a TUI model wired to the given runner and progress channel.
func NewModel(ctx context.Context, cancel context.CancelFunc, runner Runner, progressCh <-chan crawler.CrawlEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		runner:     runner,
		spinner:    spin,
		progressCh: progressCh,
		phase:      crawler.PhaseDiscover,
	}
}

// Init starts the spinner, the audit and the progress listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startAudit(), waitForProgress(m.progressCh))
}

func (m Model) startAudit() tea.Cmd {
	return func() tea.Msg {
		rep, err := m.runner.Run(m.ctx)
		if err != nil {
			err = fmt.Errorf("audit: %w", err)
		}
		return AuditDoneMsg{Report: rep, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case ProgressMsg:
		m.apply(msg.Event)
		return m, waitForProgress(m.progressCh)

	case progressClosedMsg:
		return m, nil

	case AuditDoneMsg:
		m.finished = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) apply(evt crawler.CrawlEvent) {
	m.phase = evt.Phase
	m.current = evt.URL
	switch evt.Phase {
	case crawler.PhaseDiscover:
		m.listing = evt.Done
		m.articles = evt.Found
	case crawler.PhaseExtract:
		m.refs += evt.Found
		m.done, m.total = evt.Done, evt.Total
	case crawler.PhaseCheck, crawler.PhaseDone:
		m.done, m.total = evt.Done, evt.Total
		m.broken, m.timeouts = evt.Broken, evt.Timeouts
	}
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.finished && m.report != nil {
		return RenderSummary(m.report)
	}
	if m.finished && m.err != nil {
		return errorStyle.Render("Error: "+m.err.Error()) + "\n"
	}

	var line string
	switch m.phase {
	case crawler.PhaseExtract:
		line = fmt.Sprintf("Scanning articles... %d/%d, %d references", m.done, m.total, m.refs)
	case crawler.PhaseCheck, crawler.PhaseDone:
		line = fmt.Sprintf("Checking references... %d/%d, broken %d, timeouts %d", m.done, m.total, m.broken, m.timeouts)
	default:
		line = fmt.Sprintf("Discovering articles... %d listing pages, %d articles", m.listing, m.articles)
	}
	return fmt.Sprintf("%s %s\n%s\n", m.spinner.View(), line, dimStyle.Render("  "+m.current))
}

// Report returns the finished audit report, nil while running or on error.
func (m Model) Report() *result.Report {
	return m.report
}

// Err returns the error the audit ended with.
func (m Model) Err() error {
	return m.err
}
