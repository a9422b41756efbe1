// ABOUTME: Live terminal progress view for sync runs
// ABOUTME: Renders a spinner, running totals and recent per-contact activity while a run proceeds
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hotgluexyz/target-everyaction/sync"
)

const maxMessages = 5

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// EventMsg carries one per-contact outcome into the view.
type EventMsg struct {
	Event sync.Event
}

// DoneMsg is sent when the run returns.
type DoneMsg struct {
	Summary sync.Summary
	Err     error
}

type counts struct {
	created  int
	updated  int
	failed   int
	skipped  int
	previews int
}

func (c counts) total() int {
	return c.created + c.updated + c.failed + c.skipped + c.previews
}

// Model is the bubbletea model of a running sync.
type Model struct {
	source   string
	dryRun   bool
	started  time.Time
	spinner  spinner.Model
	counts   counts
	messages []string
	done     bool
	stopping bool
	summary  sync.Summary
	err      error
	stop     func()
}

// NewModel creates the view. stop is called once when the user asks to stop;
// the run is expected to finish its current contact and return.
func NewModel(source string, dryRun bool, stop func()) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = busyStyle

	return Model{
		source:  source,
		dryRun:  dryRun,
		started: time.Now(),
		spinner: s,
		stop:    stop,
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.stopping {
				m.stopping = true
				m.addMessage("Stopping after the current contact...")
				if m.stop != nil {
					m.stop()
				}
			}
		}
		return m, nil

	case EventMsg:
		m.record(msg.Event)
		return m, nil

	case DoneMsg:
		m.done = true
		m.summary = msg.Summary
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) record(e sync.Event) {
	id := e.SourceID
	if id == "" {
		id = "(no id)"
	}

	switch e.Kind {
	case sync.EventCreated:
		m.counts.created++
		m.addMessage(fmt.Sprintf("✓ created %s%s", id, vanSuffix(e)))
	case sync.EventUpdated:
		m.counts.updated++
		m.addMessage(fmt.Sprintf("✓ updated %s%s", id, vanSuffix(e)))
	case sync.EventFailed:
		m.counts.failed++
		msg := fmt.Sprintf("✗ %s", id)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		m.addMessage(msg)
	case sync.EventSkipped:
		m.counts.skipped++
		m.addMessage(fmt.Sprintf("→ skipped %s (already synced)", id))
	case sync.EventPreview:
		m.counts.previews++
		if e.Diff == "" {
			m.addMessage(fmt.Sprintf("= %s unchanged", id))
		} else {
			m.addMessage(fmt.Sprintf("~ %s would change", id))
		}
	}
}

func vanSuffix(e sync.Event) string {
	if e.Result.VanID == nil {
		return ""
	}
	return fmt.Sprintf(" (VAN %d)", *e.Result.VanID)
}

// addMessage appends a timestamped line to the activity log.
func (m *Model) addMessage(msg string) {
	timestamp := time.Now().Format("15:04:05")
	m.messages = append(m.messages, fmt.Sprintf("[%s] %s", timestamp, msg))
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

func (m Model) View() string {
	var s strings.Builder

	title := "Syncing " + m.source + " → EveryAction"
	if m.dryRun {
		title += " (dry run)"
	}
	s.WriteString(titleStyle.Render(title))
	s.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		s.WriteString(errorStyle.Render("✗ Sync stopped: " + m.err.Error()))
	case m.done && m.summary.Stopped:
		s.WriteString(okStyle.Render(fmt.Sprintf("✓ Sync stopped after %d contacts", m.summary.Total)))
	case m.done:
		s.WriteString(okStyle.Render("✓ Sync finished"))
	case m.stopping:
		s.WriteString(busyStyle.Render(m.spinner.View() + " Stopping..."))
	default:
		s.WriteString(busyStyle.Render(fmt.Sprintf("%s %d contacts processed", m.spinner.View(), m.counts.total())))
	}
	s.WriteString(messageStyle.Render(" • " + time.Since(m.started).Round(time.Second).String()))
	s.WriteString("\n\n")

	s.WriteString(m.renderCounts())
	s.WriteString("\n")

	if len(m.messages) > 0 {
		s.WriteString(headerStyle.Render("Recent Activity"))
		s.WriteString("\n\n")
		for _, msg := range m.messages {
			s.WriteString(messageStyle.Render("  " + msg))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	if !m.done {
		s.WriteString(helpStyle.Render("q: Stop after current contact"))
		s.WriteString("\n")
	}

	return s.String()
}

func (m Model) renderCounts() string {
	var rows []string
	if m.dryRun {
		rows = append(rows, okStyle.Render(fmt.Sprintf("  Previewed  %d", m.counts.previews)))
	} else {
		rows = append(rows,
			okStyle.Render(fmt.Sprintf("  Created   %d", m.counts.created)),
			okStyle.Render(fmt.Sprintf("  Updated   %d", m.counts.updated)),
		)
	}
	if m.counts.skipped > 0 {
		rows = append(rows, messageStyle.Render(fmt.Sprintf("  Skipped   %d", m.counts.skipped)))
	}
	if m.counts.failed > 0 {
		rows = append(rows, errorStyle.Render(fmt.Sprintf("  Failed    %d", m.counts.failed)))
	}
	return strings.Join(rows, "\n") + "\n"
}

// RunFunc performs a run, reporting each outcome through onEvent. It should
// poll stopped between contacts and return once it reports true.
type RunFunc func(ctx context.Context, onEvent func(sync.Event), stopped func() bool) (sync.Summary, error)

// Run executes fn while rendering the progress view. Quitting the view asks
// fn to stop after the current contact and waits for it to return. The
// context passed to fn is canceled only if the program itself fails.
func Run(ctx context.Context, source string, dryRun bool, fn RunFunc, opts ...tea.ProgramOption) (sync.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stop atomic.Bool
	p := tea.NewProgram(NewModel(source, dryRun, func() { stop.Store(true) }), opts...)

	type result struct {
		summary sync.Summary
		err     error
	}
	done := make(chan result, 1)

	go func() {
		summary, err := fn(ctx, func(e sync.Event) {
			p.Send(EventMsg{Event: e})
		}, stop.Load)
		done <- result{summary: summary, err: err}
		p.Send(DoneMsg{Summary: summary, Err: err})
	}()

	if _, err := p.Run(); err != nil {
		// no view is left to report progress to
		cancel()
		r := <-done
		if errors.Is(err, tea.ErrInterrupted) && r.err == nil {
			return r.summary, context.Canceled
		}
		return r.summary, errors.Join(r.err, err)
	}

	r := <-done
	return r.summary, r.err
}
