// Package ui renders live run progress in the terminal.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"harness/internal/runner"
)

type progressModel struct {
	title   string
	events  <-chan runner.Event
	spinner spinner.Model
	prog    progress.Model
	items   []caseItem
	index   map[string]int
	current string
	passed  int
	failed  int
	width   int
	done    bool
}

type caseItem struct {
	name     string
	status   runner.Status
	isolated bool
	reason   string
}

type eventMsg runner.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that renders case progress.
// The model quits when events is closed.
func NewProgressModel(title string, cases []string, events <-chan runner.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]caseItem, 0, len(cases))
	index := make(map[string]int, len(cases))
	for i, name := range cases {
		items = append(items, caseItem{name: name, status: runner.StatusQueued})
		index[name] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(runner.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		m.current = ""
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case tea.KeyMsg:
		// ctrl+c only stops the view; the run is cancelled by the signal handler
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("7"))
	header := fmt.Sprintf("%s (%d passed, %d failed)", m.title, m.passed, m.failed)
	switch {
	case m.done:
		header = "done: " + header
	case m.current != "":
		header = fmt.Sprintf("%s %s: %s", m.spinner.View(), header, m.current)
	default:
		header = fmt.Sprintf("%s %s", m.spinner.View(), header)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	statusWidth := 10
	nameWidth := m.width - statusWidth - 4
	if nameWidth < 20 {
		nameWidth = 20
	}

	for _, item := range m.items {
		label := string(item.status)
		if item.isolated && item.status == runner.StatusRunning {
			label = "isolated"
		}
		line := fmt.Sprintf("  %s %s", styleStatus(item.status).Render(fmt.Sprintf("%10s", label)), truncate(item.name, nameWidth))
		if item.reason != "" {
			line += "  " + truncate(item.reason, m.width-runewidth.StringWidth(line)-2)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteString("\n")
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev runner.Event) tea.Cmd {
	idx, ok := m.index[ev.Name]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.status = ev.Status
	item.isolated = ev.Isolated
	switch ev.Status {
	case runner.StatusRunning:
		m.current = ev.Name
	case runner.StatusPassed:
		m.passed++
	case runner.StatusFailed:
		m.failed++
		item.reason = ev.Reason
	}

	finished := 0
	for _, it := range m.items {
		if finishedStatus(it.status) {
			finished++
		}
	}
	return m.prog.SetPercent(float64(finished) / float64(len(m.items)))
}

func finishedStatus(s runner.Status) bool {
	return s == runner.StatusPassed || s == runner.StatusFailed || s == runner.StatusSkipped
}

func styleStatus(status runner.Status) lipgloss.Style {
	switch status {
	case runner.StatusPassed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	case runner.StatusFailed:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	case runner.StatusSkipped:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	case runner.StatusRunning:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("7"))
	}
}

func truncate(value string, width int) string {
	if width <= 0 {
		return value
	}
	if runewidth.StringWidth(value) <= width {
		return value
	}
	if width <= 3 {
		return runewidth.Truncate(value, width, "")
	}
	return runewidth.Truncate(value, width, "...")
}
