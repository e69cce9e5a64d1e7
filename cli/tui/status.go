package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/assay/state"
)

// StatusModel is a Bubble Tea model for the fleet status view.
type StatusModel struct {
	dir     string
	refresh time.Duration

	fleet    *state.Fleet
	loadErr  error
	width    int
	height   int
	quitting bool
}

// NewStatusModel creates a status model over the given report directory.
// refresh > 0 enables periodic re-reads of the state snapshot.
func NewStatusModel(dir string, fleet *state.Fleet, refresh time.Duration) StatusModel {
	return StatusModel{
		dir:     dir,
		refresh: refresh,
		fleet:   fleet,
	}
}

type tickMsg time.Time

type fleetMsg struct {
	fleet *state.Fleet
	err   error
}

func (m StatusModel) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m StatusModel) loadCmd() tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		fleet, err := state.Load(dir)
		return fleetMsg{fleet: fleet, err: err}
	}
}

// Init implements tea.Model.
func (m StatusModel) Init() tea.Cmd {
	if m.refresh > 0 {
		return m.tickCmd()
	}
	return nil
}

// Update implements tea.Model.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadCmd(), m.tickCmd())

	case fleetMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			return m, nil
		}
		m.fleet = msg.fleet
		m.loadErr = nil
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m, m.loadCmd()
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Fleet Status"))
	b.WriteString("\n")

	if m.loadErr != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("refresh failed: %v", m.loadErr)))
		b.WriteString("\n")
	}

	if m.fleet == nil {
		b.WriteString(ValueStyle.Render("no state snapshot yet"))
	} else {
		b.WriteString(m.renderTotals())
		b.WriteString("\n")
		b.WriteString(m.renderEngines())
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render(
			fmt.Sprintf("updated %s", m.fleet.UpdatedAt.Format("2006-01-02 15:04:05"))))
	}

	help := HelpStyle.Render("r refresh · q quit")
	return b.String() + "\n" + help
}

func (m StatusModel) renderTotals() string {
	t := m.fleet.Totals
	boxes := []string{
		m.renderStatBox("Engines", int64(len(m.fleet.Engines)), highlightColor),
		m.renderStatBox("Cycles", t.CyclesCompleted, successColor),
		m.renderStatBox("Rows", t.RowsWritten, highlightColor),
		m.renderStatBox("Conn Fail", t.ConnectFailures, errorColor),
		m.renderStatBox("Overruns", t.CyclesOverrun, warningColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m StatusModel) renderEngines() string {
	names := make([]string, 0, len(m.fleet.Engines))
	for name := range m.fleet.Engines {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderEngine(m.fleet.Engines[name]))
	}
	return b.String()
}

// engineState classifies one engine's last cycle for display.
func engineState(st state.EngineStatus) string {
	switch {
	case st.ConnectErr != "":
		return "unreachable"
	case !st.OK:
		return "degraded"
	default:
		return "ok"
	}
}

func (m StatusModel) renderEngine(st state.EngineStatus) string {
	hs := engineState(st)

	var b strings.Builder
	title := lipgloss.NewStyle().Bold(true).Foreground(highlightColor).Render(st.Engine)
	b.WriteString(fmt.Sprintf("%s  %s\n", title, EngineStateStyle(hs).Render(hs)))

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Endpoint:"), ValueStyle.Render(st.Endpoint)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Last Cycle:"),
		ValueStyle.Render(st.LastCycle.Format("2006-01-02 15:04:05"))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Duration:"),
		ValueStyle.Render(fmt.Sprintf("%dms", st.DurationMS))))
	b.WriteString(fmt.Sprintf("%s %s",
		LabelStyle.Render("Rows:"), ValueStyle.Render(fmt.Sprintf("%d", st.Rows))))

	if st.ConnectErr != "" {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s",
			LabelStyle.Render("Error:"), ErrorStyle.Render(st.ConnectErr)))
	}

	for _, cat := range st.Categories {
		b.WriteString("\n")
		line := fmt.Sprintf("%d rows", cat.Rows)
		style := ValueStyle
		switch {
		case cat.Error != "":
			line = cat.Error
			style = ErrorStyle
		case cat.Empty:
			line = "empty"
			style = WarningStyle
		case cat.Retried:
			line += " (retried)"
			style = WarningStyle
		}
		b.WriteString(fmt.Sprintf("%s %s",
			LabelStyle.Render(cat.Category+":"), style.Render(line)))
	}

	return BoxStyle.Render(b.String())
}

func (m StatusModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// keyMap defines key bindings.
type keyMap struct {
	Quit    key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
}

// RunStatusTUI runs the fleet status TUI until the user quits.
func RunStatusTUI(dir string, fleet *state.Fleet, refresh time.Duration) error {
	model := NewStatusModel(dir, fleet, refresh)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatusStatic renders the fleet view once without a live program.
func RenderStatusStatic(fleet *state.Fleet) string {
	model := NewStatusModel("", fleet, 0)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
