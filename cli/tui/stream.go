package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/fleetview/stream"
)

const (
	defaultPaneWidth  = 78
	defaultPaneHeight = 12
)

type snapshotMsg struct{ snap stream.Snapshot }

// StreamModel renders the telemetry pane.
type StreamModel struct {
	updates  <-chan stream.Snapshot
	snap     stream.Snapshot
	viewport viewport.Model
	quitting bool
}

// NewStreamModel creates the telemetry pane from the handle's current
// snapshot. updates may be nil for an unconfigured stream.
func NewStreamModel(initial stream.Snapshot, updates <-chan stream.Snapshot) StreamModel {
	m := StreamModel{
		updates:  updates,
		viewport: viewport.New(defaultPaneWidth, defaultPaneHeight),
	}
	m.apply(initial)
	return m
}

// Snapshot returns the last snapshot the model saw.
func (m StreamModel) Snapshot() stream.Snapshot {
	return m.snap
}

// Init implements tea.Model.
func (m StreamModel) Init() tea.Cmd {
	if !m.snap.Configured {
		return nil
	}
	return m.waitSnapshot()
}

// Update implements tea.Model.
func (m StreamModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		m.resize(ws.Width, ws.Height-4)
		return m, nil
	}
	return m.update(msg)
}

func (m StreamModel) update(msg tea.Msg) (StreamModel, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.apply(msg.snap)
		return m, m.waitSnapshot()
	case tea.KeyMsg, tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *StreamModel) resize(width, height int) {
	if width > 4 {
		m.viewport.Width = width - 4
	}
	if height > 3 {
		m.viewport.Height = height - 3
	}
}

func (m *StreamModel) apply(s stream.Snapshot) {
	m.snap = s
	styled := make([]string, len(s.Lines))
	for i, l := range s.Lines {
		styled[i] = LineStyle.Render(l)
	}
	m.viewport.SetContent(strings.Join(styled, "\n"))
	// newest first, so keep the top in view
	m.viewport.GotoTop()
}

// View implements tea.Model.
func (m StreamModel) View() string {
	if m.quitting {
		return ""
	}
	return m.render() + "\n" + helpLine(keys.Quit)
}

// render draws nothing for an unconfigured stream. An unavailable stream
// shows only its label; the buffered lines stay in the snapshot.
func (m StreamModel) render() string {
	s := m.snap
	if !s.Configured {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Telemetry"))
	b.WriteString(" ")

	switch {
	case s.Unavailable:
		b.WriteString(ErrorStyle.Render("telemetry service unavailable"))
		return b.String()
	case s.Connected:
		b.WriteString(SuccessStyle.Render("live"))
	default:
		b.WriteString(WarningStyle.Render("connecting"))
	}
	b.WriteString("\n")

	if s.Waiting() {
		b.WriteString(MutedStyle.Render("waiting for data..."))
		return b.String()
	}
	if len(s.Lines) == 0 {
		return b.String()
	}
	b.WriteString(m.viewport.View())
	return b.String()
}

func (m StreamModel) waitSnapshot() tea.Cmd {
	return waitFor(m.updates, func(s stream.Snapshot) tea.Msg { return snapshotMsg{snap: s} })
}

// RunStream runs the telemetry pane on its own.
func RunStream(initial stream.Snapshot, updates <-chan stream.Snapshot) error {
	_, err := tea.NewProgram(NewStreamModel(initial, updates), tea.WithAltScreen()).Run()
	return err
}
