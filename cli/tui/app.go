package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/fleetview/api"
	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/stream"
)

// HealthProbe performs the one-shot backend health check.
type HealthProbe func(ctx context.Context) (*api.HealthResponse, error)

type healthMsg struct {
	status string
	err    error
}

// AppModel composes the session and telemetry panes with a health line.
// The two panes never talk to each other.
type AppModel struct {
	ctx      context.Context
	apiBase  string
	probe    HealthProbe
	health   healthMsg
	probed   bool
	auth     AuthModel
	stream   StreamModel
	width    int
	quitting bool
}

// AppConfig wires the App model.
type AppConfig struct {
	APIBase        string
	Health         HealthProbe
	Session        SessionController
	SessionUpdates <-chan auth.State
	Stream         stream.Snapshot
	StreamUpdates  <-chan stream.Snapshot
}

// NewAppModel creates the composed model.
func NewAppModel(ctx context.Context, cfg AppConfig) AppModel {
	return AppModel{
		ctx:     ctx,
		apiBase: cfg.APIBase,
		probe:   cfg.Health,
		auth:    NewAuthModel(ctx, cfg.Session, cfg.SessionUpdates),
		stream:  NewStreamModel(cfg.Stream, cfg.StreamUpdates),
	}
}

// Init implements tea.Model.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.probeHealth(), m.auth.Init(), m.stream.Init())
}

// Update implements tea.Model.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.stream.resize(msg.Width, msg.Height-12)
		return m, nil
	case healthMsg:
		m.health = msg
		m.probed = true
		return m, nil
	}

	var authCmd, streamCmd tea.Cmd
	m.auth, authCmd = m.auth.update(msg)
	m.stream, streamCmd = m.stream.update(msg)
	return m, tea.Batch(authCmd, streamCmd)
}

// View implements tea.Model.
func (m AppModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("fleetview"))
	b.WriteString(" ")
	b.WriteString(MutedStyle.Render(m.apiBase))
	b.WriteString("\n")
	b.WriteString(m.healthLine())
	b.WriteString("\n")

	panes := []string{PaneStyle.Render(m.auth.render())}
	if pane := m.stream.render(); pane != "" {
		panes = append(panes, PaneStyle.Render(pane))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, panes...))
	b.WriteString("\n")
	b.WriteString(helpLine(keys.Login, keys.Refresh, keys.Quit))
	return b.String()
}

func (m AppModel) healthLine() string {
	label := LabelStyle.Render("Backend")
	switch {
	case !m.probed:
		return label + MutedStyle.Render("checking...")
	case m.health.err != nil:
		return label + ErrorStyle.Render("unreachable: "+m.health.err.Error())
	default:
		return label + SuccessStyle.Render(m.health.status)
	}
}

func (m AppModel) probeHealth() tea.Cmd {
	if m.probe == nil {
		return nil
	}
	return func() tea.Msg {
		resp, err := m.probe(m.ctx)
		if err != nil {
			return healthMsg{err: err}
		}
		return healthMsg{status: resp.Status}
	}
}

// RunApp runs the composed UI until the user quits.
func RunApp(ctx context.Context, cfg AppConfig) error {
	_, err := tea.NewProgram(NewAppModel(ctx, cfg), tea.WithAltScreen()).Run()
	return err
}
