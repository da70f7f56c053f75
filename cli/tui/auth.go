package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/fleetview/auth"
)

// SessionController is the slice of the auth coordinator the TUI drives.
type SessionController interface {
	State() auth.State
	CheckStatus(ctx context.Context) auth.State
	BeginLogin(ctx context.Context) error
}

// stateMsg comes from the observer mailbox; checkedMsg from a status check
// this model started. Only the former re-arms the mailbox wait.
type stateMsg struct{ state auth.State }

type checkedMsg struct{}

type loginDoneMsg struct{ err error }

// AuthModel renders the session pane.
type AuthModel struct {
	ctx      context.Context
	session  SessionController
	updates  <-chan auth.State
	state    auth.State
	spinner  spinner.Model
	notice   string
	quitting bool
}

// NewAuthModel creates the session pane. updates receives every state the
// coordinator stores; it may be nil.
func NewAuthModel(ctx context.Context, session SessionController, updates <-chan auth.State) AuthModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = WarningStyle
	return AuthModel{
		ctx:     ctx,
		session: session,
		updates: updates,
		state:   session.State(),
		spinner: s,
	}
}

// State returns the last state the model saw.
func (m AuthModel) State() auth.State {
	return m.state
}

// Init implements tea.Model. The first status check runs at mount.
func (m AuthModel) Init() tea.Cmd {
	return tea.Batch(m.checkStatus(), m.waitState(), m.spinner.Tick)
}

// Update implements tea.Model.
func (m AuthModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && key.Matches(k, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m.update(msg)
}

func (m AuthModel) update(msg tea.Msg) (AuthModel, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		m.state = msg.state
		return m, m.waitState()

	case checkedMsg:
		// an observer update may have landed after the check returned
		m.state = m.session.State()
		return m, nil

	case loginDoneMsg:
		if msg.err == nil {
			m.notice = "Browser opened. Finish signing in there."
		}
		m.state = m.session.State()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Login):
			if m.state.PendingRedirect {
				return m, nil
			}
			m.notice = ""
			return m, m.beginLogin()
		case key.Matches(msg, keys.Refresh):
			return m, m.checkStatus()
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m AuthModel) View() string {
	if m.quitting {
		return ""
	}
	return m.render() + "\n" + helpLine(keys.Login, keys.Refresh, keys.Quit)
}

func (m AuthModel) render() string {
	v := m.state.View()

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", LabelStyle.Render("Phase"), PhaseStyle(v.Phase).Render(v.Phase))

	switch {
	case v.PendingRedirect:
		fmt.Fprintf(&b, "%s Redirecting to authorization...", m.spinner.View())
	case v.Phase == "authenticated":
		fmt.Fprintf(&b, "%s%s", LabelStyle.Render("Token"), ValueStyle.Render(v.TokenPreview))
	case v.Phase == "error":
		b.WriteString(ErrorStyle.Render("Login failed: " + v.Error))
	default:
		b.WriteString(MutedStyle.Render("Not signed in. Press l to log in."))
	}
	if m.notice != "" && !v.PendingRedirect {
		b.WriteString("\n")
		b.WriteString(MutedStyle.Render(m.notice))
	}
	return b.String()
}

func (m AuthModel) checkStatus() tea.Cmd {
	return func() tea.Msg {
		m.session.CheckStatus(m.ctx)
		return checkedMsg{}
	}
}

func (m AuthModel) beginLogin() tea.Cmd {
	return func() tea.Msg {
		return loginDoneMsg{err: m.session.BeginLogin(m.ctx)}
	}
}

func (m AuthModel) waitState() tea.Cmd {
	return waitFor(m.updates, func(s auth.State) tea.Msg { return stateMsg{state: s} })
}

// RunAuth runs the session pane on its own.
func RunAuth(ctx context.Context, session SessionController, updates <-chan auth.State) error {
	_, err := tea.NewProgram(NewAuthModel(ctx, session, updates), tea.WithAltScreen()).Run()
	return err
}
