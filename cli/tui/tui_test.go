package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/fleetview/api"
	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/stream"
)

type fakeSession struct {
	mu       sync.Mutex
	state    auth.State
	checked  auth.State
	logins   int
	loginErr error
}

func (f *fakeSession) State() auth.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) CheckStatus(context.Context) auth.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = f.checked
	return f.state
}

func (f *fakeSession) BeginLogin(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	if f.loginErr != nil {
		f.state = auth.State{Session: auth.Failed{Message: f.loginErr.Error()}}
	}
	return f.loginErr
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestMailbox_KeepsNewest(t *testing.T) {
	mb := NewMailbox[int]()
	mb.Push(1)
	mb.Push(2)
	mb.Push(3)

	if got := <-mb.C(); got != 3 {
		t.Errorf("got %d, want 3", got)
	}
	select {
	case v := <-mb.C():
		t.Errorf("unexpected extra value %d", v)
	default:
	}
}

func TestWaitFor_NilChannel(t *testing.T) {
	if cmd := waitFor[int](nil, func(int) tea.Msg { return nil }); cmd != nil {
		t.Error("expected nil cmd for nil channel")
	}
}

func TestAuthModel_Views(t *testing.T) {
	tests := []struct {
		name  string
		state auth.State
		want  string
	}{
		{"unauthenticated", auth.InitialState(), "Not signed in"},
		{"authenticated", auth.State{Session: auth.Authenticated{TokenPreview: "tok_abc"}}, "tok_abc"},
		{"error", auth.State{Session: auth.Failed{Message: "access denied"}}, "Login failed: access denied"},
		{"pending", auth.State{Session: auth.Unauthenticated{}, PendingRedirect: true}, "Redirecting to authorization"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewAuthModel(t.Context(), &fakeSession{state: tt.state}, nil)
			if got := m.View(); !strings.Contains(got, tt.want) {
				t.Errorf("view missing %q:\n%s", tt.want, got)
			}
		})
	}
}

func TestAuthModel_StateMessageUpdatesView(t *testing.T) {
	mb := NewMailbox[auth.State]()
	m := NewAuthModel(t.Context(), &fakeSession{state: auth.InitialState()}, mb.C())

	mb.Push(auth.State{Session: auth.Authenticated{TokenPreview: "p-123"}})
	msg := m.waitState()()

	next, cmd := m.Update(msg)
	if cmd == nil {
		t.Error("expected the mailbox wait to be re-armed")
	}
	am := next.(AuthModel)
	if am.State().Phase() != auth.PhaseAuthenticated {
		t.Errorf("phase = %v", am.State().Phase())
	}
	if !strings.Contains(am.View(), "p-123") {
		t.Errorf("view:\n%s", am.View())
	}
}

func TestAuthModel_LoginKey(t *testing.T) {
	sess := &fakeSession{state: auth.InitialState()}
	m := NewAuthModel(t.Context(), sess, nil)

	next, cmd := m.Update(runes("l"))
	if cmd == nil {
		t.Fatal("expected login command")
	}
	next, _ = next.Update(cmd())
	if sess.logins != 1 {
		t.Errorf("logins = %d, want 1", sess.logins)
	}
	if !strings.Contains(next.View(), "Browser opened") {
		t.Errorf("view:\n%s", next.View())
	}
}

func TestAuthModel_LoginIgnoredWhilePending(t *testing.T) {
	sess := &fakeSession{state: auth.State{Session: auth.Unauthenticated{}, PendingRedirect: true}}
	m := NewAuthModel(t.Context(), sess, nil)

	if _, cmd := m.Update(runes("l")); cmd != nil {
		t.Error("login should be ignored while a redirect is pending")
	}
}

func TestAuthModel_LoginFailureShowsError(t *testing.T) {
	sess := &fakeSession{state: auth.InitialState(), loginErr: errors.New("failed to get authorize URL")}
	m := NewAuthModel(t.Context(), sess, nil)

	next, cmd := m.Update(runes("l"))
	next, _ = next.Update(cmd())
	if !strings.Contains(next.View(), "failed to get authorize URL") {
		t.Errorf("view:\n%s", next.View())
	}
}

func TestAuthModel_RefreshChecksStatus(t *testing.T) {
	sess := &fakeSession{
		state:   auth.InitialState(),
		checked: auth.State{Session: auth.Authenticated{TokenPreview: "fresh"}},
	}
	m := NewAuthModel(t.Context(), sess, nil)

	_, cmd := m.Update(runes("r"))
	if cmd == nil {
		t.Fatal("expected refresh command")
	}
	next, follow := m.Update(cmd())
	if follow != nil {
		t.Error("a direct status check should not re-arm the mailbox wait")
	}
	if !strings.Contains(next.View(), "fresh") {
		t.Errorf("view:\n%s", next.View())
	}
}

func TestAuthModel_StatusCheckDoesNotOverwriteNewerState(t *testing.T) {
	sess := &fakeSession{
		state:   auth.InitialState(),
		checked: auth.State{Session: auth.Authenticated{TokenPreview: "stale"}},
	}
	m := NewAuthModel(t.Context(), sess, nil)

	msg := m.checkStatus()()
	// a callback error lands after the check returned but before its message
	failed := auth.State{Session: auth.Failed{Message: "Access Denied"}}
	sess.mu.Lock()
	sess.state = failed
	sess.mu.Unlock()
	m, _ = m.update(stateMsg{state: failed})

	m, _ = m.update(msg)
	if !m.State().Equal(failed) {
		t.Errorf("state = %+v, want %+v", m.State(), failed)
	}
	if got := m.View(); !strings.Contains(got, "Login failed: Access Denied") || strings.Contains(got, "stale") {
		t.Errorf("view:\n%s", got)
	}
}

func TestAuthModel_Quit(t *testing.T) {
	m := NewAuthModel(t.Context(), &fakeSession{state: auth.InitialState()}, nil)
	next, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	if next.View() != "" {
		t.Error("view should be empty after quit")
	}
}

func TestStreamModel_Views(t *testing.T) {
	tests := []struct {
		name    string
		snap    stream.Snapshot
		want    []string
		notWant string
	}{
		{
			name:    "not configured",
			snap:    stream.Snapshot{},
			notWant: "Telemetry",
		},
		{
			name:    "connecting",
			snap:    stream.Snapshot{Configured: true},
			want:    []string{"connecting"},
			notWant: "waiting for data",
		},
		{
			name: "waiting",
			snap: stream.Snapshot{Configured: true, Connected: true},
			want: []string{"live", "waiting for data..."},
		},
		{
			name: "lines newest first",
			snap: stream.Snapshot{Configured: true, Connected: true, Lines: []string{"speed=42", "speed=40"}},
			want: []string{"speed=42", "speed=40"},
		},
		{
			name:    "unavailable replaces lines",
			snap:    stream.Snapshot{Configured: true, Unavailable: true, Lines: []string{"last"}},
			want:    []string{"telemetry service unavailable"},
			notWant: "last",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewStreamModel(tt.snap, nil).View()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("view missing %q:\n%s", w, got)
				}
			}
			if tt.notWant != "" && strings.Contains(got, tt.notWant) {
				t.Errorf("view should not contain %q:\n%s", tt.notWant, got)
			}
		})
	}

	got := NewStreamModel(stream.Snapshot{Configured: true, Connected: true, Lines: []string{"line-new", "line-old"}}, nil).View()
	if strings.Index(got, "line-new") > strings.Index(got, "line-old") {
		t.Errorf("newest line should render first:\n%s", got)
	}
}

func TestStreamModel_SnapshotMessages(t *testing.T) {
	mb := NewMailbox[stream.Snapshot]()
	m := NewStreamModel(stream.Snapshot{Configured: true}, mb.C())
	if m.Init() == nil {
		t.Fatal("configured stream should wait for snapshots")
	}

	mb.Push(stream.Snapshot{Configured: true, Connected: true, Lines: []string{"rpm=900"}})
	next, cmd := m.Update(m.waitSnapshot()())
	if cmd == nil {
		t.Error("expected the wait to be re-armed")
	}
	sm := next.(StreamModel)
	if got := sm.Snapshot().Lines; len(got) != 1 || got[0] != "rpm=900" {
		t.Errorf("lines = %v", got)
	}
}

func TestStreamModel_UnavailableKeepsSnapshotLines(t *testing.T) {
	m := NewStreamModel(stream.Snapshot{Configured: true, Unavailable: true, Lines: []string{"old-line"}}, nil)
	if strings.Contains(m.View(), "old-line") {
		t.Errorf("buffer should not render while unavailable:\n%s", m.View())
	}
	if got := m.Snapshot().Lines; len(got) != 1 || got[0] != "old-line" {
		t.Errorf("snapshot lines = %v", got)
	}
}

func TestStreamModel_UnconfiguredInitIsInert(t *testing.T) {
	if cmd := NewStreamModel(stream.Snapshot{}, nil).Init(); cmd != nil {
		t.Error("unconfigured stream should not start any command")
	}
}

func TestAppModel_ComposesPanesAndHealth(t *testing.T) {
	sess := &fakeSession{state: auth.State{Session: auth.Authenticated{TokenPreview: "tok"}}}
	m := NewAppModel(t.Context(), AppConfig{
		APIBase: "http://localhost:8000/api",
		Health: func(context.Context) (*api.HealthResponse, error) {
			return &api.HealthResponse{Status: "ok"}, nil
		},
		Session: sess,
		Stream:  stream.Snapshot{Configured: true, Connected: true, Lines: []string{"lat=1.0"}},
	})

	if got := m.View(); !strings.Contains(got, "checking...") {
		t.Errorf("health should be pending before the probe:\n%s", got)
	}

	next, _ := m.Update(m.probeHealth()())
	got := next.View()
	for _, want := range []string{"http://localhost:8000/api", "ok", "Session", "tok", "Telemetry", "lat=1.0"} {
		if !strings.Contains(got, want) {
			t.Errorf("view missing %q:\n%s", want, got)
		}
	}
}

func TestAppModel_OmitsUnconfiguredStream(t *testing.T) {
	m := NewAppModel(t.Context(), AppConfig{
		Session: &fakeSession{state: auth.InitialState()},
		Stream:  stream.Snapshot{},
	})
	got := m.View()
	for _, unwanted := range []string{"Telemetry", "No telemetry", "telemetry service unavailable"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("view should not contain %q:\n%s", unwanted, got)
		}
	}
	if !strings.Contains(got, "Session") {
		t.Errorf("auth pane missing:\n%s", got)
	}
}

func TestAppModel_HealthFailure(t *testing.T) {
	m := NewAppModel(t.Context(), AppConfig{
		Health: func(context.Context) (*api.HealthResponse, error) {
			return nil, errors.New("connection refused")
		},
		Session: &fakeSession{state: auth.InitialState()},
	})

	next, _ := m.Update(m.probeHealth()())
	if got := next.View(); !strings.Contains(got, "unreachable: connection refused") {
		t.Errorf("view:\n%s", got)
	}
}

func TestAppModel_RoutesStateToAuthPane(t *testing.T) {
	m := NewAppModel(t.Context(), AppConfig{Session: &fakeSession{state: auth.InitialState()}})

	next, _ := m.Update(stateMsg{state: auth.State{Session: auth.Failed{Message: "denied"}}})
	if got := next.View(); !strings.Contains(got, "Login failed: denied") {
		t.Errorf("view:\n%s", got)
	}
}
