package auth

import "encoding/json"

// Phase is the coarse session phase.
type Phase int

const (
	// PhaseUnauthenticated means no live user token is known.
	PhaseUnauthenticated Phase = iota
	// PhaseAuthenticated means the backend reported an active user token.
	PhaseAuthenticated
	// PhaseError means the last login attempt or callback failed.
	PhaseError
)

// String returns the wire name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseError:
		return "error"
	default:
		return "unauthenticated"
	}
}

// Session is the tagged union of session variants.
// Exactly one of Unauthenticated, Authenticated or Failed.
type Session interface {
	Phase() Phase
	session()
}

// Unauthenticated is the initial variant.
type Unauthenticated struct{}

// Authenticated carries the backend's short token identifier.
type Authenticated struct {
	TokenPreview string
}

// Failed carries a human-readable error message.
type Failed struct {
	Message string
}

// Phase implements Session.
func (Unauthenticated) Phase() Phase { return PhaseUnauthenticated }

// Phase implements Session.
func (Authenticated) Phase() Phase { return PhaseAuthenticated }

// Phase implements Session.
func (Failed) Phase() Phase { return PhaseError }

func (Unauthenticated) session() {}
func (Authenticated) session()   {}
func (Failed) session()          {}

// State is the coordinator's whole session view.
type State struct {
	Session Session
	// PendingRedirect is true between requesting an authorization URL and
	// handing it to the navigator.
	PendingRedirect bool
}

// InitialState is the state at mount.
func InitialState() State {
	return State{Session: Unauthenticated{}}
}

// Phase returns the session phase.
func (s State) Phase() Phase {
	if s.Session == nil {
		return PhaseUnauthenticated
	}
	return s.Session.Phase()
}

// TokenPreview returns the token preview when authenticated.
func (s State) TokenPreview() (string, bool) {
	a, ok := s.Session.(Authenticated)
	return a.TokenPreview, ok
}

// ErrorMessage returns the error message when in the error phase.
func (s State) ErrorMessage() (string, bool) {
	f, ok := s.Session.(Failed)
	return f.Message, ok
}

// Equal reports whether two states are identical.
func (s State) Equal(o State) bool {
	if s.PendingRedirect != o.PendingRedirect || s.Phase() != o.Phase() {
		return false
	}
	sp, _ := s.TokenPreview()
	op, _ := o.TokenPreview()
	se, _ := s.ErrorMessage()
	oe, _ := o.ErrorMessage()
	return sp == op && se == oe
}

// View is the flat, renderable projection of a State.
type View struct {
	Phase           string `json:"phase" yaml:"phase"`
	TokenPreview    string `json:"token_preview,omitempty" yaml:"token_preview,omitempty"`
	Error           string `json:"error,omitempty" yaml:"error,omitempty"`
	PendingRedirect bool   `json:"pending_redirect" yaml:"pending_redirect"`
}

// View flattens the state for rendering.
func (s State) View() View {
	v := View{
		Phase:           s.Phase().String(),
		PendingRedirect: s.PendingRedirect,
	}
	v.TokenPreview, _ = s.TokenPreview()
	v.Error, _ = s.ErrorMessage()
	return v
}

// MarshalJSON encodes the flattened view.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.View())
}
