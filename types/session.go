package types

import "github.com/google/uuid"

// SessionMeta identifies one fleetview process.
// It is attached to every log line, notification and archived record so
// output from concurrent terminals can be told apart.
type SessionMeta struct {
	// SessionID is a random UUID minted at startup.
	SessionID string
	// Surface names the entrypoint: "cli" or "tui".
	Surface string
}

// NewSessionMeta mints a fresh session identity for the given surface.
func NewSessionMeta(surface string) *SessionMeta {
	return &SessionMeta{
		SessionID: uuid.NewString(),
		Surface:   surface,
	}
}
