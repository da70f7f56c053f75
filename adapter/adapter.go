// Package adapter publishes session change notifications to downstream
// systems.
//
// Adapters are best-effort: the Notifier delivers asynchronously and only
// logs and counts failures.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventTypeSessionChanged is the event_type of every notification.
const EventTypeSessionChanged = "session_changed"

// SessionChangedEvent is published when the session phase changes.
type SessionChangedEvent struct {
	EventType     string `json:"event_type"` // always "session_changed"
	SessionID     string `json:"session_id"`
	Phase         string `json:"phase"`
	PreviousPhase string `json:"previous_phase"`
	TokenPreview  string `json:"token_preview,omitempty"`
	Error         string `json:"error,omitempty"`
	APIBase       string `json:"api_base"`
	Timestamp     string `json:"timestamp"` // RFC 3339
}

// Adapter publishes session change events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *SessionChangedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the wait before retry n (n >= 1): 500ms, 1s, 2s, ...
func Backoff(n int) time.Duration {
	return time.Duration(1<<uint(n-1)) * 500 * time.Millisecond
}

// Retry runs op once plus up to retries more times with exponential backoff.
// It stops early when permanent reports the error as non-retriable. The name
// prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, op func(context.Context) error, permanent func(error) bool) error {
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
