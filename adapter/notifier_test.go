package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/metrics"
	"github.com/pithecene-io/fleetview/types"
)

type memAdapter struct {
	mu     sync.Mutex
	events []*SessionChangedEvent
	err    error
	closed bool
}

func (m *memAdapter) Publish(_ context.Context, e *SessionChangedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return m.err
}

func (m *memAdapter) Close() error {
	m.closed = true
	return nil
}

func TestNotifier_PublishesPhaseChanges(t *testing.T) {
	mem := &memAdapter{}
	meta := &types.SessionMeta{SessionID: "sess-9", Surface: "cli"}
	m := metrics.NewCollector("sess-9", "")
	n := NewNotifier(mem, meta, "http://api.local", nil, m)
	n.now = func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }

	n.Observe(auth.State{Session: auth.Unauthenticated{}, PendingRedirect: true})
	n.Observe(auth.State{Session: auth.Authenticated{TokenPreview: "abc"}})
	n.Observe(auth.State{Session: auth.Authenticated{TokenPreview: "abc"}})
	n.Observe(auth.State{Session: auth.Failed{Message: "denied"}})

	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !mem.closed {
		t.Error("adapter not closed")
	}
	if len(mem.events) != 2 {
		t.Fatalf("events = %d, want 2", len(mem.events))
	}

	byPhase := map[string]*SessionChangedEvent{}
	for _, e := range mem.events {
		byPhase[e.Phase] = e
	}
	a := byPhase["authenticated"]
	if a == nil || a.PreviousPhase != "unauthenticated" || a.TokenPreview != "abc" {
		t.Errorf("authenticated event = %+v", a)
	}
	if a != nil && (a.SessionID != "sess-9" || a.Timestamp != "2026-10-17T09:00:00Z" || a.EventType != EventTypeSessionChanged) {
		t.Errorf("event fields = %+v", a)
	}
	if f := byPhase["error"]; f == nil || f.Error != "denied" || f.PreviousPhase != "authenticated" {
		t.Errorf("error event = %+v", f)
	}
	if s := m.Snapshot(); s.NotificationsPublished != 2 {
		t.Errorf("NotificationsPublished = %d", s.NotificationsPublished)
	}
}

func TestNotifier_PublishesNewErrorMessage(t *testing.T) {
	mem := &memAdapter{}
	n := NewNotifier(mem, nil, "", nil, nil)

	n.Observe(auth.State{Session: auth.Failed{Message: "Access Denied"}})
	n.Observe(auth.State{Session: auth.Failed{Message: "Access Denied"}, PendingRedirect: true})
	n.Observe(auth.State{Session: auth.Failed{Message: "Invalid state"}})

	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(mem.events) != 2 {
		t.Fatalf("events = %d, want 2", len(mem.events))
	}
	var sawSecond bool
	for _, e := range mem.events {
		if e.Error == "Invalid state" {
			sawSecond = true
			if e.PreviousPhase != "error" {
				t.Errorf("previous phase = %q, want error", e.PreviousPhase)
			}
		}
	}
	if !sawSecond {
		t.Error("second error message was not published")
	}
}

func TestNotifier_FailureCounted(t *testing.T) {
	mem := &memAdapter{err: errors.New("down")}
	m := metrics.NewCollector("", "")
	n := NewNotifier(mem, nil, "", nil, m)

	n.Observe(auth.State{Session: auth.Failed{Message: "x"}})
	_ = n.Close()

	if s := m.Snapshot(); s.NotificationsFailed != 1 || s.NotificationsPublished != 0 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), "test", 2, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil || calls != 2 {
		t.Errorf("err=%v calls=%d", err, calls)
	}

	permanent := errors.New("permanent")
	calls = 0
	err = Retry(t.Context(), "test", 5, func(context.Context) error {
		calls++
		return permanent
	}, func(e error) bool { return errors.Is(e, permanent) })
	if !errors.Is(err, permanent) || calls != 1 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	for i, w := range want {
		if got := Backoff(i + 1); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}
