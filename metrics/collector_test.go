package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("sess-1", "http://localhost:8000/api")

	c.IncStatusCheck()
	c.IncStatusCheck()
	c.IncStatusCheckFailure()
	c.IncLoginStarted()
	c.IncLoginFailure()
	c.IncCallbackReconciled()
	c.IncStreamMessage()
	c.IncStreamMessage()
	c.IncStreamMessage()
	c.IncStreamError()
	c.AddLinesArchived(50)
	c.AddArchiveFailures(3)
	c.IncNotificationPublished()
	c.IncNotificationFailed()
	c.IncNotificationFailed()

	s := c.Snapshot()

	if s.StatusChecks != 2 {
		t.Errorf("StatusChecks = %d, want 2", s.StatusChecks)
	}
	if s.StatusCheckFailures != 1 {
		t.Errorf("StatusCheckFailures = %d, want 1", s.StatusCheckFailures)
	}
	if s.LoginsStarted != 1 {
		t.Errorf("LoginsStarted = %d, want 1", s.LoginsStarted)
	}
	if s.LoginFailures != 1 {
		t.Errorf("LoginFailures = %d, want 1", s.LoginFailures)
	}
	if s.CallbacksReconciled != 1 {
		t.Errorf("CallbacksReconciled = %d, want 1", s.CallbacksReconciled)
	}
	if s.StreamMessages != 3 {
		t.Errorf("StreamMessages = %d, want 3", s.StreamMessages)
	}
	if s.StreamErrors != 1 {
		t.Errorf("StreamErrors = %d, want 1", s.StreamErrors)
	}
	if s.LinesArchived != 50 {
		t.Errorf("LinesArchived = %d, want 50", s.LinesArchived)
	}
	if s.ArchiveFailures != 3 {
		t.Errorf("ArchiveFailures = %d, want 3", s.ArchiveFailures)
	}
	if s.NotificationsPublished != 1 {
		t.Errorf("NotificationsPublished = %d, want 1", s.NotificationsPublished)
	}
	if s.NotificationsFailed != 2 {
		t.Errorf("NotificationsFailed = %d, want 2", s.NotificationsFailed)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("sess-42", "https://fleet.example/api")
	s := c.Snapshot()

	if s.SessionID != "sess-42" {
		t.Errorf("SessionID = %q, want %q", s.SessionID, "sess-42")
	}
	if s.APIBase != "https://fleet.example/api" {
		t.Errorf("APIBase = %q", s.APIBase)
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("sess-1", "")
	c.IncStreamMessage()

	s1 := c.Snapshot()

	c.IncStreamMessage()
	c.IncStreamError()

	if s1.StreamMessages != 1 {
		t.Errorf("s1.StreamMessages = %d, want 1 (snapshot should be frozen)", s1.StreamMessages)
	}
	if s1.StreamErrors != 0 {
		t.Errorf("s1.StreamErrors = %d, want 0 (snapshot should be frozen)", s1.StreamErrors)
	}

	s2 := c.Snapshot()
	if s2.StreamMessages != 2 {
		t.Errorf("s2.StreamMessages = %d, want 2", s2.StreamMessages)
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncStatusCheck()
	c.IncStatusCheckFailure()
	c.IncLoginStarted()
	c.IncLoginFailure()
	c.IncCallbackReconciled()
	c.IncStreamMessage()
	c.IncStreamError()
	c.AddLinesArchived(1)
	c.AddArchiveFailures(1)
	c.IncNotificationPublished()
	c.IncNotificationFailed()

	s := c.Snapshot()
	if s.StreamMessages != 0 {
		t.Errorf("nil collector snapshot StreamMessages = %d, want 0", s.StreamMessages)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("sess-1", "")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncStreamMessage()
				c.IncStatusCheck()
				c.AddLinesArchived(2)
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.StreamMessages != want {
		t.Errorf("StreamMessages = %d, want %d", s.StreamMessages, want)
	}
	if s.StatusChecks != want {
		t.Errorf("StatusChecks = %d, want %d", s.StatusChecks, want)
	}
	if s.LinesArchived != 2*want {
		t.Errorf("LinesArchived = %d, want %d", s.LinesArchived, 2*want)
	}
}
