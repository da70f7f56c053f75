// Package metrics provides per-process counters for the auth and stream paths.
//
// The Collector is a leaf package with no internal dependencies. Every
// increment method is nil-receiver safe so components can be built without
// a collector in tests.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Auth coordinator
	StatusChecks        int64 `json:"status_checks"`
	StatusCheckFailures int64 `json:"status_check_failures"`
	LoginsStarted       int64 `json:"logins_started"`
	LoginFailures       int64 `json:"login_failures"`
	CallbacksReconciled int64 `json:"callbacks_reconciled"`

	// Stream viewer
	StreamMessages int64 `json:"stream_messages"`
	StreamErrors   int64 `json:"stream_errors"`

	// Archive (per line, not per batch)
	LinesArchived   int64 `json:"lines_archived"`
	ArchiveFailures int64 `json:"archive_failures"`

	// Notifications
	NotificationsPublished int64 `json:"notifications_published"`
	NotificationsFailed    int64 `json:"notifications_failed"`

	// Dimensions (informational, set at construction)
	SessionID string `json:"session_id"`
	APIBase   string `json:"api_base"`
}

// Collector accumulates counters for one fleetview process.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	statusChecks        int64
	statusCheckFailures int64
	loginsStarted       int64
	loginFailures       int64
	callbacksReconciled int64

	streamMessages int64
	streamErrors   int64

	linesArchived   int64
	archiveFailures int64

	notificationsPublished int64
	notificationsFailed    int64

	sessionID string
	apiBase   string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, apiBase string) *Collector {
	return &Collector{
		sessionID: sessionID,
		apiBase:   apiBase,
	}
}

func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Auth ---

// IncStatusCheck records a successful status check.
func (c *Collector) IncStatusCheck() {
	if c == nil {
		return
	}
	c.add(&c.statusChecks, 1)
}

// IncStatusCheckFailure records a swallowed status check failure.
func (c *Collector) IncStatusCheckFailure() {
	if c == nil {
		return
	}
	c.add(&c.statusCheckFailures, 1)
}

// IncLoginStarted records a login attempt.
func (c *Collector) IncLoginStarted() {
	if c == nil {
		return
	}
	c.add(&c.loginsStarted, 1)
}

// IncLoginFailure records a login attempt that ended in the error state.
func (c *Collector) IncLoginFailure() {
	if c == nil {
		return
	}
	c.add(&c.loginFailures, 1)
}

// IncCallbackReconciled records a return trip carrying success or error.
func (c *Collector) IncCallbackReconciled() {
	if c == nil {
		return
	}
	c.add(&c.callbacksReconciled, 1)
}

// --- Stream ---

// IncStreamMessage records one inbound stream message.
func (c *Collector) IncStreamMessage() {
	if c == nil {
		return
	}
	c.add(&c.streamMessages, 1)
}

// IncStreamError records a connection error.
func (c *Collector) IncStreamError() {
	if c == nil {
		return
	}
	c.add(&c.streamErrors, 1)
}

// --- Archive ---
// Archive counters are per line. A batch of N lines counts N.

// AddLinesArchived records n lines durably written.
func (c *Collector) AddLinesArchived(n int) {
	if c == nil {
		return
	}
	c.add(&c.linesArchived, int64(n))
}

// AddArchiveFailures records n lines that could not be written.
func (c *Collector) AddArchiveFailures(n int) {
	if c == nil {
		return
	}
	c.add(&c.archiveFailures, int64(n))
}

// --- Notifications ---

// IncNotificationPublished records a delivered session notification.
func (c *Collector) IncNotificationPublished() {
	if c == nil {
		return
	}
	c.add(&c.notificationsPublished, 1)
}

// IncNotificationFailed records a notification that exhausted its retries.
func (c *Collector) IncNotificationFailed() {
	if c == nil {
		return
	}
	c.add(&c.notificationsFailed, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		StatusChecks:        c.statusChecks,
		StatusCheckFailures: c.statusCheckFailures,
		LoginsStarted:       c.loginsStarted,
		LoginFailures:       c.loginFailures,
		CallbacksReconciled: c.callbacksReconciled,

		StreamMessages: c.streamMessages,
		StreamErrors:   c.streamErrors,

		LinesArchived:   c.linesArchived,
		ArchiveFailures: c.archiveFailures,

		NotificationsPublished: c.notificationsPublished,
		NotificationsFailed:    c.notificationsFailed,

		SessionID: c.sessionID,
		APIBase:   c.apiBase,
	}
}
