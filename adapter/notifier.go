package adapter

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/fleetview/auth"
	"github.com/pithecene-io/fleetview/log"
	"github.com/pithecene-io/fleetview/metrics"
	"github.com/pithecene-io/fleetview/types"
)

// DefaultPublishTimeout bounds one notification including retries.
const DefaultPublishTimeout = 30 * time.Second

// Notifier turns coordinator states into session_changed events.
// Observe is registered with auth.WithObserver.
type Notifier struct {
	adapter Adapter
	meta    *types.SessionMeta
	apiBase string
	logger  *log.Logger
	metrics *metrics.Collector
	timeout time.Duration
	now     func() time.Time

	mu   sync.Mutex
	prev auth.View
	wg   sync.WaitGroup
}

// NewNotifier creates a notifier publishing through a.
func NewNotifier(a Adapter, meta *types.SessionMeta, apiBase string, logger *log.Logger, m *metrics.Collector) *Notifier {
	return &Notifier{
		adapter: a,
		meta:    meta,
		apiBase: apiBase,
		logger:  log.OrNop(logger).Named("adapter"),
		metrics: m,
		timeout: DefaultPublishTimeout,
		now:     time.Now,
		prev:    sessionView(auth.InitialState()),
	}
}

// sessionView drops the redirect flag, which is not a session change.
func sessionView(s auth.State) auth.View {
	v := s.View()
	v.PendingRedirect = false
	return v
}

// Observe publishes when the session differs from the last observed one:
// a new phase, token preview or error message. Delivery runs in the
// background.
func (n *Notifier) Observe(s auth.State) {
	view := sessionView(s)

	n.mu.Lock()
	prev := n.prev
	if view == prev {
		n.mu.Unlock()
		return
	}
	n.prev = view
	n.wg.Add(1)
	n.mu.Unlock()

	event := &SessionChangedEvent{
		EventType:     EventTypeSessionChanged,
		Phase:         view.Phase,
		PreviousPhase: prev.Phase,
		TokenPreview:  view.TokenPreview,
		Error:         view.Error,
		APIBase:       n.apiBase,
		Timestamp:     n.now().UTC().Format(time.RFC3339),
	}
	if n.meta != nil {
		event.SessionID = n.meta.SessionID
	}

	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.adapter.Publish(ctx, event); err != nil {
			n.metrics.IncNotificationFailed()
			n.logger.Warn("session notification failed", map[string]any{
				"phase": event.Phase,
				"error": err.Error(),
			})
			return
		}
		n.metrics.IncNotificationPublished()
		n.logger.Debug("session notification published", map[string]any{"phase": event.Phase})
	}()
}

// Close waits for in-flight notifications and closes the adapter.
func (n *Notifier) Close() error {
	n.wg.Wait()
	return n.adapter.Close()
}
