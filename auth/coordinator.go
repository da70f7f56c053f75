// Package auth coordinates the third-party OAuth login round trip.
//
// The Coordinator owns the session view. It asks the backend for an
// authorization URL, hands it to a Navigator (the system browser), and turns
// the query parameters of the return trip into a verified session state by
// re-reading the backend's status endpoint.
//
// Every successful status check replaces the whole state; failures of the
// background check are logged and otherwise ignored. Only login-initiation
// and callback-reported failures reach the user, as the error phase.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pithecene-io/fleetview/api"
	"github.com/pithecene-io/fleetview/log"
	"github.com/pithecene-io/fleetview/metrics"
)

// Return-trip query parameters set by the backend callback redirect.
const (
	ParamSuccess = "success"
	ParamError   = "error"
)

// DefaultRecheckDelay gives the backend's session write time to become
// visible to the status endpoint before the post-callback check.
const DefaultRecheckDelay = time.Second

// DefaultRecheckTimeout bounds the deferred status check.
const DefaultRecheckTimeout = 10 * time.Second

// fallbackCallbackError is shown when the callback sends an empty error.
const fallbackCallbackError = "authorization failed"

// ErrLoginPending is returned by BeginLogin while a redirect is in flight.
var ErrLoginPending = errors.New("login already in progress")

// Backend is the subset of the backend client the coordinator reads.
type Backend interface {
	AuthStatus(ctx context.Context) (*api.AuthStatus, error)
	AuthorizeURL(ctx context.Context) (string, error)
}

// Scheduler runs f once after d. The coordinator never cancels a scheduled
// call; it guards the callback instead.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// Observer receives every new state after it is stored.
// Observers run synchronously and must not call BeginLogin, CheckStatus or
// Reconcile.
type Observer func(State)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithScheduler replaces the timer used for the deferred status check.
func WithScheduler(s Scheduler) Option {
	return func(c *Coordinator) { c.sched = s }
}

// WithRecheckDelay sets the delay before the post-callback status check.
func WithRecheckDelay(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = log.OrNop(l).Named("auth") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithObserver registers a state observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// Coordinator drives the login round trip and owns the session state.
// Safe for concurrent use; concurrent status checks resolve as last
// response wins.
type Coordinator struct {
	backend   Backend
	nav       Navigator
	sched     Scheduler
	delay     time.Duration
	logger    *log.Logger
	metrics   *metrics.Collector
	observers []Observer

	// ctx is canceled by Close so an in-flight deferred check stops early.
	ctx    context.Context
	cancel context.CancelFunc

	// notifyMu orders store+notify pairs so observers see states in the
	// order they were stored.
	notifyMu sync.Mutex

	mu      sync.Mutex
	state   State
	closed  bool
	pending sync.WaitGroup
}

// New creates a coordinator in the unauthenticated state.
func New(backend Backend, nav Navigator, opts ...Option) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		backend: backend,
		nav:     nav,
		sched:   timeScheduler{},
		delay:   DefaultRecheckDelay,
		logger:  log.Nop(),
		ctx:     ctx,
		cancel:  cancel,
		state:   InitialState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current session state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CheckStatus reads the backend status endpoint and replaces the state.
// On any failure the previous state is kept and the failure is only logged.
func (c *Coordinator) CheckStatus(ctx context.Context) State {
	status, err := c.backend.AuthStatus(ctx)
	if err != nil {
		c.metrics.IncStatusCheckFailure()
		c.logger.Warn("status check failed", map[string]any{"error": err.Error()})
		return c.State()
	}
	c.metrics.IncStatusCheck()

	next := State{Session: Unauthenticated{}}
	if status.Active() {
		next.Session = Authenticated{TokenPreview: status.Preview()}
	}
	c.logger.Debug("status checked", map[string]any{"phase": next.Phase().String()})
	return c.store(func(State) State { return next })
}

// BeginLogin requests an authorization URL and navigates to it.
// On failure the state moves to the error phase and the error is returned.
// On success the state is reset to unauthenticated: the session now lives
// in the browser until the callback returns.
func (c *Coordinator) BeginLogin(ctx context.Context) error {
	started := false
	c.store(func(s State) State {
		if s.PendingRedirect {
			return s
		}
		started = true
		s.PendingRedirect = true
		if _, failed := s.Session.(Failed); failed {
			s.Session = Unauthenticated{}
		}
		return s
	})
	if !started {
		return ErrLoginPending
	}
	c.metrics.IncLoginStarted()

	target, err := c.backend.AuthorizeURL(ctx)
	if err != nil {
		return c.failLogin("failed to get authorize URL", err)
	}

	c.logger.Info("navigating to authorization endpoint", map[string]any{"host": hostOf(target)})
	if err := c.nav.Navigate(ctx, target); err != nil {
		return c.failLogin("failed to open authorization page", err)
	}

	c.store(func(State) State { return InitialState() })
	return nil
}

func (c *Coordinator) failLogin(msg string, err error) error {
	c.metrics.IncLoginFailure()
	c.logger.Error("login failed", map[string]any{"reason": msg, "error": err.Error()})
	c.store(func(State) State {
		return State{Session: Failed{Message: fmt.Sprintf("%s: %v", msg, err)}}
	})
	return fmt.Errorf("%s: %w", msg, err)
}

// Reconcile interprets the return address of the OAuth round trip.
//
// An error parameter moves the state to the error phase with the decoded
// message. Otherwise a success parameter schedules exactly one status check
// after the recheck delay. In both cases the address is returned with its
// query and fragment removed, path preserved, so a reload does not reconcile
// again. Without either parameter nothing happens and the input is returned.
func (c *Coordinator) Reconcile(returnURL *url.URL) *url.URL {
	if returnURL == nil {
		return nil
	}
	q := returnURL.Query()

	switch {
	case q.Has(ParamError):
		c.metrics.IncCallbackReconciled()
		msg := decodeCallbackError(q.Get(ParamError))
		c.logger.Warn("authorization callback reported an error", map[string]any{"error": msg})
		c.store(func(State) State { return State{Session: Failed{Message: msg}} })
	case q.Has(ParamSuccess):
		c.metrics.IncCallbackReconciled()
		c.logger.Info("authorization callback succeeded, scheduling status check",
			map[string]any{"delay_ms": c.delay.Milliseconds()})
		c.scheduleRecheck()
	default:
		return returnURL
	}

	return stripQuery(returnURL)
}

// Wait blocks until every scheduled status check has fired.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Close tears the coordinator down. Scheduled checks that fire afterwards do
// nothing, and state changes are no longer stored or observed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
}

func (c *Coordinator) scheduleRecheck() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending.Add(1)
	c.mu.Unlock()

	c.sched.AfterFunc(c.delay, func() {
		defer c.pending.Done()
		if c.isClosed() {
			c.logger.Debug("deferred status check skipped: coordinator closed", nil)
			return
		}
		ctx, cancel := context.WithTimeout(c.ctx, DefaultRecheckTimeout)
		defer cancel()
		c.CheckStatus(ctx)
	})
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// store applies fn to the current state and notifies observers when the
// result differs. After Close it returns the current state unchanged.
func (c *Coordinator) store(fn func(State) State) State {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		s := c.state
		c.mu.Unlock()
		return s
	}
	prev := c.state
	next := fn(prev)
	c.state = next
	c.mu.Unlock()

	if !prev.Equal(next) {
		for _, o := range c.observers {
			o(next)
		}
	}
	return next
}

// decodeCallbackError decodes the error parameter a second time when it is
// still percent-encoded; backends differ in whether they escape once or twice.
func decodeCallbackError(raw string) string {
	msg := raw
	if strings.Contains(msg, "%") {
		if decoded, err := url.PathUnescape(msg); err == nil {
			msg = decoded
		}
	}
	if strings.TrimSpace(msg) == "" {
		return fallbackCallbackError
	}
	return msg
}

func stripQuery(u *url.URL) *url.URL {
	out := *u
	out.RawQuery = ""
	out.ForceQuery = false
	out.Fragment = ""
	out.RawFragment = ""
	return &out
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
