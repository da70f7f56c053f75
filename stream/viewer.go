// Package stream shows the most recent lines of a live telemetry feed.
//
// A Viewer activates one Handle per mount. Each handle owns a connection, a
// bounded ring of lines and a single reader goroutine, so lines are applied
// in delivery order. There is no reconnection: after an error the handle
// reports the service as unavailable and keeps the lines it has.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pithecene-io/fleetview/log"
	"github.com/pithecene-io/fleetview/metrics"
)

// Recorder receives every line the viewer accepts. Close flushes.
type Recorder interface {
	Record(line string)
	Close() error
}

// Snapshot is a point-in-time view of a handle.
type Snapshot struct {
	// Lines are newest first.
	Lines []string `json:"lines" yaml:"lines"`
	// Connected is true after a successful open, false after error or close.
	Connected bool `json:"connected" yaml:"connected"`
	// Configured is false when no stream address was supplied.
	Configured bool `json:"configured" yaml:"configured"`
	// Unavailable is true once a connection error was observed.
	Unavailable bool `json:"unavailable" yaml:"unavailable"`
	// LastError is the connection error text, if any.
	LastError string `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// Waiting reports whether the stream is open but nothing has arrived yet.
func (s Snapshot) Waiting() bool {
	return s.Connected && len(s.Lines) == 0
}

// ViewerOption configures a Viewer.
type ViewerOption func(*Viewer)

// WithCapacity sets the number of lines kept per handle.
func WithCapacity(n int) ViewerOption {
	return func(v *Viewer) { v.capacity = n }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ViewerOption {
	return func(v *Viewer) { v.logger = log.OrNop(l).Named("stream") }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) ViewerOption {
	return func(v *Viewer) { v.metrics = m }
}

// WithRecorder archives accepted lines. The recorder is closed when the
// handle is deactivated.
func WithRecorder(r Recorder) ViewerOption {
	return func(v *Viewer) { v.recorder = r }
}

// WithObserver registers a callback invoked from the reader goroutine after
// every change.
func WithObserver(o func(Snapshot)) ViewerOption {
	return func(v *Viewer) {
		if o != nil {
			v.observers = append(v.observers, o)
		}
	}
}

// Viewer creates handles sharing one dialer and configuration.
type Viewer struct {
	dialer    Dialer
	capacity  int
	logger    *log.Logger
	metrics   *metrics.Collector
	recorder  Recorder
	observers []func(Snapshot)
}

// NewViewer creates a viewer.
func NewViewer(dialer Dialer, opts ...ViewerOption) *Viewer {
	v := &Viewer{
		dialer:   dialer,
		capacity: DefaultCapacity,
		logger:   log.Nop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Activate opens the stream at address in the background. An empty address
// returns an inert handle that never dials.
func (v *Viewer) Activate(ctx context.Context, address string) *Handle {
	h := &Handle{
		v:    v,
		buf:  NewBuffer(v.capacity),
		done: make(chan struct{}),
	}
	if address == "" {
		h.closed = true
		close(h.done)
		v.logger.Debug("no stream address configured", nil)
		return h
	}

	h.configured = true
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx, address)
	return h
}

// Handle is one activation of the viewer.
type Handle struct {
	v      *Viewer
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu          sync.Mutex
	buf         *Buffer
	conn        Conn
	configured  bool
	connected   bool
	unavailable bool
	lastErr     string
	closed      bool
}

// Snapshot returns the current view.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Handle) snapshotLocked() Snapshot {
	return Snapshot{
		Lines:       h.buf.Lines(),
		Connected:   h.connected,
		Configured:  h.configured,
		Unavailable: h.unavailable,
		LastError:   h.lastErr,
	}
}

// Done is closed when the reader goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Deactivate closes the connection, waits for the reader and closes the
// recorder. Safe to call more than once; later calls return nil.
func (h *Handle) Deactivate() error {
	var err error
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.connected = false
		conn := h.conn
		h.mu.Unlock()

		if h.cancel != nil {
			h.cancel()
		}
		if conn != nil {
			if cerr := conn.Close(); cerr != nil {
				h.v.logger.Debug("close stream", map[string]any{"error": cerr.Error()})
			}
		}
		<-h.done

		if h.configured && h.v.recorder != nil {
			if rerr := h.v.recorder.Close(); rerr != nil {
				h.v.logger.Warn("archive flush failed", map[string]any{"error": rerr.Error()})
				err = rerr
			}
		}
	})
	return err
}

func (h *Handle) run(ctx context.Context, address string) {
	defer close(h.done)

	conn, err := h.v.dialer.Dial(ctx, address)
	if err != nil {
		h.fail(err)
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.conn = conn
	h.connected = true
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.v.logger.Info("stream connected", nil)
	h.notify(snap)

	for {
		line, err := conn.Next()
		if err != nil {
			h.fail(err)
			return
		}
		h.accept(line)
	}
}

func (h *Handle) accept(line string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.buf.Push(line)
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.v.metrics.IncStreamMessage()
	if h.v.recorder != nil {
		h.v.recorder.Record(line)
	}
	h.notify(snap)
}

// fail records a connection error or end of stream. Errors caused by
// Deactivate are not reported.
func (h *Handle) fail(err error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.connected = false
	h.unavailable = true
	if errors.Is(err, io.EOF) {
		h.lastErr = "stream closed by server"
	} else {
		h.lastErr = err.Error()
	}
	snap := h.snapshotLocked()
	h.mu.Unlock()

	h.v.metrics.IncStreamError()
	h.v.logger.Warn("stream unavailable", map[string]any{"error": snap.LastError})
	h.notify(snap)
}

func (h *Handle) notify(s Snapshot) {
	for _, o := range h.v.observers {
		o(s)
	}
}
