package archive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/fleetview/log"
	"github.com/pithecene-io/fleetview/metrics"
)

// DefaultBatchSize is the number of lines buffered before a write.
const DefaultBatchSize = 50

// writeTimeout bounds one dataset write.
const writeTimeout = 30 * time.Second

// RecordKindLine is the record_kind of archived telemetry lines.
const RecordKindLine = "telemetry_line"

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("archive recorder closed")

// LineRecord is the stored form of one line.
type LineRecord struct {
	RecordKind string `json:"record_kind"`
	SessionID  string `json:"session_id"`
	Seq        int64  `json:"seq"`
	Line       string `json:"line"`
	ReceivedAt string `json:"received_at"` // RFC 3339, nanoseconds

	// Partition keys
	Source string `json:"source"`
	Day    string `json:"day"`
}

func (r LineRecord) toMap() map[string]any {
	return map[string]any{
		"record_kind": r.RecordKind,
		"session_id":  r.SessionID,
		"seq":         r.Seq,
		"line":        r.Line,
		"received_at": r.ReceivedAt,
		"source":      r.Source,
		"day":         r.Day,
	}
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Source is the partition key naming the stream origin (usually its host).
	Source string
	// SessionID tags every record.
	SessionID string
	// BatchSize defaults to DefaultBatchSize.
	BatchSize int
	Logger    *log.Logger
	Metrics   *metrics.Collector
}

// Recorder batches lines and writes them to a dataset from its own
// goroutine, so a slow store never blocks Record. Failures are logged and
// counted; the lines of a failed batch are dropped, as are full batches
// that find the write queue full.
type Recorder struct {
	ds      lode.Dataset
	cfg     RecorderConfig
	logger  *log.Logger
	metrics *metrics.Collector
	now     func() time.Time

	mu      sync.Mutex
	pending []LineRecord
	seq     int64
	closed  bool

	jobs chan writeJob
	done chan struct{}
}

// writeJob is one batch for the writer. result, when set, receives the
// write error.
type writeJob struct {
	batch  []LineRecord
	result chan error
}

// writeQueue is the number of full batches waiting for the writer.
const writeQueue = 8

// NewRecorder creates a recorder writing to ds.
func NewRecorder(ds lode.Dataset, cfg RecorderConfig) *Recorder {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Source == "" {
		cfg.Source = "unknown"
	}
	r := &Recorder{
		ds:      ds,
		cfg:     cfg,
		logger:  log.OrNop(cfg.Logger).Named("archive"),
		metrics: cfg.Metrics,
		now:     time.Now,
		jobs:    make(chan writeJob, writeQueue),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for j := range r.jobs {
		err := r.write(j.batch)
		if j.result != nil {
			j.result <- err
		}
	}
}

// Record queues a line. A full batch is handed to the writer.
func (r *Recorder) Record(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.seq++
	at := r.now()
	r.pending = append(r.pending, LineRecord{
		RecordKind: RecordKindLine,
		SessionID:  r.cfg.SessionID,
		Seq:        r.seq,
		Line:       line,
		ReceivedAt: at.UTC().Format(time.RFC3339Nano),
		Source:     r.cfg.Source,
		Day:        DeriveDay(at),
	})
	if len(r.pending) < r.cfg.BatchSize {
		return
	}

	batch := r.pending
	r.pending = nil
	select {
	case r.jobs <- writeJob{batch: batch}:
	default:
		r.metrics.AddArchiveFailures(len(batch))
		r.logger.Warn("archive writer behind, batch dropped", map[string]any{"lines": len(batch)})
	}
}

// Flush writes any queued lines and waits for the writer to catch up.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	result := make(chan error, 1)
	r.jobs <- writeJob{batch: r.pending, result: result}
	r.pending = nil
	r.mu.Unlock()
	return <-result
}

// Close flushes, stops the writer and stops accepting lines. Safe to call
// more than once.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	result := make(chan error, 1)
	r.jobs <- writeJob{batch: r.pending, result: result}
	r.pending = nil
	close(r.jobs)
	r.mu.Unlock()

	err := <-result
	<-r.done
	return err
}

func (r *Recorder) write(batch []LineRecord) error {
	if len(batch) == 0 {
		return nil
	}

	records := make([]any, len(batch))
	for i, rec := range batch {
		records[i] = rec.toMap()
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if _, err := r.ds.Write(ctx, records, lode.Metadata{}); err != nil {
		werr := WrapWriteError(err, string(r.ds.ID()))
		r.metrics.AddArchiveFailures(len(batch))
		r.logger.Warn("archive write failed", map[string]any{
			"lines": len(batch),
			"kind":  Kind(werr).Error(),
			"error": err.Error(),
		})
		return werr
	}

	r.metrics.AddLinesArchived(len(batch))
	r.logger.Debug("archive batch written", map[string]any{"lines": len(batch)})
	return nil
}
