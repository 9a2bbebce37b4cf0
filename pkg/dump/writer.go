package dump

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"mercator-hq/trafficdump/pkg/capture"
	"mercator-hq/trafficdump/pkg/capture/redact"
	"mercator-hq/trafficdump/pkg/catalog"
	"mercator-hq/trafficdump/pkg/limits/diskbudget"
	"mercator-hq/trafficdump/pkg/replay"
	"mercator-hq/trafficdump/pkg/telemetry/metrics"
	"mercator-hq/trafficdump/pkg/telemetry/tracing"
)

// maxCreateAttempts bounds the search for an unused file name when files
// from a previous run already occupy the low counters.
const maxCreateAttempts = 1024

// Config contains configuration for the dump writer.
type Config struct {
	// Layout decides where files go. Required.
	Layout *Layout

	// Budget caps total bytes written. Required.
	Budget *diskbudget.Budget

	// Policy is the initial sensitive field policy.
	// Default: redact.NewPolicy(nil)
	Policy *redact.Policy

	// Catalog, when set, records every written file.
	Catalog catalog.Catalog

	// Metrics and Tracer are optional.
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer

	// QueueSize is the capacity of the async queue.
	// Default: 1024
	QueueSize int

	// Workers is the number of goroutines draining the queue.
	// Default: 2
	Workers int

	// WriteTimeout bounds catalog calls for one session.
	// Default: 5 seconds
	WriteTimeout time.Duration

	// OnOutcome is called after every terminal outcome, from the goroutine
	// that produced it.
	OnOutcome func(Outcome)

	Logger *slog.Logger
}

// Writer turns finished sessions into replay files. Submit hands a session
// to a background worker and never blocks; Write does the same work on the
// calling goroutine.
type Writer struct {
	layout  *Layout
	budget  *diskbudget.Budget
	catalog catalog.Catalog
	metrics *metrics.Collector
	tracer  *tracing.Tracer
	timeout time.Duration
	notify  func(Outcome)
	logger  *slog.Logger

	policy atomic.Pointer[redact.Policy]

	queue  chan *capture.Session
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewWriter creates a writer and starts its workers.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Layout == nil {
		return nil, errors.New("dump writer requires a layout")
	}
	if cfg.Budget == nil {
		return nil, errors.New("dump writer requires a disk budget")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.Policy == nil {
		cfg.Policy = redact.NewPolicy(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	w := &Writer{
		layout:  cfg.Layout,
		budget:  cfg.Budget,
		catalog: cfg.Catalog,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		timeout: cfg.WriteTimeout,
		notify:  cfg.OnOutcome,
		logger:  cfg.Logger.With("component", "dump.writer"),
		queue:   make(chan *capture.Session, cfg.QueueSize),
	}
	w.policy.Store(cfg.Policy)

	for i := 0; i < cfg.Workers; i++ {
		w.wg.Add(1)
		go w.worker()
	}

	w.metrics.UpdateBudget(w.budget.Used(), w.budget.Limit())
	return w, nil
}

// SetPolicy swaps the sensitive field policy. Sessions already being
// written keep the policy they started with.
func (w *Writer) SetPolicy(p *redact.Policy) {
	w.policy.Store(p)
}

// Policy returns the active policy.
func (w *Writer) Policy() *redact.Policy {
	return w.policy.Load()
}

// Submit queues s for writing. It returns ErrQueueFull when every slot is
// taken and ErrWriterClosed after Close; in both cases the session is
// dropped and logged.
func (w *Writer) Submit(s *capture.Session) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		w.Drop(s.Meta, ReasonClosed)
		return capture.NewCaptureError(s.Meta.ID, capture.ErrWriterClosed)
	}

	select {
	case w.queue <- s:
		w.metrics.SetQueueDepth(len(w.queue))
		return nil
	default:
		w.Drop(s.Meta, ReasonQueueFull)
		return capture.NewCaptureError(s.Meta.ID, capture.ErrQueueFull)
	}
}

// Drop reports a session that ends without a file.
func (w *Writer) Drop(meta capture.SessionMeta, reason string) {
	w.finish(Outcome{
		SessionID:  meta.ID,
		ClientAddr: meta.ClientAddr,
		State:      StateRejected,
		Reason:     reason,
	})
}

// Write redacts, serializes and persists s, returning the terminal outcome.
func (w *Writer) Write(ctx context.Context, s *capture.Session) Outcome {
	start := time.Now()
	ctx, span := w.tracer.Start(ctx, "capture.write")
	defer span.End()
	tracing.SetSessionAttributes(span, s.Meta.ID, s.Meta.ClientAddr, string(s.Meta.Protocol), len(s.Transactions))

	out := w.write(ctx, s)
	out.Duration = time.Since(start)

	tracing.SetOutcomeAttributes(span, out.State.String(), out.Path, out.Bytes)
	if out.Err != nil {
		tracing.SetError(span, out.Err)
	}

	w.finish(out)
	return out
}

func (w *Writer) write(ctx context.Context, s *capture.Session) Outcome {
	out := Outcome{
		SessionID:  s.Meta.ID,
		ClientAddr: s.Meta.ClientAddr,
		State:      StatePending,
	}

	if len(s.Transactions) == 0 {
		out.State = StateRejected
		out.Reason = ReasonEmpty
		return out
	}

	policy := w.policy.Load()
	out.Redactions = redact.Count(s, policy)
	data, err := replay.Serialize(redact.Session(s, policy))
	if err != nil {
		out.State = StateRejected
		out.Reason = ReasonSerialize
		out.Err = capture.NewCaptureError(s.Meta.ID, err)
		return out
	}

	size := int64(len(data))
	if !w.budget.TryReserve(size) {
		w.metrics.RecordBudgetRejection()
		w.logger.Warn("Disk budget exhausted, dropping session capture",
			"session_id", s.Meta.ID,
			"size", size,
			"used", w.budget.Used(),
			"limit", w.budget.Limit(),
		)
		out.State = StateRejected
		out.Reason = ReasonRejected
		out.Err = capture.NewCaptureError(s.Meta.ID, capture.ErrBudgetExhausted)
		return out
	}
	out.State = StateReserved

	path, err := w.create(s.Meta.ClientAddr, data)
	if err != nil {
		w.budget.Release(size)
		out.State = StateAborted
		out.Reason = ReasonAborted
		out.Err = capture.NewCaptureError(s.Meta.ID, err)
		return out
	}

	out.State = StateWritten
	out.Path = path
	out.Bytes = size

	if w.catalog != nil {
		cctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		if err := w.catalog.Record(cctx, &catalog.Entry{
			SessionID:    s.Meta.ID,
			ClientAddr:   s.Meta.ClientAddr,
			Protocol:     string(s.Meta.Protocol),
			Path:         path,
			Bytes:        size,
			Transactions: len(s.Transactions),
			WrittenAt:    time.Now(),
		}); err != nil {
			w.logger.Error("failed to catalog capture", "path", path, "error", err)
		}
	}
	return out
}

// create writes data to the next free path for addr. Names already taken
// on disk are skipped so a restart never overwrites earlier captures.
func (w *Writer) create(addr string, data []byte) (string, error) {
	dir := w.layout.ShardDir(addr)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", capture.NewWriteError(dir, "mkdir", err)
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		path := w.layout.Allocate(addr)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", capture.NewWriteError(path, "create", err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", capture.NewWriteError(path, "write", err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			os.Remove(path)
			return "", capture.NewWriteError(path, "sync", err)
		}
		if err := f.Close(); err != nil {
			os.Remove(path)
			return "", capture.NewWriteError(path, "close", err)
		}
		return path, nil
	}
	return "", capture.NewWriteError(dir, "create", fmt.Errorf("no free file name after %d attempts", maxCreateAttempts))
}

func (w *Writer) finish(out Outcome) {
	switch out.State {
	case StateWritten:
		w.logger.Info(fmt.Sprintf("Finish a session with log file of %d bytes", out.Bytes),
			"session_id", out.SessionID,
			"path", out.Path,
			"bytes", out.Bytes,
			"redactions", out.Redactions,
			"duration_ms", out.Duration.Milliseconds(),
		)
		w.metrics.RecordRedactions(out.Redactions)
	default:
		attrs := []any{"session_id", out.SessionID, "reason", out.Reason}
		if out.Err != nil {
			attrs = append(attrs, "error", out.Err)
		}
		if out.State == StateAborted {
			w.logger.Error("Finish a session without a log file", attrs...)
		} else {
			w.logger.Info("Finish a session without a log file", attrs...)
		}
		w.metrics.RecordDropped(out.Reason)
	}

	w.metrics.RecordOutcome(out.State.String(), out.Bytes, out.Duration)
	w.metrics.UpdateBudget(w.budget.Used(), w.budget.Limit())

	if w.notify != nil {
		w.notify(out)
	}
}

func (w *Writer) worker() {
	defer w.wg.Done()
	for s := range w.queue {
		w.metrics.SetQueueDepth(len(w.queue))
		w.Write(context.Background(), s)
	}
}

// QueueLen returns the number of sessions waiting for a worker.
func (w *Writer) QueueLen() int {
	return len(w.queue)
}

// QueueCap returns the queue capacity.
func (w *Writer) QueueCap() int {
	return cap(w.queue)
}

// Close stops accepting sessions and waits until queued ones are written
// or ctx expires.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	pending := len(w.queue)
	close(w.queue)
	w.mu.Unlock()

	w.logger.Info("draining dump writer", "pending", pending)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("dump writer stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dump writer drain interrupted: %w", ctx.Err())
	}
}
