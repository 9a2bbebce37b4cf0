package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/trafficdump/pkg/capture"
	"mercator-hq/trafficdump/pkg/capture/redact"
	"mercator-hq/trafficdump/pkg/capture/sampling"
	"mercator-hq/trafficdump/pkg/capture/session"
	"mercator-hq/trafficdump/pkg/dump"
	"mercator-hq/trafficdump/pkg/telemetry/metrics"
)

// Config contains configuration for the capture engine.
type Config struct {
	// LogDir is reported at startup; the writer's layout decides paths.
	LogDir string

	// Sample captures one of every Sample sessions.
	Sample int

	// Limit is the disk budget reported at startup.
	Limit int64

	// Buffer controls body retention per session.
	Buffer session.Config

	// Writer persists finished sessions. Required.
	Writer *dump.Writer

	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Engine ties sampling, per-session buffering and the dump writer
// together. It is safe for concurrent use; each session is driven through
// its own Handle.
type Engine struct {
	pool    *sampling.Pool
	buffer  session.Config
	writer  *dump.Writer
	metrics *metrics.Collector
	logger  *slog.Logger
}

// New creates an engine and logs its effective settings.
func New(cfg Config) (*Engine, error) {
	if cfg.Writer == nil {
		return nil, errors.New("capture engine requires a dump writer")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	e := &Engine{
		pool:    sampling.NewPool(cfg.Sample),
		buffer:  cfg.Buffer,
		writer:  cfg.Writer,
		metrics: cfg.Metrics,
		logger:  cfg.Logger.With("component", "capture.engine"),
	}

	e.logger.Info(fmt.Sprintf("Initialized with log directory: %s", cfg.LogDir),
		"log_dir", cfg.LogDir,
	)
	e.logger.Info(fmt.Sprintf("Initialized with sample pool size %d bytes and disk limit %d bytes", e.pool.Size(), cfg.Limit),
		"sample", e.pool.Size(),
		"limit", cfg.Limit,
		"sensitive_fields", e.writer.Policy().Fields(),
	)
	return e, nil
}

// StartSession admits a new session through the sampler and returns its
// handle. Unsampled sessions get a handle whose calls retain nothing.
func (e *Engine) StartSession(meta capture.SessionMeta) *Handle {
	_, selected := e.pool.Next()
	e.metrics.RecordSessionAdmitted(selected)

	return &Handle{
		engine: e,
		buffer: session.Open(meta, e.buffer, selected),
	}
}

// SetPolicy swaps the sensitive field policy for sessions written from now
// on.
func (e *Engine) SetPolicy(p *redact.Policy) {
	e.writer.SetPolicy(p)
	e.logger.Info("sensitive fields updated", "sensitive_fields", p.Fields())
}

// Policy returns the active sensitive field policy.
func (e *Engine) Policy() *redact.Policy {
	return e.writer.Policy()
}

// Stats returns the number of sessions seen and selected.
func (e *Engine) Stats() (seen, selected uint64) {
	return e.pool.Seen(), e.pool.Selected()
}

// Close drains the writer.
func (e *Engine) Close(ctx context.Context) error {
	return e.writer.Close(ctx)
}

// Handle drives one session's capture. Calls are serialized internally so
// HTTP/2 streams of one connection may share a handle.
type Handle struct {
	engine *Engine

	mu     sync.Mutex
	buffer *session.Buffer
}

// Enabled reports whether the session is being captured.
func (h *Handle) Enabled() bool {
	return h.buffer.Enabled()
}

// ID returns the session id ("" for unsampled sessions without one).
func (h *Handle) ID() string {
	return h.buffer.Meta().ID
}

// Begin starts a transaction with the client's request.
func (h *Handle) Begin(req *capture.Message, start time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.BeginTransaction(req, start)
}

// SetProxyRequest records the request forwarded upstream.
func (h *Handle) SetProxyRequest(req *capture.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.SetProxyRequest(req)
}

// SetServerResponse records the origin's response.
func (h *Handle) SetServerResponse(resp *capture.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.SetServerResponse(resp)
}

// Complete finishes the current transaction with the response sent to the
// client.
func (h *Handle) Complete(resp *capture.Message, timing capture.Timing) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.CompleteTransaction(resp, timing)
}

// Append adds a transaction observed in one piece.
func (h *Handle) Append(tx *capture.Transaction) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.AppendTransaction(tx)
}

// End finalizes the session after a normal close and hands it to the
// writer.
func (h *Handle) End() error {
	return h.finish(false)
}

// Abort finalizes a session whose connection was reset. Completed
// transactions are still written.
func (h *Handle) Abort() error {
	return h.finish(true)
}

func (h *Handle) finish(aborted bool) error {
	h.mu.Lock()
	var (
		s   *capture.Session
		err error
	)
	if aborted {
		s, err = h.buffer.Abort()
	} else {
		s, err = h.buffer.Close()
	}
	h.mu.Unlock()

	switch {
	case errors.Is(err, capture.ErrEmptySession):
		h.engine.writer.Drop(h.buffer.Meta(), dump.ReasonEmpty)
		return nil
	case err != nil:
		return err
	case s == nil:
		return nil
	}
	return h.engine.writer.Submit(s)
}
