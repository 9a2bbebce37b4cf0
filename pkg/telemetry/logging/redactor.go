package logging

import (
	"context"
	"log/slog"
	"sync/atomic"

	"mercator-hq/trafficdump/pkg/capture/redact"
)

// Redactor masks log attribute values whose key names a sensitive field,
// using the same placeholder written into replay files. The policy can be
// swapped at runtime when the configuration reloads.
type Redactor struct {
	policy atomic.Pointer[redact.Policy]
}

// NewRedactor creates a redactor for the given policy.
func NewRedactor(p *redact.Policy) *Redactor {
	r := &Redactor{}
	r.SetPolicy(p)
	return r
}

// SetPolicy replaces the active policy.
func (r *Redactor) SetPolicy(p *redact.Policy) {
	r.policy.Store(p)
}

// Policy returns the active policy.
func (r *Redactor) Policy() *redact.Policy {
	return r.policy.Load()
}

// Handler wraps next so that every record passes through the redactor.
func (r *Redactor) Handler(next slog.Handler) slog.Handler {
	return &redactHandler{next: next, redactor: r}
}

// RedactAttr returns a with its value masked when its key is sensitive.
// Group values are walked recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	p := r.policy.Load()
	if p == nil {
		return a
	}
	return redactAttr(a, p)
}

func redactAttr(a slog.Attr, p *redact.Policy) slog.Attr {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = redactAttr(ga, p)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	if !p.IsSensitive(a.Key) {
		return a
	}
	return slog.String(a.Key, redact.Placeholder(len(v.String())))
}

type redactHandler struct {
	next     slog.Handler
	redactor *Redactor
}

func (h *redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(h.redactor.RedactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.redactor.RedactAttr(a)
	}
	return &redactHandler{next: h.next.WithAttrs(masked), redactor: h.redactor}
}

func (h *redactHandler) WithGroup(name string) slog.Handler {
	return &redactHandler{next: h.next.WithGroup(name), redactor: h.redactor}
}
