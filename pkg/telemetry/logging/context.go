package logging

import (
	"context"
	"log/slog"
)

// Context keys for common log fields.
type contextKey string

const (
	// SessionIDKey is the context key for capture session identifiers.
	SessionIDKey contextKey = "session_id"

	// TransactionIDKey is the context key for transaction UUIDs.
	TransactionIDKey contextKey = "transaction_id"

	// ClientAddrKey is the context key for the client address.
	ClientAddrKey contextKey = "client_addr"
)

// WithSessionID adds a session ID to the context.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SessionIDKey, id)
}

// GetSessionID retrieves the session ID from the context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTransactionID adds a transaction UUID to the context.
func WithTransactionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TransactionIDKey, id)
}

// GetTransactionID retrieves the transaction UUID from the context.
func GetTransactionID(ctx context.Context) string {
	if id, ok := ctx.Value(TransactionIDKey).(string); ok {
		return id
	}
	return ""
}

// WithClientAddr adds the client address to the context.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, ClientAddrKey, addr)
}

// GetClientAddr retrieves the client address from the context.
func GetClientAddr(ctx context.Context) string {
	if addr, ok := ctx.Value(ClientAddrKey).(string); ok {
		return addr
	}
	return ""
}

// extractContextFields returns the context values as slog attributes.
func extractContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if v := GetSessionID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(SessionIDKey), v))
	}
	if v := GetTransactionID(ctx); v != "" {
		attrs = append(attrs, slog.String(string(TransactionIDKey), v))
	}
	if v := GetClientAddr(ctx); v != "" {
		attrs = append(attrs, slog.String(string(ClientAddrKey), v))
	}
	return attrs
}

// contextHandler adds context fields to records logged with a context.
type contextHandler struct {
	next slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if attrs := extractContextFields(ctx); len(attrs) > 0 {
		rec = rec.Clone()
		rec.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{next: h.next.WithGroup(name)}
}
