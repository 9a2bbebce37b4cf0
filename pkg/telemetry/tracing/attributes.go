package tracing

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for capture spans.
const (
	AttrSessionID    = attribute.Key("trafficdump.session.id")
	AttrClientAddr   = attribute.Key("trafficdump.client.addr")
	AttrProtocol     = attribute.Key("trafficdump.protocol")
	AttrTransactions = attribute.Key("trafficdump.transactions")
	AttrState        = attribute.Key("trafficdump.state")
	AttrPath         = attribute.Key("trafficdump.path")
	AttrBytes        = attribute.Key("trafficdump.bytes")
	AttrRedactions   = attribute.Key("trafficdump.redactions")
)

// ServerSpan marks a span as the server side of a request.
func ServerSpan() trace.SpanStartOption {
	return trace.WithSpanKind(trace.SpanKindServer)
}

// RequestAttributes describes an incoming HTTP request.
func RequestAttributes(r *http.Request) trace.SpanStartEventOption {
	return trace.WithAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.target", r.URL.RequestURI()),
		attribute.String("http.flavor", r.Proto),
	)
}

// SetSessionAttributes records the identity of a capture session.
func SetSessionAttributes(span trace.Span, sessionID, clientAddr, protocol string, transactions int) {
	span.SetAttributes(
		AttrSessionID.String(sessionID),
		AttrClientAddr.String(clientAddr),
		AttrProtocol.String(protocol),
		AttrTransactions.Int(transactions),
	)
}

// SetOutcomeAttributes records how a capture ended.
func SetOutcomeAttributes(span trace.Span, state, path string, bytes int64) {
	span.SetAttributes(AttrState.String(state))
	if path != "" {
		span.SetAttributes(AttrPath.String(path), AttrBytes.Int64(bytes))
	}
}
