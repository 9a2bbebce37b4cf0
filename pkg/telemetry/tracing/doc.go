// Package tracing wires OpenTelemetry tracing for the proxy.
//
// When enabled, spans are exported over OTLP gRPC to the configured
// collector and W3C trace context is propagated on proxied requests. When
// disabled, a no-op tracer is used and nothing leaves the process.
//
// Spans:
//
//   - proxy.request: one per proxied HTTP exchange
//   - capture.write: one per replay file attempt, carrying the session id,
//     outcome state, path and byte count
package tracing
