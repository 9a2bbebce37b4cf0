// Package telemetry groups the observability packages of the proxy.
//
//   - logging: slog logger with sensitive attribute masking
//   - metrics: Prometheus collector for sampling, output and budget
//   - tracing: OpenTelemetry spans exported over OTLP gRPC
//   - health: liveness and readiness probes
package telemetry
