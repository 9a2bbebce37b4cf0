// Package health serves liveness and readiness probes for the proxy.
//
// Readiness aggregates component checks: the log directory is writable,
// the disk budget still has room, and the writer queue is not saturated.
// A failing check makes /readyz answer 503 with the per-check detail while
// /healthz keeps answering 200 as long as the process runs.
package health
