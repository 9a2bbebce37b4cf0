// Package metrics exports Prometheus metrics for sampling, replay output,
// the disk budget and proxied traffic.
//
// Metrics live in a dedicated registry owned by the Collector and are served
// by Collector.Handler, normally mounted at /metrics on the admin listener.
// A disabled or nil Collector turns every recording call into a no-op.
package metrics
