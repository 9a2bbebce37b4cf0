package metrics

import (
	"time"

	"mercator-hq/trafficdump/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns every Prometheus metric exported by the proxy. All methods
// are safe on a nil receiver and on a disabled collector, so callers never
// need to guard metric calls.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	capture *CaptureMetrics
	budget  *BudgetMetrics
	proxy   *ProxyMetrics
}

// NewCollector creates a collector registered with registry. If registry is
// nil a fresh one is created.
//
// Example:
//
//	cfg := config.NewDefault().Telemetry.Metrics
//	collector := metrics.NewCollector(&cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := *cfg
	if c.Namespace == "" {
		c.Namespace = config.DefaultMetricsNamespace
	}
	if c.Subsystem == "" {
		c.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(c.WriteDurationBuckets) == 0 {
		c.WriteDurationBuckets = prometheus.ExponentialBuckets(0.0001, 4, 8)
	}
	if len(c.DocumentSizeBuckets) == 0 {
		c.DocumentSizeBuckets = prometheus.ExponentialBuckets(1024, 4, 8)
	}

	return &Collector{
		enabled:  config.Bool(cfg.Enabled, true),
		registry: registry,
		capture:  NewCaptureMetrics(&c, registry),
		budget:   NewBudgetMetrics(&c, registry),
		proxy:    NewProxyMetrics(&c, registry),
	}
}

func (c *Collector) on() bool {
	return c != nil && c.enabled
}

// RecordSessionAdmitted counts a session seen by the sampler.
func (c *Collector) RecordSessionAdmitted(selected bool) {
	if !c.on() {
		return
	}
	c.capture.RecordAdmitted(selected)
}

// RecordOutcome records the terminal state of a capture. Bytes and duration
// are only observed for written captures.
func (c *Collector) RecordOutcome(state string, bytes int64, duration time.Duration) {
	if !c.on() {
		return
	}
	c.capture.RecordOutcome(state, bytes, duration)
}

// RecordDropped counts a session that finished without a file, by reason.
func (c *Collector) RecordDropped(reason string) {
	if !c.on() {
		return
	}
	c.capture.RecordDropped(reason)
}

// RecordRedactions counts header values replaced by placeholders.
func (c *Collector) RecordRedactions(n int) {
	if !c.on() || n <= 0 {
		return
	}
	c.capture.RecordRedactions(n)
}

// SetQueueDepth reports the number of sessions waiting for a writer.
func (c *Collector) SetQueueDepth(n int) {
	if !c.on() {
		return
	}
	c.capture.SetQueueDepth(n)
}

// UpdateBudget reports disk budget usage.
func (c *Collector) UpdateBudget(used, limit int64) {
	if !c.on() {
		return
	}
	c.budget.Update(used, limit)
}

// RecordBudgetRejection counts a reservation the budget refused.
func (c *Collector) RecordBudgetRejection() {
	if !c.on() {
		return
	}
	c.budget.RecordRejection()
}

// RecordProxyRequest records a proxied HTTP exchange.
func (c *Collector) RecordProxyRequest(protocol, method string, status int, duration time.Duration) {
	if !c.on() {
		return
	}
	c.proxy.RecordRequest(protocol, method, status, duration)
}

// ConnectionOpened increments the live connection gauge.
func (c *Collector) ConnectionOpened() {
	if !c.on() {
		return
	}
	c.proxy.activeConnections.Inc()
}

// ConnectionClosed decrements the live connection gauge.
func (c *Collector) ConnectionClosed() {
	if !c.on() {
		return
	}
	c.proxy.activeConnections.Dec()
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
