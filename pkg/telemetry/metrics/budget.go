package metrics

import (
	"mercator-hq/trafficdump/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BudgetMetrics mirrors the disk budget state.
type BudgetMetrics struct {
	used       prometheus.Gauge
	limit      prometheus.Gauge
	usage      prometheus.Gauge
	rejections prometheus.Counter
}

// NewBudgetMetrics creates and registers disk budget metrics.
func NewBudgetMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BudgetMetrics {
	m := &BudgetMetrics{
		used: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "disk_used_bytes",
			Help:      "Bytes of replay output charged against the disk budget",
		}),
		limit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "disk_limit_bytes",
			Help:      "Configured disk budget in bytes",
		}),
		usage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "disk_usage_ratio",
			Help:      "Fraction of the disk budget in use (0.0-1.0)",
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "disk_rejections_total",
			Help:      "Total number of writes refused by the disk budget",
		}),
	}

	registry.MustRegister(m.used, m.limit, m.usage, m.rejections)
	return m
}

// Update sets the usage gauges.
func (m *BudgetMetrics) Update(used, limit int64) {
	m.used.Set(float64(used))
	m.limit.Set(float64(limit))
	if limit > 0 {
		m.usage.Set(float64(used) / float64(limit))
	}
}

// RecordRejection counts a refused reservation.
func (m *BudgetMetrics) RecordRejection() {
	m.rejections.Inc()
}
