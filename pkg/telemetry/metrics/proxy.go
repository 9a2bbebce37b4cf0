package metrics

import (
	"strconv"
	"time"

	"mercator-hq/trafficdump/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ProxyMetrics tracks the HTTP traffic passing through the proxy. These use
// the "proxy" subsystem regardless of the configured capture subsystem.
type ProxyMetrics struct {
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	activeConnections prometheus.Gauge
}

// NewProxyMetrics creates and registers proxy metrics.
func NewProxyMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProxyMetrics {
	m := &ProxyMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of proxied requests",
			},
			[]string{"protocol", "method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "proxy",
				Name:      "request_duration_seconds",
				Help:      "Duration of proxied requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"protocol"},
		),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "proxy",
			Name:      "active_connections",
			Help:      "Number of open client connections",
		}),
	}

	registry.MustRegister(m.requestsTotal, m.requestDuration, m.activeConnections)
	return m
}

// RecordRequest records one proxied exchange.
func (m *ProxyMetrics) RecordRequest(protocol, method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(protocol, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(protocol).Observe(duration.Seconds())
}
