package metrics

import (
	"time"

	"mercator-hq/trafficdump/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CaptureMetrics tracks sampling and replay file output.
//
// Metrics:
//   - trafficdump_capture_sessions_total: sessions seen, by sampled=true|false
//   - trafficdump_capture_outcomes_total: captures by terminal state
//   - trafficdump_capture_dropped_total: sessions finished without a file, by reason
//   - trafficdump_capture_bytes_written_total: replay bytes written
//   - trafficdump_capture_write_duration_seconds: serialize and write latency
//   - trafficdump_capture_document_size_bytes: replay file sizes
//   - trafficdump_capture_redactions_total: header values masked
//   - trafficdump_capture_queue_depth: sessions waiting for a writer
type CaptureMetrics struct {
	sessionsTotal  *prometheus.CounterVec
	outcomesTotal  *prometheus.CounterVec
	droppedTotal   *prometheus.CounterVec
	bytesWritten   prometheus.Counter
	writeDuration  prometheus.Histogram
	documentSize   prometheus.Histogram
	redactionTotal prometheus.Counter
	queueDepth     prometheus.Gauge
}

// NewCaptureMetrics creates and registers capture metrics.
func NewCaptureMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CaptureMetrics {
	m := &CaptureMetrics{
		sessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "sessions_total",
				Help:      "Total number of sessions seen by the sampler",
			},
			[]string{"sampled"},
		),
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "outcomes_total",
				Help:      "Total number of captures by terminal state",
			},
			[]string{"state"},
		),
		droppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "dropped_total",
				Help:      "Total number of sampled sessions finished without a replay file",
			},
			[]string{"reason"},
		),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "bytes_written_total",
			Help:      "Total replay bytes written to disk",
		}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "write_duration_seconds",
			Help:      "Time spent serializing and writing a replay file",
			Buckets:   cfg.WriteDurationBuckets,
		}),
		documentSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "document_size_bytes",
			Help:      "Size of written replay files in bytes",
			Buckets:   cfg.DocumentSizeBuckets,
		}),
		redactionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "redactions_total",
			Help:      "Total number of header values replaced by placeholders",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "queue_depth",
			Help:      "Number of sessions waiting for a writer",
		}),
	}

	registry.MustRegister(
		m.sessionsTotal,
		m.outcomesTotal,
		m.droppedTotal,
		m.bytesWritten,
		m.writeDuration,
		m.documentSize,
		m.redactionTotal,
		m.queueDepth,
	)

	return m
}

// RecordAdmitted counts a session by sampling decision.
func (m *CaptureMetrics) RecordAdmitted(selected bool) {
	if selected {
		m.sessionsTotal.WithLabelValues("true").Inc()
		return
	}
	m.sessionsTotal.WithLabelValues("false").Inc()
}

// RecordOutcome counts a terminal state.
func (m *CaptureMetrics) RecordOutcome(state string, bytes int64, duration time.Duration) {
	m.outcomesTotal.WithLabelValues(state).Inc()
	if bytes > 0 {
		m.bytesWritten.Add(float64(bytes))
		m.documentSize.Observe(float64(bytes))
		m.writeDuration.Observe(duration.Seconds())
	}
}

// RecordDropped counts a session finished without a file.
func (m *CaptureMetrics) RecordDropped(reason string) {
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// RecordRedactions adds n masked values.
func (m *CaptureMetrics) RecordRedactions(n int) {
	m.redactionTotal.Add(float64(n))
}

// SetQueueDepth sets the writer queue gauge.
func (m *CaptureMetrics) SetQueueDepth(n int) {
	m.queueDepth.Set(float64(n))
}
