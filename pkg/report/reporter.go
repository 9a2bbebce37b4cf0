package report

import (
	"context"
	"log/slog"
	"time"

	"mercator-hq/trafficdump/pkg/catalog"
	"mercator-hq/trafficdump/pkg/limits/diskbudget"
	"mercator-hq/trafficdump/pkg/telemetry/metrics"
)

// StatsFunc returns the number of sessions seen and selected for capture.
type StatsFunc func() (seen, selected uint64)

// Snapshot is one usage report.
type Snapshot struct {
	Time     time.Time
	Budget   *diskbudget.Status
	Seen     uint64
	Selected uint64

	// CatalogBytes is -1 when no catalog is configured.
	CatalogBytes int64
}

// Reporter collects usage figures from the budget, the sampler and the
// catalog and logs them.
type Reporter struct {
	budget  *diskbudget.Budget
	stats   StatsFunc
	catalog catalog.Catalog
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewReporter creates a reporter. stats and cat may be nil.
func NewReporter(budget *diskbudget.Budget, stats StatsFunc, cat catalog.Catalog, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		budget:  budget,
		stats:   stats,
		catalog: cat,
		logger:  logger.With("component", "report"),
	}
}

// WithMetrics makes each report refresh the budget gauges.
func (r *Reporter) WithMetrics(m *metrics.Collector) *Reporter {
	r.metrics = m
	return r
}

// Collect builds a snapshot without logging it.
func (r *Reporter) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Time:         time.Now(),
		Budget:       r.budget.Status(),
		CatalogBytes: -1,
	}
	if r.stats != nil {
		snap.Seen, snap.Selected = r.stats()
	}
	if r.catalog != nil {
		total, err := r.catalog.TotalBytes(ctx)
		if err != nil {
			return snap, err
		}
		snap.CatalogBytes = total
	}
	return snap, nil
}

// Report collects a snapshot and logs it. Crossing the budget alert
// threshold is logged as a warning.
func (r *Reporter) Report(ctx context.Context) (*Snapshot, error) {
	snap, err := r.Collect(ctx)
	if err != nil {
		r.logger.Error("failed to read catalog for usage report", "error", err)
	}
	r.metrics.UpdateBudget(snap.Budget.Used, snap.Budget.Limit)

	attrs := []any{
		"used", snap.Budget.Used,
		"remaining", snap.Budget.Remaining,
		"limit", snap.Budget.Limit,
		"percentage", snap.Budget.Percentage,
		"rejections", snap.Budget.Rejections,
		"sessions_seen", snap.Seen,
		"sessions_selected", snap.Selected,
	}
	if snap.CatalogBytes >= 0 {
		attrs = append(attrs, "catalog_bytes", snap.CatalogBytes)
	}

	switch {
	case snap.Budget.Exhausted:
		r.logger.Warn("capture usage report: disk budget exhausted", attrs...)
	case snap.Budget.AlertTriggered:
		r.logger.Warn("capture usage report: disk budget above alert threshold", attrs...)
	default:
		r.logger.Info("capture usage report", attrs...)
	}
	return snap, err
}
