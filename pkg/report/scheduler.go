package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the reporter on a cron schedule.
type Scheduler struct {
	reporter *Reporter
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewScheduler creates a scheduler for the given cron expression.
func NewScheduler(reporter *Reporter, schedule string) *Scheduler {
	return &Scheduler{
		reporter: reporter,
		schedule: schedule,
		cron:     cron.New(),
		logger:   reporter.logger.With("component", "report.scheduler"),
	}
}

// Start schedules reports. Standard five-field expressions and descriptors
// such as "@every 1m" or "@hourly" are accepted. An empty schedule leaves
// the scheduler idle. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("report schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.reporter.Report(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule report: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("report scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for a running report to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("report scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled report time, or nil when idle.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
