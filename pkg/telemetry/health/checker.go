package health

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Status values reported by checks and by the aggregate.
const (
	StatusOK        = "ok"
	StatusReady     = "ready"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// CheckFunc reports nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one check. Duration is in milliseconds.
type CheckResult struct {
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration float64 `json:"duration_ms,omitempty"`
}

// HealthStatus is the aggregate answer served by the probe endpoints.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// ErrCheckTimeout is reported when a check does not return in time.
var ErrCheckTimeout = errors.New("health check timeout")

// Checker runs named component checks concurrently.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
}

// New creates a checker. A zero or negative timeout defaults to 5 seconds
// per check. A check that outlives its timeout is reported unhealthy with
// ErrCheckTimeout.
//
// Usage:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("log_dir", health.LogDirCheck("/var/log/trafficdump"))
//	checker.RegisterCheck("disk_budget", health.BudgetCheck(budget))
//	status := checker.CheckReadiness(ctx)
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck registers check under name, replacing any check already
// registered with that name. The name becomes the key in the "checks"
// object of the readiness response. It is safe to call while readiness
// requests are being served.
//
// Example:
//
//	checker.RegisterCheck("writer_queue", func(ctx context.Context) error {
//	    if writer.QueueLen() == writer.QueueCap() {
//	        return errors.New("writer queue full")
//	    }
//	    return nil
//	})
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// ListChecks returns the registered check names in sorted order.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is running.
func (c *Checker) CheckLiveness(ctx context.Context) HealthStatus {
	return HealthStatus{Status: StatusOK, Timestamp: time.Now()}
}

// CheckReadiness runs every registered check and reports "degraded" if any
// of them fails.
func (c *Checker) CheckReadiness(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := c.runCheck(ctx, check)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()

	status := StatusReady
	for _, result := range results {
		if result.Status == StatusUnhealthy {
			status = StatusDegraded
		}
	}

	return HealthStatus{Status: status, Checks: results, Timestamp: time.Now()}
}

func (c *Checker) runCheck(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check(checkCtx)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-checkCtx.Done():
		err = ErrCheckTimeout
	}

	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: err.Error(), Duration: elapsed}
	}
	return CheckResult{Status: StatusOK, Duration: elapsed}
}
