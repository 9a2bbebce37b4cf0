package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"mercator-hq/trafficdump/pkg/limits/diskbudget"
)

// BudgetCheck fails once the disk budget has no room left. Capture keeps
// proxying traffic in that state, but nothing more is recorded.
func BudgetCheck(b *diskbudget.Budget) CheckFunc {
	return func(ctx context.Context) error {
		st := b.Status()
		if st.Exhausted {
			return fmt.Errorf("disk budget exhausted: %d of %d bytes used", st.Used, st.Limit)
		}
		return nil
	}
}

// LogDirCheck fails when dir cannot be created or written.
func LogDirCheck(dir string) CheckFunc {
	return func(ctx context.Context) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("log directory unavailable: %w", err)
		}
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return fmt.Errorf("log directory not writable: %w", err)
		}
		name := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(name))
	}
}

// QueueReporter exposes the depth of a bounded work queue.
type QueueReporter interface {
	QueueLen() int
	QueueCap() int
}

// QueueCheck fails when the writer queue is full, meaning new sessions are
// being dropped.
func QueueCheck(q QueueReporter) CheckFunc {
	return func(ctx context.Context) error {
		if n, c := q.QueueLen(), q.QueueCap(); c > 0 && n >= c {
			return fmt.Errorf("writer queue full (%d/%d)", n, c)
		}
		return nil
	}
}
