package diskbudget

import "sync/atomic"

// Budget is the process-wide disk budget shared by every session.
//
// Reservation is a single compare-and-swap on the consumed total, so
// concurrent sessions can never jointly overcommit the ceiling and no
// lock is taken on the request path.
type Budget struct {
	limit     int64
	threshold float64

	used         atomic.Int64
	reservations atomic.Uint64
	rejections   atomic.Uint64
}

// New creates a budget with the given configuration. A non-positive
// limit yields a budget that rejects every reservation.
//
// Example:
//
//	budget := diskbudget.New(diskbudget.Config{
//	    Limit:          1_000_000_000, // 1 GB of replay files
//	    AlertThreshold: 0.9,
//	})
func New(cfg Config) *Budget {
	b := &Budget{
		limit:     max(cfg.Limit, 0),
		threshold: cfg.AlertThreshold,
	}
	b.used.Store(min(max(cfg.InitialUsed, 0), b.limit))
	return b
}

// TryReserve commits n bytes if they fit under the ceiling and reports
// whether they did. On failure consumption is unchanged.
func (b *Budget) TryReserve(n int64) bool {
	if n < 0 {
		return false
	}
	for {
		cur := b.used.Load()
		next := cur + n
		if next > b.limit || next < cur {
			b.rejections.Add(1)
			return false
		}
		if b.used.CompareAndSwap(cur, next) {
			b.reservations.Add(1)
			return true
		}
	}
}

// Release gives back n bytes of an earlier reservation whose write was
// aborted. Consumption never drops below zero.
func (b *Budget) Release(n int64) {
	if n <= 0 {
		return
	}
	for {
		cur := b.used.Load()
		next := max(cur-n, 0)
		if b.used.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Used returns the bytes committed so far.
func (b *Budget) Used() int64 {
	return b.used.Load()
}

// Limit returns the configured ceiling.
func (b *Budget) Limit() int64 {
	return b.limit
}

// Remaining returns the bytes still available.
func (b *Budget) Remaining() int64 {
	return b.limit - b.used.Load()
}

// Status returns a snapshot of the budget.
func (b *Budget) Status() *Status {
	used := b.used.Load()

	var percentage float64
	if b.limit > 0 {
		percentage = float64(used) / float64(b.limit)
	}

	return &Status{
		Limit:          b.limit,
		Used:           used,
		Remaining:      b.limit - used,
		Percentage:     percentage,
		Exhausted:      used >= b.limit,
		AlertTriggered: b.threshold > 0 && percentage >= b.threshold,
		Reservations:   b.reservations.Load(),
		Rejections:     b.rejections.Load(),
	}
}
