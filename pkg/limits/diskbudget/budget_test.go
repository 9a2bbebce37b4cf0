package diskbudget

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
)

func TestBudget_ReserveWithinLimit(t *testing.T) {
	b := New(Config{Limit: 100})

	if !b.TryReserve(60) {
		t.Fatal("expected first reservation to fit")
	}
	if !b.TryReserve(40) {
		t.Fatal("expected reservation up to the limit to fit")
	}
	if b.TryReserve(1) {
		t.Fatal("expected reservation beyond the limit to fail")
	}
	if b.Used() != 100 {
		t.Errorf("expected used 100, got %d", b.Used())
	}
}

func TestBudget_FailureLeavesConsumptionUnchanged(t *testing.T) {
	b := New(Config{Limit: 100})
	b.TryReserve(30)

	if b.TryReserve(71) {
		t.Fatal("expected reservation to fail")
	}
	if b.Used() != 30 {
		t.Errorf("expected used 30 after failed reservation, got %d", b.Used())
	}
}

func TestBudget_ReleaseRestoresExactly(t *testing.T) {
	b := New(Config{Limit: 1000})
	b.TryReserve(250)
	before := b.Used()

	b.TryReserve(500)
	b.Release(500)

	if b.Used() != before {
		t.Errorf("expected used %d after release, got %d", before, b.Used())
	}
}

func TestBudget_ReleaseNeverNegative(t *testing.T) {
	b := New(Config{Limit: 1000})
	b.TryReserve(10)
	b.Release(50)

	if b.Used() != 0 {
		t.Errorf("expected used 0, got %d", b.Used())
	}
}

func TestBudget_InvalidInputs(t *testing.T) {
	b := New(Config{Limit: 100})

	if b.TryReserve(-1) {
		t.Error("negative reservation must fail")
	}
	if !b.TryReserve(0) {
		t.Error("zero reservation must fit")
	}

	zero := New(Config{Limit: 0})
	if zero.TryReserve(1) {
		t.Error("zero-limit budget must reject reservations")
	}

	b.TryReserve(50)
	if b.TryReserve(math.MaxInt64) {
		t.Error("overflowing reservation must fail")
	}
}

func TestBudget_InitialUsedClamped(t *testing.T) {
	b := New(Config{Limit: 100, InitialUsed: 500})
	if b.Used() != 100 {
		t.Errorf("expected initial used clamped to 100, got %d", b.Used())
	}
	if !b.Status().Exhausted {
		t.Error("expected budget to be exhausted")
	}
}

func TestBudget_Status(t *testing.T) {
	b := New(Config{Limit: 200, AlertThreshold: 0.75})
	b.TryReserve(100)

	s := b.Status()
	if s.Used != 100 || s.Remaining != 100 || s.Limit != 200 {
		t.Errorf("unexpected status %+v", s)
	}
	if s.Percentage != 0.5 {
		t.Errorf("expected percentage 0.5, got %f", s.Percentage)
	}
	if s.AlertTriggered {
		t.Error("alert should not trigger at 50%")
	}

	b.TryReserve(60)
	b.TryReserve(100)
	s = b.Status()
	if !s.AlertTriggered {
		t.Error("alert should trigger at 80%")
	}
	if s.Reservations != 2 || s.Rejections != 1 {
		t.Errorf("expected 2 reservations and 1 rejection, got %d/%d", s.Reservations, s.Rejections)
	}
}

func TestBudget_ConcurrentNeverOvercommits(t *testing.T) {
	const (
		limit      = 10_000
		goroutines = 50
		attempts   = 200
		size       = 7
	)

	b := New(Config{Limit: limit})
	var committed atomic.Int64
	var wg sync.WaitGroup

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				if !b.TryReserve(size) {
					continue
				}
				// Abort every third write to exercise release under contention.
				if (g+i)%3 == 0 {
					b.Release(size)
					continue
				}
				committed.Add(size)
				if used := b.Used(); used > limit {
					t.Errorf("observed used %d above limit %d", used, limit)
				}
			}
		}(g)
	}
	wg.Wait()

	if b.Used() != committed.Load() {
		t.Errorf("used %d does not match committed %d", b.Used(), committed.Load())
	}
	if b.Used() > limit {
		t.Errorf("used %d exceeds limit %d", b.Used(), limit)
	}
}

func BenchmarkBudget_TryReserve(b *testing.B) {
	budget := New(Config{Limit: math.MaxInt64})
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			budget.TryReserve(1)
		}
	})
}
