package sampling

import (
	"sync"
	"testing"
)

func TestPool_EverySession(t *testing.T) {
	p := NewPool(1)

	for i := 0; i < 10; i++ {
		index, selected := p.Next()
		if index != uint64(i) {
			t.Errorf("expected index %d, got %d", i, index)
		}
		if !selected {
			t.Errorf("session %d not selected with sample size 1", i)
		}
	}
}

func TestPool_InvalidSizeCapturesAll(t *testing.T) {
	for _, size := range []int{0, -5} {
		p := NewPool(size)
		if p.Size() != 1 {
			t.Errorf("NewPool(%d).Size() = %d, want 1", size, p.Size())
		}
	}
}

func TestPool_FirstSessionSelected(t *testing.T) {
	p := NewPool(7)

	if _, selected := p.Next(); !selected {
		t.Error("first session must be selected")
	}
	for i := 1; i < 7; i++ {
		if _, selected := p.Next(); selected {
			t.Errorf("session %d should not be selected", i)
		}
	}
	if _, selected := p.Next(); !selected {
		t.Error("session 7 must be selected")
	}
}

func TestPool_Convergence(t *testing.T) {
	tests := []struct {
		size     int
		sessions int
	}{
		{size: 1, sessions: 100},
		{size: 3, sessions: 300},
		{size: 10, sessions: 1000},
		{size: 10, sessions: 1005},
		{size: 64, sessions: 6400},
	}

	for _, tt := range tests {
		p := NewPool(tt.size)
		for i := 0; i < tt.sessions; i++ {
			p.Next()
		}

		expected := float64(tt.sessions) / float64(tt.size)
		got := float64(p.Selected())
		if got < expected-1 || got > expected+1 {
			t.Errorf("size=%d sessions=%d: selected %v, expected within 1 of %.2f",
				tt.size, tt.sessions, got, expected)
		}
	}
}

func TestPool_ConcurrentConvergence(t *testing.T) {
	const (
		size       = 5
		goroutines = 20
		perWorker  = 500
	)

	p := NewPool(size)
	var wg sync.WaitGroup
	var mu sync.Mutex
	indexes := make(map[uint64]bool)

	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				index, _ := p.Next()
				mu.Lock()
				indexes[index] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	total := goroutines * perWorker
	if len(indexes) != total {
		t.Errorf("expected %d unique admission indexes, got %d", total, len(indexes))
	}
	if p.Seen() != uint64(total) {
		t.Errorf("expected %d seen, got %d", total, p.Seen())
	}
	if p.Selected() != uint64(total/size) {
		t.Errorf("expected %d selected, got %d", total/size, p.Selected())
	}
}

func BenchmarkPool_Next(b *testing.B) {
	p := NewPool(10)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			p.Next()
		}
	})
}
