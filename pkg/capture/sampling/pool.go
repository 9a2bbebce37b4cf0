// Package sampling decides which sessions are captured.
//
// The pool uses deterministic modulo selection over a single atomic
// counter: the session with admission index i is captured when
// i mod N == 0. The first session is always captured and, after M
// sessions, exactly ceil(M/N) have been selected, so the selected
// fraction never differs from M/N by more than one session.
package sampling

import "sync/atomic"

// Pool selects one of every N sessions. The zero value is not usable;
// construct with NewPool.
type Pool struct {
	size    uint64
	counter atomic.Uint64
	taken   atomic.Uint64
}

// NewPool creates a pool capturing one of every size sessions. Sizes
// below one are treated as one (capture every session).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: uint64(size)}
}

// Size returns the configured sampling denominator.
func (p *Pool) Size() int {
	return int(p.size)
}

// Next admits a new session and returns its admission index and whether
// it is selected for capture. Safe for concurrent use; the only shared
// state is one atomic increment.
func (p *Pool) Next() (uint64, bool) {
	index := p.counter.Add(1) - 1
	selected := p.ShouldCapture(index)
	if selected {
		p.taken.Add(1)
	}
	return index, selected
}

// ShouldCapture is the pure selection rule for an admission index.
func (p *Pool) ShouldCapture(index uint64) bool {
	return index%p.size == 0
}

// Seen returns the number of sessions admitted so far.
func (p *Pool) Seen() uint64 {
	return p.counter.Load()
}

// Selected returns the number of sessions selected so far.
func (p *Pool) Selected() uint64 {
	return p.taken.Load()
}
