package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Progress reports how many replay files have been checked.
type Progress struct {
	mu      sync.Mutex
	total   int64
	done    int64
	failed  int64
	started time.Time
	writer  io.Writer
}

// NewProgress creates a progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgress(w io.Writer) *Progress {
	if w == nil {
		w = os.Stderr
	}
	return &Progress{writer: w}
}

// Start resets the reporter for total files.
func (p *Progress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.done = 0
	p.failed = 0
	p.started = time.Now()
	p.render()
}

// Advance records one checked file.
func (p *Progress) Advance(failed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if failed {
		p.failed++
	}
	p.render()
}

// Failed returns the number of failed files so far.
func (p *Progress) Failed() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Finish ends the progress line.
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	fmt.Fprintln(p.writer)
}

func (p *Progress) render() {
	if p.total == 0 {
		return
	}

	percent := float64(p.done) / float64(p.total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.done) / elapsed
	}

	fmt.Fprintf(p.writer, "\rVerifying: [%s] %.1f%% (%d/%d, %d failed) %.1f files/s",
		bar, percent, p.done, p.total, p.failed, rate)
}
