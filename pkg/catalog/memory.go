package catalog

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process catalog. Entries are lost on restart, so it
// cannot seed the disk budget across runs.
type Memory struct {
	mu      sync.RWMutex
	entries []*Entry
	nextID  int64
}

// NewMemory creates an empty in-memory catalog.
func NewMemory() *Memory {
	return &Memory{}
}

// Record stores a copy of e.
func (m *Memory) Record(ctx context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	e.ID = m.nextID
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

// List returns matching entries newest first.
func (m *Memory) List(ctx context.Context, q Query) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Entry
	for _, e := range m.entries {
		if q.ClientAddr != "" && e.ClientAddr != q.ClientAddr {
			continue
		}
		if !q.Since.IsZero() && e.WrittenAt.Before(q.Since) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].WrittenAt.Equal(out[j].WrittenAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].WrittenAt.After(out[j].WrittenAt)
	})

	if limit := limitOf(q); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TotalBytes sums every recorded capture.
func (m *Memory) TotalBytes(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for _, e := range m.entries {
		total += e.Bytes
	}
	return total, nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}
