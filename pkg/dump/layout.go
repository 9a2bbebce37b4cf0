package dump

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// prefixLen is how many leading characters of the client address name the
// shard directory.
const prefixLen = 3

// Layout maps client addresses to replay file paths:
//
//	<dir>/<first 3 chars of address>/<16 hex digit per-address counter>
//
// Counters start at zero for every address and only move forward.
type Layout struct {
	dir      string
	counters sync.Map // map[string]*atomic.Uint64
}

// NewLayout creates a layout rooted at dir.
func NewLayout(dir string) *Layout {
	return &Layout{dir: dir}
}

// Dir returns the root directory.
func (l *Layout) Dir() string {
	return l.dir
}

// ShardDir returns the directory holding files for addr.
func (l *Layout) ShardDir(addr string) string {
	return filepath.Join(l.dir, shard(addr))
}

// Allocate returns the next unused path for addr.
func (l *Layout) Allocate(addr string) string {
	v, _ := l.counters.LoadOrStore(addr, new(atomic.Uint64))
	n := v.(*atomic.Uint64).Add(1) - 1
	return filepath.Join(l.ShardDir(addr), fmt.Sprintf("%016x", n))
}

func shard(addr string) string {
	if addr == "" {
		addr = "unknown"
	}
	if len(addr) > prefixLen {
		addr = addr[:prefixLen]
	}
	return strings.NewReplacer("/", "_", `\`, "_").Replace(addr)
}
