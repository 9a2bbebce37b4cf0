package catalog

import (
	"context"
	"fmt"
	"time"

	"mercator-hq/trafficdump/pkg/config"
)

// Entry describes one replay file written by the dump writer.
type Entry struct {
	// ID is assigned by the catalog on Record.
	ID int64

	SessionID    string
	ClientAddr   string
	Protocol     string
	Path         string
	Bytes        int64
	Transactions int
	WrittenAt    time.Time
}

// Query filters List results. Zero values match everything.
type Query struct {
	ClientAddr string
	Since      time.Time

	// Limit caps the number of entries returned (default 100).
	Limit int
}

// DefaultListLimit is the number of entries List returns when Query.Limit
// is unset.
const DefaultListLimit = 100

// Catalog persists entries for written captures. Implementations must be
// safe for concurrent use.
type Catalog interface {
	// Record stores e and sets e.ID.
	Record(ctx context.Context, e *Entry) error

	// List returns entries newest first.
	List(ctx context.Context, q Query) ([]*Entry, error)

	// TotalBytes sums the size of every recorded capture.
	TotalBytes(ctx context.Context) (int64, error)

	// Close releases resources held by the catalog.
	Close() error
}

// StoreError wraps a catalog backend failure.
type StoreError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("catalog error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

func newStoreError(backend, op string, cause error) *StoreError {
	return &StoreError{Backend: backend, Operation: op, Cause: cause}
}

// Open builds the catalog selected by cfg.Driver.
func Open(cfg config.CatalogConfig) (Catalog, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case DriverModernc, DriverCGO:
		return NewSQLite(&SQLiteConfig{
			Driver:      cfg.Driver,
			Path:        cfg.Path,
			BusyTimeout: cfg.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}
}

func limitOf(q Query) int {
	if q.Limit > 0 {
		return q.Limit
	}
	return DefaultListLimit
}
