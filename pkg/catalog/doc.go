// Package catalog records every replay file the dump writer produces.
//
// The catalog answers two questions the filesystem alone answers poorly:
// which captures exist for a client, and how many bytes have been written
// in total. The second seeds the disk budget on startup so a restarted
// proxy keeps honouring the configured limit.
//
// Backends:
//
//   - memory: process-local, for tests and ephemeral runs
//   - sqlite: modernc.org/sqlite, pure Go (default)
//   - sqlite3: github.com/mattn/go-sqlite3, requires cgo
package catalog
