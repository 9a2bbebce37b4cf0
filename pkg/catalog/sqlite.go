package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"
)

// Driver names accepted by NewSQLite.
const (
	// DriverModernc is the pure Go driver.
	DriverModernc = "sqlite"
	// DriverCGO is the cgo driver.
	DriverCGO = "sqlite3"
)

// SQLiteConfig contains configuration for the SQLite catalog.
type SQLiteConfig struct {
	// Driver is DriverModernc or DriverCGO.
	// Default: DriverModernc
	Driver string

	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLite is a catalog backed by a SQLite database file.
type SQLite struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// NewSQLite opens the database, creating the file, its directory and the
// schema as needed.
func NewSQLite(cfg *SQLiteConfig) (*SQLite, error) {
	c := *cfg
	if c.Driver == "" {
		c.Driver = DriverModernc
	}
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = 5 * time.Second
	}

	if dir := filepath.Dir(c.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newStoreError(c.Driver, "mkdir", err)
		}
	}

	db, err := sql.Open(c.Driver, c.Path)
	if err != nil {
		return nil, newStoreError(c.Driver, "open", err)
	}
	// A single connection keeps PRAGMAs in effect and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{
		db:     db,
		config: c,
		logger: slog.Default().With("component", "catalog.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("capture catalog opened", "driver", c.Driver, "path", c.Path)
	return s, nil
}

func (s *SQLite) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return newStoreError(s.config.Driver, "enable_wal", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return newStoreError(s.config.Driver, "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return newStoreError(s.config.Driver, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return newStoreError(s.config.Driver, "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return newStoreError(s.config.Driver, "get_schema_version", err)
	}
	if version != SchemaVersion {
		return newStoreError(s.config.Driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Record inserts e and sets its ID.
func (s *SQLite) Record(ctx context.Context, e *Entry) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO captures (session_id, client_addr, protocol, path, bytes, transactions, written_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.ClientAddr, e.Protocol, e.Path, e.Bytes, e.Transactions, e.WrittenAt.UnixNano(),
	)
	if err != nil {
		return newStoreError(s.config.Driver, "record", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return newStoreError(s.config.Driver, "last_insert_id", err)
	}
	e.ID = id
	return nil
}

// List returns matching entries newest first.
func (s *SQLite) List(ctx context.Context, q Query) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	if q.ClientAddr != "" {
		where = append(where, "client_addr = ?")
		args = append(args, q.ClientAddr)
	}
	if !q.Since.IsZero() {
		where = append(where, "written_at >= ?")
		args = append(args, q.Since.UnixNano())
	}

	query := "SELECT id, session_id, client_addr, protocol, path, bytes, transactions, written_at FROM captures"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY written_at DESC, id DESC LIMIT ?"
	args = append(args, limitOf(q))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, newStoreError(s.config.Driver, "list", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e  Entry
			ns int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.ClientAddr, &e.Protocol, &e.Path, &e.Bytes, &e.Transactions, &ns); err != nil {
			return nil, newStoreError(s.config.Driver, "scan", err)
		}
		e.WrittenAt = time.Unix(0, ns)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, newStoreError(s.config.Driver, "list", err)
	}
	return out, nil
}

// TotalBytes sums every recorded capture.
func (s *SQLite) TotalBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(bytes), 0) FROM captures").Scan(&total); err != nil {
		return 0, newStoreError(s.config.Driver, "total_bytes", err)
	}
	return total, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
