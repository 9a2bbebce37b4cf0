package catalog

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the capture catalog tables. Timestamps are stored as Unix
// nanoseconds so both sqlite drivers round-trip them identically.
const Schema = `
CREATE TABLE IF NOT EXISTS captures (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    client_addr TEXT NOT NULL,
    protocol TEXT NOT NULL,
    path TEXT NOT NULL,
    bytes INTEGER NOT NULL,
    transactions INTEGER NOT NULL,
    written_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_written_at ON captures(written_at);
CREATE INDEX IF NOT EXISTS idx_captures_client_addr ON captures(client_addr);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
