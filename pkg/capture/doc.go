// Package capture defines the data model of the traffic capture engine.
//
// # Overview
//
// The capture engine passively observes client sessions flowing through
// the proxy and persists a sampled subset of them as replay documents.
// This package holds the types shared by its stages:
//
//   - SessionMeta: connection-level metadata known at accept time
//   - Transaction: one request/response exchange, up to four messages
//   - Session: a completed capture handed to the dump writer
//
// # Ownership
//
// A session and its transactions belong to the goroutine serving that
// connection until the buffer is closed. After that the Session is
// immutable and is handed to the dump writer, which drops it once the
// write outcome is known.
//
// # Subpackages
//
//   - redact: sensitive header policy and the redaction pass
//   - sampling: the session sample pool
//   - session: the per-session buffer
//   - engine: lifecycle callbacks tying the stages together
package capture
