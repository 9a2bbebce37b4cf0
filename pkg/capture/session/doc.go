// Package session provides the per-session capture buffer.
//
// A Buffer is opened when the proxy accepts a connection and fed
// transaction events on the connection's own goroutine. Close (or Abort,
// for connections that end abnormally) hands back an immutable
// capture.Session containing only completed transactions.
//
// Bodies are retained only when body dumping is enabled, and then only up
// to a per-session cap; anything past the cap is truncated and flagged so
// the replay document records the truncation.
package session
