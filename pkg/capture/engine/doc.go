// Package engine is the entry point the proxy uses to capture sessions.
//
// The proxy calls StartSession when a client connection is accepted,
// feeds the returned Handle with each transaction and calls End (or Abort
// when the connection was reset). The engine samples sessions, buffers the
// selected ones on the connection's goroutine and hands finished sessions
// to the dump writer, which redacts, serializes and writes them off the
// request path.
//
//	h := eng.StartSession(capture.SessionMeta{ClientAddr: ip, Protocol: capture.HTTP2})
//	defer h.End()
//	h.Append(tx)
package engine
