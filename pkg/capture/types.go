package capture

import (
	"strings"
	"time"
)

// HTTPVersion identifies the negotiated HTTP protocol of a session.
type HTTPVersion string

const (
	// HTTP11 is HTTP/1.1 over TCP.
	HTTP11 HTTPVersion = "1.1"
	// HTTP2 is HTTP/2 over TCP.
	HTTP2 HTTPVersion = "2"
	// HTTP3 is HTTP/3 over QUIC.
	HTTP3 HTTPVersion = "3"
)

// TLSInfo describes the TLS layer of a session, if any.
type TLSInfo struct {
	// Version is the negotiated TLS version (e.g., "TLSv1.3").
	Version string

	// SNI is the server name the client requested.
	SNI string

	// ALPN is the negotiated application protocol (e.g., "h2").
	ALPN string
}

// SessionMeta is the connection-level metadata known when a session is
// accepted by the proxy.
type SessionMeta struct {
	// ID uniquely identifies the session within the process.
	ID string

	// ClientAddr is the client's IP address without port.
	ClientAddr string

	// Protocol is the negotiated HTTP version.
	Protocol HTTPVersion

	// TLS is nil for plaintext sessions.
	TLS *TLSInfo

	// IPv6 is true when the client connected over IPv6.
	IPv6 bool

	// ConnectionTime is when the proxy accepted the connection.
	ConnectionTime time.Time
}

// Field is a single header line. Order and duplicates are significant.
type Field struct {
	Name  string
	Value string
}

// Headers is an ordered header list as seen on the wire.
type Headers []Field

// Get returns the first value for name, compared case-insensitively.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Clone returns a copy of the header list.
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Body describes a message body. Data is only retained when body dumping
// is enabled; Size always carries the full on-the-wire length.
type Body struct {
	// Size is the body length in bytes as observed by the proxy.
	Size int64

	// Data holds the captured bytes, possibly shorter than Size.
	Data []byte

	// Truncated is set when Data was cut by the per-session body guard.
	Truncated bool
}

// Message is one HTTP message of a transaction. Requests use Method, URL
// and Scheme; responses use Status and Reason.
type Message struct {
	Version HTTPVersion
	Method  string
	URL     string
	Scheme  string
	Status  int
	Reason  string
	Headers Headers
	Body    Body
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	out.Headers = m.Headers.Clone()
	if m.Body.Data != nil {
		out.Body.Data = append([]byte(nil), m.Body.Data...)
	}
	return &out
}

// Timing carries per-transaction result markers reported by the proxy.
type Timing struct {
	// CacheLookup is the cache lookup result (e.g., "hit-fresh", "miss").
	CacheLookup string

	// ReadResult is the cache read result code.
	ReadResult string

	// WriteResult is the cache write result code.
	WriteResult string
}

// IsZero reports whether no marker is set.
func (t Timing) IsZero() bool {
	return t.CacheLookup == "" && t.ReadResult == "" && t.WriteResult == ""
}

// Transaction is one request/response exchange. The four messages follow
// the proxy's view: what the client sent, what the proxy forwarded, what
// the origin answered and what the proxy returned. Only ClientRequest is
// required; the others are nil when not observed.
type Transaction struct {
	UUID      string
	StartTime time.Time

	ClientRequest  *Message
	ProxyRequest   *Message
	ServerResponse *Message
	ProxyResponse  *Message

	Timing Timing
}

// Clone returns a deep copy of the transaction.
func (t *Transaction) Clone() *Transaction {
	out := *t
	out.ClientRequest = t.ClientRequest.Clone()
	out.ProxyRequest = t.ProxyRequest.Clone()
	out.ServerResponse = t.ServerResponse.Clone()
	out.ProxyResponse = t.ProxyResponse.Clone()
	return &out
}

// Messages returns the non-nil messages in wire order.
func (t *Transaction) Messages() []*Message {
	msgs := make([]*Message, 0, 4)
	for _, m := range []*Message{t.ClientRequest, t.ProxyRequest, t.ServerResponse, t.ProxyResponse} {
		if m != nil {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

// Session is a completed capture handed from the connection's owner to
// the dump writer. It must not be mutated after Close on its buffer.
type Session struct {
	Meta         SessionMeta
	Transactions []*Transaction

	// BodyBytes is the number of body bytes retained across transactions.
	BodyBytes int64

	// Truncated is set when any body in the session was truncated.
	Truncated bool

	// Aborted is set when the host connection ended abnormally.
	Aborted bool
}
