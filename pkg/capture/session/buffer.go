package session

import (
	"time"

	"github.com/google/uuid"

	"mercator-hq/trafficdump/pkg/capture"
)

// Config controls what a buffer retains.
type Config struct {
	// DumpBodies retains body bytes. When false only body sizes are kept.
	// Default: false
	DumpBodies bool

	// MaxBodyBytes caps the body bytes retained per session. Bodies past
	// the cap are truncated and marked. Zero means no cap.
	// Default: 1 MiB
	MaxBodyBytes int64
}

// DefaultConfig returns the default buffer configuration.
func DefaultConfig() Config {
	return Config{
		DumpBodies:   false,
		MaxBodyBytes: 1 << 20,
	}
}

// Buffer accumulates one session's transactions until the connection
// ends. It is owned by the goroutine serving the connection and is not
// safe for concurrent use.
//
// A buffer for a session that was not sampled accepts every call and
// retains nothing.
type Buffer struct {
	meta    capture.SessionMeta
	config  Config
	enabled bool
	closed  bool

	transactions []*capture.Transaction
	pending      *capture.Transaction
	bodyBytes    int64
	truncated    bool
}

// Open starts buffering a session. selected is the sampling decision;
// an unselected buffer is a no-op.
func Open(meta capture.SessionMeta, config Config, selected bool) *Buffer {
	if meta.ID == "" && selected {
		meta.ID = uuid.NewString()
	}
	if meta.ConnectionTime.IsZero() {
		meta.ConnectionTime = time.Now()
	}
	return &Buffer{
		meta:    meta,
		config:  config,
		enabled: selected,
	}
}

// Enabled reports whether the session was selected for capture.
func (b *Buffer) Enabled() bool {
	return b.enabled
}

// Meta returns the session metadata.
func (b *Buffer) Meta() capture.SessionMeta {
	return b.meta
}

// Len returns the number of completed transactions.
func (b *Buffer) Len() int {
	return len(b.transactions)
}

// BeginTransaction records the client request of a new transaction. A
// transaction still in progress is discarded: it never completed.
func (b *Buffer) BeginTransaction(req *capture.Message, start time.Time) error {
	if b.closed {
		return capture.ErrSessionClosed
	}
	if !b.enabled {
		return nil
	}
	if start.IsZero() {
		start = time.Now()
	}
	b.pending = &capture.Transaction{
		UUID:          uuid.NewString(),
		StartTime:     start,
		ClientRequest: req.Clone(),
	}
	return nil
}

// SetProxyRequest records the request the proxy forwarded upstream.
func (b *Buffer) SetProxyRequest(req *capture.Message) error {
	return b.setPending(func(tx *capture.Transaction) {
		tx.ProxyRequest = req.Clone()
	})
}

// SetServerResponse records the origin's response.
func (b *Buffer) SetServerResponse(resp *capture.Message) error {
	return b.setPending(func(tx *capture.Transaction) {
		tx.ServerResponse = resp.Clone()
	})
}

// CompleteTransaction records the response returned to the client and
// appends the in-progress transaction.
func (b *Buffer) CompleteTransaction(resp *capture.Message, timing capture.Timing) error {
	if b.closed {
		return capture.ErrSessionClosed
	}
	if !b.enabled {
		return nil
	}
	if b.pending == nil {
		return capture.ErrNoTransaction
	}
	tx := b.pending
	b.pending = nil
	tx.ProxyResponse = resp.Clone()
	tx.Timing = timing
	b.append(tx)
	return nil
}

// AppendTransaction appends a fully received transaction. The buffer
// keeps its own copy; tx may be reused by the caller.
func (b *Buffer) AppendTransaction(tx *capture.Transaction) error {
	if b.closed {
		return capture.ErrSessionClosed
	}
	if !b.enabled || tx == nil {
		return nil
	}
	c := tx.Clone()
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	if c.StartTime.IsZero() {
		c.StartTime = time.Now()
	}
	b.append(c)
	return nil
}

// Close finalizes the session. Any transaction still in progress is
// dropped. It returns (nil, nil) for an unselected session and
// capture.ErrEmptySession when no transaction completed.
func (b *Buffer) Close() (*capture.Session, error) {
	return b.finish(false)
}

// Abort finalizes a session whose connection ended abnormally. The
// completed transactions are kept and the partial one is discarded.
func (b *Buffer) Abort() (*capture.Session, error) {
	return b.finish(true)
}

func (b *Buffer) finish(aborted bool) (*capture.Session, error) {
	if b.closed {
		return nil, capture.ErrSessionClosed
	}
	b.closed = true
	b.pending = nil

	if !b.enabled {
		return nil, nil
	}
	if len(b.transactions) == 0 {
		return nil, capture.ErrEmptySession
	}

	s := &capture.Session{
		Meta:         b.meta,
		Transactions: b.transactions,
		BodyBytes:    b.bodyBytes,
		Truncated:    b.truncated,
		Aborted:      aborted,
	}
	b.transactions = nil
	return s, nil
}

func (b *Buffer) setPending(fn func(*capture.Transaction)) error {
	if b.closed {
		return capture.ErrSessionClosed
	}
	if !b.enabled {
		return nil
	}
	if b.pending == nil {
		return capture.ErrNoTransaction
	}
	fn(b.pending)
	return nil
}

func (b *Buffer) append(tx *capture.Transaction) {
	for _, m := range tx.Messages() {
		b.guardBody(m)
	}
	b.transactions = append(b.transactions, tx)
}

// guardBody applies the body policy to a message the buffer owns.
func (b *Buffer) guardBody(m *capture.Message) {
	if m.Body.Size < int64(len(m.Body.Data)) {
		m.Body.Size = int64(len(m.Body.Data))
	}
	if !b.config.DumpBodies {
		m.Body.Data = nil
		return
	}
	if b.config.MaxBodyBytes > 0 {
		remaining := max(b.config.MaxBodyBytes-b.bodyBytes, 0)
		if int64(len(m.Body.Data)) > remaining {
			m.Body.Data = m.Body.Data[:remaining]
			m.Body.Truncated = true
			b.truncated = true
		}
	}
	b.bodyBytes += int64(len(m.Body.Data))
}
