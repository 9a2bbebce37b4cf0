package redact

import (
	"fmt"
	"strings"
	"sync"

	"mercator-hq/trafficdump/pkg/capture"
)

// patternSize covers the largest header block a proxy accepts; longer
// values are extended on demand.
const patternSize = 128 * 1024

var (
	patternOnce sync.Once
	pattern     string
)

// buildPattern returns size bytes of "%07x " groups: "0000000 0000001 ...".
func buildPattern(size int) string {
	var b strings.Builder
	b.Grow(size + 8)
	for i := 0; b.Len() < size; i++ {
		fmt.Fprintf(&b, "%07x ", i)
	}
	return b.String()[:size]
}

// Placeholder returns the replacement for a sensitive value of length n.
// It is a prefix of a fixed generated pattern, so a replaced value keeps
// its length and redacting a placeholder yields the same placeholder.
func Placeholder(n int) string {
	if n <= 0 {
		return ""
	}
	patternOnce.Do(func() {
		pattern = buildPattern(patternSize)
	})
	if n <= len(pattern) {
		return pattern[:n]
	}
	return buildPattern(n)
}

// IsPlaceholder reports whether value is the placeholder for its length.
func IsPlaceholder(value string) bool {
	return value == Placeholder(len(value))
}

// Headers returns h with the values of sensitive fields replaced. Names,
// count and order are preserved. The input is never modified; when no
// field matches, h itself is returned.
func Headers(h capture.Headers, p *Policy) capture.Headers {
	out, _ := headers(h, p)
	return out
}

func headers(h capture.Headers, p *Policy) (capture.Headers, bool) {
	var out capture.Headers
	for i, f := range h {
		if !p.IsSensitive(f.Name) {
			continue
		}
		replacement := Placeholder(len(f.Value))
		if replacement == f.Value {
			continue
		}
		if out == nil {
			out = h.Clone()
		}
		out[i].Value = replacement
	}
	if out == nil {
		return h, false
	}
	return out, true
}

// Transaction returns a copy of tx whose request and response header sets
// have sensitive values replaced. Bodies are shared with tx, not copied.
func Transaction(tx *capture.Transaction, p *Policy) *capture.Transaction {
	out := *tx
	out.ClientRequest = message(tx.ClientRequest, p)
	out.ProxyRequest = message(tx.ProxyRequest, p)
	out.ServerResponse = message(tx.ServerResponse, p)
	out.ProxyResponse = message(tx.ProxyResponse, p)
	return &out
}

// Session runs the redaction pass over every transaction of s and returns
// the redacted session. s is left untouched.
func Session(s *capture.Session, p *Policy) *capture.Session {
	out := *s
	out.Transactions = make([]*capture.Transaction, len(s.Transactions))
	for i, tx := range s.Transactions {
		out.Transactions[i] = Transaction(tx, p)
	}
	return &out
}

func message(m *capture.Message, p *Policy) *capture.Message {
	if m == nil {
		return nil
	}
	redacted, changed := headers(m.Headers, p)
	if !changed {
		return m
	}
	out := *m
	out.Headers = redacted
	return &out
}

// Count returns how many header values in s the policy masks.
func Count(s *capture.Session, p *Policy) int {
	n := 0
	for _, tx := range s.Transactions {
		for _, m := range tx.Messages() {
			for _, f := range m.Headers {
				if p.IsSensitive(f.Name) {
					n++
				}
			}
		}
	}
	return n
}
