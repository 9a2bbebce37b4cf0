package proxy

import (
	"crypto/tls"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"mercator-hq/trafficdump/pkg/capture"
)

// versionOf maps a request's major protocol version onto the capture
// protocol names.
func versionOf(major int) capture.HTTPVersion {
	switch major {
	case 2:
		return capture.HTTP2
	case 3:
		return capture.HTTP3
	default:
		return capture.HTTP11
	}
}

// toHeaders flattens h into a field list. net/http does not keep the wire
// order, so names are sorted and each name's values keep their order.
func toHeaders(h http.Header) capture.Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(capture.Headers, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			out = append(out, capture.Field{Name: name, Value: v})
		}
	}
	return out
}

// requestHeaders returns the header fields of a request as the peer saw
// them: HTTP/2 and HTTP/3 requests lead with their pseudo-headers, HTTP/1
// requests with Host.
func requestHeaders(version capture.HTTPVersion, method, scheme, host, path string, h http.Header) capture.Headers {
	var lead capture.Headers
	if version == capture.HTTP11 {
		if host != "" {
			lead = capture.Headers{{Name: "Host", Value: host}}
		}
	} else {
		lead = capture.Headers{
			{Name: ":method", Value: method},
			{Name: ":scheme", Value: scheme},
			{Name: ":authority", Value: host},
			{Name: ":path", Value: path},
		}
	}
	return append(lead, toHeaders(h)...)
}

// responseHeaders returns response fields, with :status leading on
// HTTP/2 and HTTP/3.
func responseHeaders(version capture.HTTPVersion, status int, h http.Header) capture.Headers {
	fields := toHeaders(h)
	if version == capture.HTTP11 {
		return fields
	}
	return append(capture.Headers{{Name: ":status", Value: strconv.Itoa(status)}}, fields...)
}

// schemeOf returns "https" for TLS requests and "http" otherwise.
func schemeOf(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// tlsInfo describes a TLS connection state for the protocol stack.
func tlsInfo(cs *tls.ConnectionState) *capture.TLSInfo {
	if cs == nil {
		return nil
	}
	return &capture.TLSInfo{
		Version: tlsVersionName(cs.Version),
		SNI:     cs.ServerName,
		ALPN:    cs.NegotiatedProtocol,
	}
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLSv1"
	case tls.VersionTLS11:
		return "TLSv1.1"
	case tls.VersionTLS12:
		return "TLSv1.2"
	case tls.VersionTLS13:
		return "TLSv1.3"
	default:
		return tls.VersionName(v)
	}
}

// bodyTap counts the bytes read through a body and retains up to keep of
// them. keep < 0 retains everything and keep == 0 retains nothing.
type bodyTap struct {
	rc   io.ReadCloser
	keep int64

	mu        sync.Mutex
	size      int64
	data      []byte
	truncated bool
	err       error
}

func newBodyTap(rc io.ReadCloser, keep int64) *bodyTap {
	return &bodyTap{rc: rc, keep: keep}
}

func (b *bodyTap) Read(p []byte) (int, error) {
	n, err := b.rc.Read(p)
	if n > 0 {
		b.record(p[:n])
	}
	if err != nil && err != io.EOF {
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
	}
	return n, err
}

// failed reports whether reading the body ended in an error other than
// EOF.
func (b *bodyTap) failed() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err != nil
}

func (b *bodyTap) Close() error {
	return b.rc.Close()
}

func (b *bodyTap) record(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.size += int64(len(p))
	b.data, b.truncated = retain(b.data, p, b.keep, b.truncated)
}

// body returns the observed body. A nil tap is an absent body.
func (b *bodyTap) body() capture.Body {
	if b == nil {
		return capture.Body{}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return capture.Body{
		Size:      b.size,
		Data:      append([]byte(nil), b.data...),
		Truncated: b.truncated,
	}
}

// retain appends p to data without letting it grow past keep.
func retain(data, p []byte, keep int64, truncated bool) ([]byte, bool) {
	switch {
	case keep == 0:
		return data, truncated
	case keep < 0:
		return append(data, p...), truncated
	}
	room := keep - int64(len(data))
	if room <= 0 {
		return data, truncated || len(p) > 0
	}
	if int64(len(p)) > room {
		return append(data, p[:room]...), true
	}
	return append(data, p...), truncated
}
