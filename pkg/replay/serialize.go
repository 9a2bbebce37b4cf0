package replay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"unicode/utf8"

	"mercator-hq/trafficdump/pkg/capture"
)

// Serialize renders a completed session as a replay document. It has no
// side effects, and the same session always yields the same bytes.
//
// The session is expected to have been through the redaction pass.
func Serialize(s *capture.Session) ([]byte, error) {
	doc := Build(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Header values and bodies are written as seen on the wire.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, capture.NewCaptureError(s.Meta.ID, err)
	}
	return buf.Bytes(), nil
}

// Build converts a session into its document form.
func Build(s *capture.Session) *Document {
	session := Session{
		Protocol:       ProtocolStack(s.Meta),
		ConnectionTime: s.Meta.ConnectionTime.UnixNano(),
		Transactions:   make([]Transaction, 0, len(s.Transactions)),
	}

	for _, tx := range s.Transactions {
		session.Transactions = append(session.Transactions, buildTransaction(tx))
	}

	return &Document{
		Meta:     Meta{Version: FormatVersion},
		Sessions: []Session{session},
	}
}

// ProtocolStack describes the session's layers from HTTP down to IP.
func ProtocolStack(meta capture.SessionMeta) []ProtocolNode {
	version := string(meta.Protocol)
	if version == "" {
		version = string(capture.HTTP11)
	}

	stack := []ProtocolNode{{Name: "http", Version: version}}
	if meta.TLS != nil {
		stack = append(stack, ProtocolNode{
			Name:    "tls",
			Version: meta.TLS.Version,
			SNI:     meta.TLS.SNI,
			ALPN:    meta.TLS.ALPN,
		})
	}

	if meta.Protocol == capture.HTTP3 {
		stack = append(stack, ProtocolNode{Name: "quic"}, ProtocolNode{Name: "udp"})
	} else {
		stack = append(stack, ProtocolNode{Name: "tcp"})
	}

	ip := ProtocolNode{Name: "ip", Version: "4"}
	if meta.IPv6 {
		ip.Version = "6"
	}
	return append(stack, ip)
}

func buildTransaction(tx *capture.Transaction) Transaction {
	out := Transaction{
		StartTime:      tx.StartTime.UnixNano(),
		UUID:           tx.UUID,
		ClientRequest:  buildMessage(tx.ClientRequest, true),
		ProxyRequest:   buildMessage(tx.ProxyRequest, true),
		ServerResponse: buildMessage(tx.ServerResponse, false),
		ProxyResponse:  buildMessage(tx.ProxyResponse, false),
	}
	if !tx.Timing.IsZero() {
		out.Timing = &Timing{
			CacheLookup: tx.Timing.CacheLookup,
			ReadResult:  tx.Timing.ReadResult,
			WriteResult: tx.Timing.WriteResult,
		}
	}
	return out
}

func buildMessage(m *capture.Message, request bool) *Message {
	if m == nil {
		return nil
	}

	out := &Message{
		Version: string(m.Version),
		Headers: Headers{
			Encoding: EncodingEscapedJSON,
			Fields:   make([][2]string, 0, len(m.Headers)),
		},
		Content: buildContent(m.Body),
	}
	if request {
		out.Scheme = m.Scheme
		out.Method = m.Method
		out.URL = m.URL
	} else {
		out.Status = m.Status
		out.Reason = m.Reason
	}

	for _, f := range m.Headers {
		out.Headers.Fields = append(out.Headers.Fields, [2]string{f.Name, f.Value})
	}
	return out
}

func buildContent(b capture.Body) Content {
	c := Content{
		Encoding:  EncodingPlain,
		Size:      b.Size,
		Truncated: b.Truncated,
	}
	if len(b.Data) == 0 {
		return c
	}
	if utf8.Valid(b.Data) {
		c.Data = string(b.Data)
	} else {
		c.Encoding = EncodingBase64
		c.Data = base64.StdEncoding.EncodeToString(b.Data)
	}
	return c
}
