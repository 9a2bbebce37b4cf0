package replay

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/trafficdump/pkg/capture"
	"mercator-hq/trafficdump/pkg/capture/redact"
)

func testSession() *capture.Session {
	start := time.Unix(1700000000, 123)
	return &capture.Session{
		Meta: capture.SessionMeta{
			ID:             "s-1",
			ClientAddr:     "127.0.0.1",
			Protocol:       capture.HTTP11,
			ConnectionTime: start,
		},
		Transactions: []*capture.Transaction{
			{
				UUID:      "5b0e0a4c-6a5c-4f7c-9d59-1f0c1c2b6c01",
				StartTime: start.Add(time.Millisecond),
				ClientRequest: &capture.Message{
					Version: capture.HTTP11,
					Method:  "GET",
					URL:     "/path?q=<a&b>",
					Scheme:  "http",
					Headers: capture.Headers{
						{Name: "Host", Value: "example.com"},
						{Name: "Cookie", Value: "session=abc"},
					},
					Body: capture.Body{Size: 0},
				},
				ServerResponse: &capture.Message{
					Version: capture.HTTP11,
					Status:  200,
					Reason:  "OK",
					Headers: capture.Headers{{Name: "Set-Cookie", Value: "session=def"}},
					Body:    capture.Body{Size: 11, Data: []byte("hello world")},
				},
				ProxyResponse: &capture.Message{
					Version: capture.HTTP11,
					Status:  200,
					Reason:  "OK",
					Headers: capture.Headers{{Name: "Set-Cookie", Value: "session=def"}},
					Body:    capture.Body{Size: 11},
				},
				Timing: capture.Timing{CacheLookup: "miss", WriteResult: "WL_MISS"},
			},
		},
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	s := testSession()

	first, err := Serialize(s)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	second, err := Serialize(s)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("serializing the same session twice produced different bytes")
	}
}

func TestSerialize_Shape(t *testing.T) {
	data, err := Serialize(testSession())
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("document does not parse: %v", err)
	}

	if doc.Meta.Version != FormatVersion {
		t.Errorf("expected version %s, got %s", FormatVersion, doc.Meta.Version)
	}
	if len(doc.Sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(doc.Sessions))
	}

	s := doc.Sessions[0]
	if s.ConnectionTime != time.Unix(1700000000, 123).UnixNano() {
		t.Errorf("unexpected connection time %d", s.ConnectionTime)
	}
	if len(s.Transactions) != 1 {
		t.Fatalf("expected one transaction, got %d", len(s.Transactions))
	}

	tx := s.Transactions[0]
	if tx.ClientRequest.Method != "GET" || tx.ClientRequest.URL != "/path?q=<a&b>" {
		t.Errorf("unexpected client request %+v", tx.ClientRequest)
	}
	if tx.ClientRequest.Headers.Encoding != EncodingEscapedJSON {
		t.Errorf("unexpected header encoding %s", tx.ClientRequest.Headers.Encoding)
	}
	if got := tx.ClientRequest.Headers.Fields; len(got) != 2 || got[1] != [2]string{"Cookie", "session=abc"} {
		t.Errorf("unexpected header fields %v", got)
	}
	if tx.ProxyRequest != nil {
		t.Error("absent proxy request must be omitted")
	}
	if tx.ServerResponse.Status != 200 || tx.ServerResponse.Content.Data != "hello world" {
		t.Errorf("unexpected server response %+v", tx.ServerResponse)
	}
	if tx.ProxyResponse.Content.Size != 11 || tx.ProxyResponse.Content.Data != "" {
		t.Errorf("unexpected proxy response content %+v", tx.ProxyResponse.Content)
	}
	if tx.Timing == nil || tx.Timing.CacheLookup != "miss" {
		t.Errorf("unexpected timing %+v", tx.Timing)
	}

	if !bytes.Contains(data, []byte(`"url":"/path?q=<a&b>"`)) {
		t.Error("URL must be written without HTML escaping")
	}
}

func TestSerialize_ValidatesAgainstFormat(t *testing.T) {
	data, err := Serialize(testSession())
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if err := Validate(data); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSerialize_BinaryAndTruncatedBody(t *testing.T) {
	s := testSession()
	s.Transactions[0].ServerResponse.Body = capture.Body{
		Size:      10,
		Data:      []byte{0xff, 0xfe, 0x00},
		Truncated: true,
	}

	data, err := Serialize(s)
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	doc := Build(s)
	content := doc.Sessions[0].Transactions[0].ServerResponse.Content

	if content.Encoding != EncodingBase64 || content.Data != "//4A" {
		t.Errorf("unexpected binary content %+v", content)
	}
	if !content.Truncated || content.Size != 10 {
		t.Errorf("truncation not recorded: %+v", content)
	}
	if err := Validate(data); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestProtocolStack(t *testing.T) {
	tests := []struct {
		name string
		meta capture.SessionMeta
		want []string
	}{
		{
			name: "plain http/1.1",
			meta: capture.SessionMeta{Protocol: capture.HTTP11},
			want: []string{"http:1.1", "tcp:", "ip:4"},
		},
		{
			name: "default version",
			meta: capture.SessionMeta{},
			want: []string{"http:1.1", "tcp:", "ip:4"},
		},
		{
			name: "http/2 over tls on ipv6",
			meta: capture.SessionMeta{
				Protocol: capture.HTTP2,
				TLS:      &capture.TLSInfo{Version: "TLSv1.3", SNI: "www.tls.com", ALPN: "h2"},
				IPv6:     true,
			},
			want: []string{"http:2", "tls:TLSv1.3", "tcp:", "ip:6"},
		},
		{
			name: "http/3",
			meta: capture.SessionMeta{Protocol: capture.HTTP3, TLS: &capture.TLSInfo{Version: "TLSv1.3"}},
			want: []string{"http:3", "tls:TLSv1.3", "quic:", "udp:", "ip:4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := ProtocolStack(tt.meta)
			got := make([]string, len(stack))
			for i, n := range stack {
				got[i] = n.Name + ":" + n.Version
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("ProtocolStack() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{"not json", `{`, "$"},
		{"not object", `[]`, "$"},
		{"no meta", `{"sessions":[]}`, "meta"},
		{"no sessions", `{"meta":{"version":"1.0"}}`, "sessions"},
		{"empty sessions", `{"meta":{"version":"1.0"},"sessions":[]}`, "sessions"},
		{
			"no protocol",
			`{"meta":{"version":"1.0"},"sessions":[{"transactions":[]}]}`,
			"sessions[0].protocol",
		},
		{
			"bad field pair",
			`{"meta":{"version":"1.0"},"sessions":[{"protocol":[{"name":"http"}],"transactions":[
				{"client-request":{"headers":{"encoding":"esc_json","fields":[["Host"]]},"content":{"encoding":"plain","size":0}}}]}]}`,
			"sessions[0].transactions[0].client-request.headers.fields[0]",
		},
		{
			"missing content",
			`{"meta":{"version":"1.0"},"sessions":[{"protocol":[{"name":"http"}],"transactions":[
				{"client-request":{"headers":{"encoding":"esc_json","fields":[]}}}]}]}`,
			"sessions[0].transactions[0].client-request.content",
		},
		{
			"missing client request",
			`{"meta":{"version":"1.0"},"sessions":[{"protocol":[{"name":"http"}],"transactions":[{"uuid":"x"}]}]}`,
			"sessions[0].transactions[0].client-request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate([]byte(tt.doc))
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if schemaErr.Path != tt.path {
				t.Errorf("expected path %s, got %s (%v)", tt.path, schemaErr.Path, err)
			}
		})
	}
}

func TestVerify_Redaction(t *testing.T) {
	fields := []string{"cookie", "set-cookie"}
	policy := redact.NewPolicy(fields)

	raw, err := Serialize(testSession())
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	var verr *VerifyError
	if err := VerifyRedaction(raw, fields); !errors.As(err, &verr) {
		t.Fatalf("expected VerifyError for unredacted document, got %v", err)
	}

	redacted, err := Serialize(redact.Session(testSession(), policy))
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	if err := VerifyRedaction(redacted, fields); err != nil {
		t.Errorf("VerifyRedaction() error = %v", err)
	}
	if bytes.Contains(redacted, []byte("session=abc")) || bytes.Contains(redacted, []byte("session=def")) {
		t.Error("redacted document contains an original cookie value")
	}
}

func TestVerify_Protocols(t *testing.T) {
	data, err := Serialize(testSession())
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}

	if err := Verify(data, VerifyOptions{ClientHTTPVersion: "1.1", ClientProtocols: []string{"tcp", "ip"}}); err != nil {
		t.Errorf("Verify() error = %v", err)
	}

	var verr *VerifyError
	if err := Verify(data, VerifyOptions{ClientHTTPVersion: "3"}); !errors.As(err, &verr) {
		t.Errorf("expected http version mismatch, got %v", err)
	}
	if err := Verify(data, VerifyOptions{ClientProtocols: []string{"tls"}}); !errors.As(err, &verr) {
		t.Errorf("expected missing tls layer, got %v", err)
	}
}

func BenchmarkSerialize(b *testing.B) {
	s := testSession()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Serialize(s); err != nil {
			b.Fatal(err)
		}
	}
}
