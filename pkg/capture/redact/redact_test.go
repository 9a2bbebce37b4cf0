package redact

import (
	"strings"
	"testing"

	"mercator-hq/trafficdump/pkg/capture"
)

func TestPolicy_CaseInsensitive(t *testing.T) {
	p := NewPolicy([]string{"Cookie", " set-cookie ", "X-Request-1"})

	tests := []struct {
		name string
		want bool
	}{
		{"cookie", true},
		{"COOKIE", true},
		{"Set-Cookie", true},
		{"x-request-1", true},
		{"x-request-10", false},
		{"cookie2", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := p.IsSensitive(tt.name); got != tt.want {
			t.Errorf("IsSensitive(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPolicy_Defaults(t *testing.T) {
	p := NewPolicy(nil)

	if p.Len() != len(DefaultSensitiveFields) {
		t.Fatalf("expected %d default fields, got %d", len(DefaultSensitiveFields), p.Len())
	}
	for _, f := range DefaultSensitiveFields {
		if !p.IsSensitive(f) {
			t.Errorf("expected default field %q to be sensitive", f)
		}
	}
}

func TestParseFields(t *testing.T) {
	got := ParseFields(`"cookie,set-cookie, x-request-1,,x-request-2"`)
	want := []string{"cookie", "set-cookie", "x-request-1", "x-request-2"}

	if len(got) != len(want) {
		t.Fatalf("ParseFields() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("field %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPlaceholder(t *testing.T) {
	if got := Placeholder(0); got != "" {
		t.Errorf("Placeholder(0) = %q, want empty", got)
	}
	if got := Placeholder(16); got != "0000000 0000001 " {
		t.Errorf("Placeholder(16) = %q", got)
	}
	if got := Placeholder(5); got != "00000" {
		t.Errorf("Placeholder(5) = %q", got)
	}

	long := Placeholder(patternSize + 20)
	if len(long) != patternSize+20 {
		t.Fatalf("expected length %d, got %d", patternSize+20, len(long))
	}
	if !strings.HasPrefix(long, Placeholder(patternSize)) {
		t.Error("extended placeholder must share the fixed pattern prefix")
	}
}

func TestHeaders_PreservesNamesAndOrder(t *testing.T) {
	p := NewPolicy([]string{"cookie"})
	in := capture.Headers{
		{Name: "Host", Value: "example.com"},
		{Name: "Cookie", Value: "a=1"},
		{Name: "Accept", Value: "*/*"},
		{Name: "cookie", Value: "b=22"},
	}

	out := Headers(in, p)

	if len(out) != len(in) {
		t.Fatalf("header count changed: %d -> %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Name != in[i].Name {
			t.Errorf("header %d name changed: %q -> %q", i, in[i].Name, out[i].Name)
		}
	}
	if out[0].Value != "example.com" || out[2].Value != "*/*" {
		t.Error("non-sensitive values must pass through unchanged")
	}
	if out[1].Value != "000" {
		t.Errorf("expected cookie placeholder %q, got %q", "000", out[1].Value)
	}
	if out[3].Value != "0000" {
		t.Errorf("expected cookie placeholder %q, got %q", "0000", out[3].Value)
	}

	// The input is never modified.
	if in[1].Value != "a=1" {
		t.Error("input headers were modified")
	}
}

func TestHeaders_NoMatchReturnsInput(t *testing.T) {
	p := NewPolicy([]string{"x-never-seen"})
	in := capture.Headers{{Name: "Host", Value: "example.com"}}

	out := Headers(in, p)
	if &out[0] != &in[0] {
		t.Error("expected the input slice to be returned when nothing matches")
	}
}

func TestTransaction_Idempotent(t *testing.T) {
	p := NewPolicy([]string{"cookie", "set-cookie"})
	tx := &capture.Transaction{
		ClientRequest: &capture.Message{
			Method:  "GET",
			URL:     "/",
			Headers: capture.Headers{{Name: "Cookie", Value: "session=secret-value"}},
		},
		ServerResponse: &capture.Message{
			Status:  200,
			Headers: capture.Headers{{Name: "Set-Cookie", Value: "session=other-secret"}},
		},
	}

	once := Transaction(tx, p)
	twice := Transaction(once, p)

	for _, pair := range [][2]*capture.Message{
		{once.ClientRequest, twice.ClientRequest},
		{once.ServerResponse, twice.ServerResponse},
	} {
		a, b := pair[0].Headers[0].Value, pair[1].Headers[0].Value
		if a != b {
			t.Errorf("redaction not idempotent: %q vs %q", a, b)
		}
		if strings.Contains(a, "secret") {
			t.Errorf("sensitive value leaked: %q", a)
		}
		if !IsPlaceholder(a) {
			t.Errorf("expected placeholder, got %q", a)
		}
	}

	if tx.ClientRequest.Headers[0].Value != "session=secret-value" {
		t.Error("original transaction was modified")
	}
	if once.ProxyRequest != nil || once.ProxyResponse != nil {
		t.Error("absent messages must stay absent")
	}
}

func TestSession_RedactsAllTransactions(t *testing.T) {
	p := NewPolicy([]string{"authorization"})
	s := &capture.Session{
		Meta: capture.SessionMeta{ID: "s1"},
		Transactions: []*capture.Transaction{
			{ClientRequest: &capture.Message{Headers: capture.Headers{{Name: "Authorization", Value: "Bearer abc"}}}},
			{ClientRequest: &capture.Message{Headers: capture.Headers{{Name: "authorization", Value: "Basic xyz"}}}},
		},
	}

	out := Session(s, p)

	for i, tx := range out.Transactions {
		v := tx.ClientRequest.Headers[0].Value
		if !IsPlaceholder(v) {
			t.Errorf("transaction %d: expected placeholder, got %q", i, v)
		}
	}
	if s.Transactions[0].ClientRequest.Headers[0].Value != "Bearer abc" {
		t.Error("original session was modified")
	}
	if n := Count(s, p); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func BenchmarkHeaders(b *testing.B) {
	p := NewPolicy([]string{"cookie", "set-cookie"})
	h := capture.Headers{
		{Name: "Host", Value: "example.com"},
		{Name: "User-Agent", Value: "bench"},
		{Name: "Cookie", Value: strings.Repeat("c", 256)},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Headers(h, p)
	}
}
