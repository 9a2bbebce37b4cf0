package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"mercator-hq/trafficdump/pkg/capture/redact"
	"mercator-hq/trafficdump/pkg/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "valid JSON config", config: Config{Level: "info", Format: "json"}},
		{name: "valid text config", config: Config{Level: "debug", Format: "text"}},
		{name: "valid console config", config: Config{Level: "warn", Format: "console"}},
		{name: "empty defaults", config: Config{}},
		{name: "invalid log level", config: Config{Level: "invalid"}, wantErr: true},
		{name: "invalid format", config: Config{Format: "invalid"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Writer = &buf
			logger, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "text", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record missing")
	}
}

func TestLogger_RedactsSensitiveAttrs(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(redact.NewPolicy([]string{"cookie"}))
	logger, err := New(Config{Level: "info", Format: "json", Redactor: r, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("request", "Cookie", "tasty_cookie=strawberry", "path", "/a/path")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("invalid JSON log line: %v", err)
	}
	got, _ := rec["Cookie"].(string)
	if got != redact.Placeholder(len("tasty_cookie=strawberry")) {
		t.Errorf("cookie not redacted: %q", got)
	}
	if rec["path"] != "/a/path" {
		t.Errorf("non-sensitive attr altered: %v", rec["path"])
	}
}

func TestLogger_RedactsWithAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(redact.NewPolicy([]string{"authorization"}))
	logger, err := New(Config{Format: "text", Redactor: r, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("authorization", "Bearer secret").
		Info("grouped", slog.Group("headers", slog.String("authorization", "Basic xyz")))

	out := buf.String()
	if strings.Contains(out, "secret") || strings.Contains(out, "xyz") {
		t.Errorf("sensitive value leaked: %s", out)
	}
}

func TestRedactor_SetPolicy(t *testing.T) {
	var buf bytes.Buffer
	r := NewRedactor(redact.NewPolicy([]string{"cookie"}))
	logger, _ := New(Config{Format: "text", Redactor: r, Writer: &buf})

	logger.Info("before", "x-api-key", "abc123")
	r.SetPolicy(redact.NewPolicy([]string{"x-api-key"}))
	logger.Info("after", "x-api-key", "abc123")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "abc123") {
		t.Error("key should not be masked before reload")
	}
	if strings.Contains(lines[1], "abc123") {
		t.Error("key should be masked after reload")
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Config{Format: "json", Writer: &buf})

	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithTransactionID(ctx, "tx-1")
	ctx = WithClientAddr(ctx, "127.0.0.1")
	logger.InfoContext(ctx, "captured")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{
		"session_id":     "sess-1",
		"transaction_id": "tx-1",
		"client_addr":    "127.0.0.1",
	} {
		if rec[key] != want {
			t.Errorf("%s = %v, want %s", key, rec[key], want)
		}
	}
}

func TestContextGetters_Empty(t *testing.T) {
	ctx := context.Background()
	if GetSessionID(ctx) != "" || GetTransactionID(ctx) != "" || GetClientAddr(ctx) != "" {
		t.Error("expected empty values from bare context")
	}
}

func TestFromConfig(t *testing.T) {
	off := false
	var buf bytes.Buffer

	logger, r, err := FromConfig(config.LoggingConfig{Level: "info", Format: "text", RedactSensitive: &off}, nil, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if r != nil {
		t.Error("redactor should be nil when disabled")
	}
	logger.Info("plain", "cookie", "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("value should not be masked when redaction is disabled")
	}

	_, r, err = FromConfig(config.LoggingConfig{Level: "info"}, []string{"cookie"}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if r == nil || !r.Policy().IsSensitive("Cookie") {
		t.Error("expected redactor with cookie policy by default")
	}
}
