//go:build integration

package test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mercator-hq/trafficdump/pkg/capture/engine"
	"mercator-hq/trafficdump/pkg/capture/redact"
	"mercator-hq/trafficdump/pkg/config"
	"mercator-hq/trafficdump/pkg/dump"
	"mercator-hq/trafficdump/pkg/limits/diskbudget"
	"mercator-hq/trafficdump/pkg/proxy"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type stack struct {
	proxy    *httptest.Server
	engine   *engine.Engine
	budget   *diskbudget.Budget
	logs     *syncBuffer
	outcomes chan dump.Outcome
}

// newStack wires budget, writer, engine and proxy in front of a small
// origin, the same way the run command does.
func newStack(t *testing.T, sample int, limit int64) *stack {
	t.Helper()

	s := &stack{
		budget:   diskbudget.New(diskbudget.Config{Limit: limit}),
		logs:     &syncBuffer{},
		outcomes: make(chan dump.Outcome, 64),
	}
	logger := slog.New(slog.NewTextHandler(s.logs, nil))
	dir := filepath.Join(t.TempDir(), "dump")

	w, err := dump.NewWriter(dump.Config{
		Layout:    dump.NewLayout(dir),
		Budget:    s.budget,
		Policy:    redact.NewPolicy([]string{"cookie"}),
		OnOutcome: func(o dump.Outcome) { s.outcomes <- o },
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	s.engine, err = engine.New(engine.Config{LogDir: dir, Sample: sample, Limit: limit, Writer: w, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	t.Cleanup(origin.Close)

	cfg := config.NewDefault()
	cfg.Proxy.Upstream = origin.URL
	srv, err := proxy.NewServer(proxy.Config{Proxy: &cfg.Proxy, Engine: s.engine, Logger: logger})
	if err != nil {
		t.Fatal(err)
	}

	s.proxy = httptest.NewUnstartedServer(nil)
	if err := srv.Configure(s.proxy.Config); err != nil {
		t.Fatal(err)
	}
	s.proxy.Start()
	t.Cleanup(s.proxy.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.engine.Close(ctx)
	})
	return s
}

// connect sends one request on a fresh connection and closes it.
func (s *stack) connect(t *testing.T) {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	req, _ := http.NewRequest(http.MethodGet, s.proxy.URL+"/item", nil)
	req.Header.Set("Cookie", "id=1234567890")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func (s *stack) next(t *testing.T) dump.Outcome {
	t.Helper()
	select {
	case o := <-s.outcomes:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a capture outcome")
		return dump.Outcome{}
	}
}

func TestSampling_OneInN(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	s := newStack(t, 3, 1<<30)
	for i := 0; i < 6; i++ {
		s.connect(t)
	}

	for i := 0; i < 2; i++ {
		if o := s.next(t); o.State != dump.StateWritten {
			t.Errorf("capture %d: state %s (%s)", i, o.State, o.Reason)
		}
	}
	select {
	case o := <-s.outcomes:
		t.Errorf("unexpected third capture %+v", o)
	case <-time.After(300 * time.Millisecond):
	}

	seen, selected := s.engine.Stats()
	if seen != 6 || selected != 2 {
		t.Errorf("Stats() = %d/%d, want 6/2", seen, selected)
	}
}

func TestDiskLimit_StopsWriting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Measure one session, then allow room for one and a half.
	probe := newStack(t, 1, 1<<30)
	probe.connect(t)
	first := probe.next(t)
	if first.State != dump.StateWritten {
		t.Fatalf("probe capture not written: %s", first.Reason)
	}

	limit := first.Bytes + first.Bytes/2
	s := newStack(t, 1, limit)
	for i := 0; i < 3; i++ {
		s.connect(t)
	}

	var written, rejected int
	for i := 0; i < 3; i++ {
		switch o := s.next(t); o.State {
		case dump.StateWritten:
			written++
		case dump.StateRejected:
			rejected++
		}
	}
	if written != 1 || rejected != 2 {
		t.Errorf("written=%d rejected=%d, want 1/2", written, rejected)
	}
	if used := s.budget.Used(); used > limit {
		t.Errorf("budget used %d exceeds limit %d", used, limit)
	}

	logs := s.logs.String()
	for _, want := range []string{
		"Initialized with sample pool size 1 bytes and disk limit",
		"Finish a session with log file of",
		"Disk budget exhausted",
		"Finish a session without a log file",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("expected %q in logs", want)
		}
	}
}
