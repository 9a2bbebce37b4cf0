//go:build integration

package test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mercator-hq/trafficdump/pkg/capture"
	"mercator-hq/trafficdump/pkg/replay"
)

// TestServerStartStop runs the binary in front of a test origin, sends one
// request through it and checks the replay file it leaves behind.
func TestServerStartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Set-Cookie", "session=origin-secret")
		fmt.Fprint(w, "hello")
	}))
	defer origin.Close()

	tmpDir := t.TempDir()
	dumpDir := filepath.Join(tmpDir, "dump")

	configFile := filepath.Join(tmpDir, "config.yaml")
	createTestConfig(t, configFile, fmt.Sprintf(`
capture:
  log_dir: %q
  sample: 1
  limit: 10000000
  sensitive_fields: [cookie, set-cookie]

proxy:
  listen_address: "127.0.0.1:18080"
  upstream: %q
  admin_address: "127.0.0.1:18090"

telemetry:
  logging:
    level: "info"
    format: "json"
  metrics:
    enabled: true
  tracing:
    enabled: false
`, dumpDir, origin.URL))

	binaryPath := buildTrafficdumpBinary(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "run", "--config", configFile)
	cmd.Dir = tmpDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start proxy: %v", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}()

	if !waitForHealthy("http://127.0.0.1:18090/healthz", 10*time.Second) {
		t.Fatalf("proxy failed to start\nStdout: %s\nStderr: %s", stdout.String(), stderr.String())
	}

	sendTestRequest(t, "http://127.0.0.1:18080")

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Errorf("failed to send SIGINT: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected shutdown error: %v\nStderr: %s", err, stderr.String())
		}
	case <-time.After(10 * time.Second):
		t.Fatal("proxy did not shut down within 10 seconds")
	}

	logs := stderr.String()
	for _, want := range []string{
		"Initialized with log directory: " + dumpDir,
		"Initialized with sample pool size",
		"Finish a session with log file of",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("expected %q in logs:\n%s", want, logs)
		}
	}

	files, _ := filepath.Glob(filepath.Join(dumpDir, "127", "*"))
	if len(files) != 1 {
		t.Fatalf("expected one replay file under %s/127, got %v", dumpDir, files)
	}

	verify := exec.Command(binaryPath, "verify", files[0],
		"--sensitive-fields", "cookie,set-cookie",
		"--client-http-version", "1.1",
		"--client-protocols", "tcp,ip")
	if output, err := verify.CombinedOutput(); err != nil {
		t.Errorf("verify failed: %v\nOutput: %s", err, output)
	}
}

// TestVerifyExitCode checks that a replay file leaking a sensitive value
// fails verification with the dedicated exit code.
func TestVerifyExitCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	now := time.Now()
	data, err := replay.Serialize(&capture.Session{
		Meta: capture.SessionMeta{ClientAddr: "127.0.0.1", Protocol: capture.HTTP11, ConnectionTime: now},
		Transactions: []*capture.Transaction{{
			UUID:      "leaky",
			StartTime: now,
			ClientRequest: &capture.Message{
				Version: capture.HTTP11,
				Method:  http.MethodGet,
				URL:     "/",
				Scheme:  "http",
				Headers: capture.Headers{{Name: "Cookie", Value: "session=abc"}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Serialize() error = %v", err)
	}
	path := filepath.Join(t.TempDir(), "0000000000000000")
	createTestConfig(t, path, string(data))

	binaryPath := buildTrafficdumpBinary(t)
	cmd := exec.Command(binaryPath, "verify", path, "--sensitive-fields", "cookie")
	output, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ExitCode() != 3 {
		t.Errorf("expected exit code 3, got %v\nOutput: %s", err, output)
	}
}

// TestCommandVersionOutput tests the version command
func TestCommandVersionOutput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	binaryPath := buildTrafficdumpBinary(t)

	output, err := exec.Command(binaryPath, "version").CombinedOutput()
	if err != nil {
		t.Fatalf("version command failed: %v\nOutput: %s", err, output)
	}
	if !bytes.Contains(output, []byte("Trafficdump")) {
		t.Errorf("version output should contain 'Trafficdump', got: %s", output)
	}
}

// TestDryRunValidation tests config validation with --dry-run
func TestDryRunValidation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	tmpDir := t.TempDir()
	binaryPath := buildTrafficdumpBinary(t)

	t.Run("valid config", func(t *testing.T) {
		configFile := filepath.Join(tmpDir, "valid-config.yaml")
		createTestConfig(t, configFile, `
capture:
  log_dir: "dump"
  sample: 10
proxy:
  upstream: "http://127.0.0.1:18081"
`)

		cmd := exec.Command(binaryPath, "run", "--config", configFile, "--dry-run")
		cmd.Dir = tmpDir

		output, err := cmd.CombinedOutput()
		if err != nil {
			t.Errorf("dry-run should succeed with valid config: %v\nOutput: %s", err, output)
		}
	})

	t.Run("invalid config", func(t *testing.T) {
		configFile := filepath.Join(tmpDir, "invalid-config.yaml")
		createTestConfig(t, configFile, `
capture:
  sample: -1
proxy:
  upstream: "ftp://127.0.0.1"
`)

		cmd := exec.Command(binaryPath, "run", "--config", configFile, "--dry-run")
		output, err := cmd.CombinedOutput()

		exitErr, ok := err.(*exec.ExitError)
		if !ok || exitErr.ExitCode() != 2 {
			t.Errorf("dry-run should fail with exit code 2, got %v\nOutput: %s", err, output)
		}
	})
}

// Helper functions

// buildTrafficdumpBinary builds the trafficdump binary for testing
func buildTrafficdumpBinary(t *testing.T) string {
	t.Helper()

	binaryPath := "../bin/trafficdump"
	if _, err := os.Stat(binaryPath); err == nil {
		return binaryPath
	}

	t.Log("Building trafficdump binary...")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../cmd/trafficdump")
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build trafficdump: %v\nOutput: %s", err, output)
	}

	return binaryPath
}

// waitForHealthy waits for a health endpoint to return 200
func waitForHealthy(url string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	client := &http.Client{Timeout: 1 * time.Second}

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return true
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

// createTestConfig creates a test configuration file
func createTestConfig(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}
}

// sendTestRequest sends one request with a cookie on its own connection.
func sendTestRequest(t *testing.T, baseURL string) {
	t.Helper()

	client := &http.Client{
		Timeout:   5 * time.Second,
		Transport: &http.Transport{DisableKeepAlives: true},
	}
	req, err := http.NewRequest(http.MethodGet, baseURL+"/hello", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Cookie", "session=client-secret")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request through proxy failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || string(body) != "hello" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
}
