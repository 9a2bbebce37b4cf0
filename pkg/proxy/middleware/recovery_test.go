package middleware

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		})

		wrapped := RecoveryMiddleware(nil)(handler)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		// Should not panic
		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusBadGateway {
			t.Errorf("Status code = %v, want %v", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("passes through normal requests", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		wrapped := RecoveryMiddleware(nil)(handler)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status code = %v, want %v", w.Code, http.StatusOK)
		}

		if w.Body.String() != "OK" {
			t.Errorf("Body = %v, want OK", w.Body.String())
		}
	})

	t.Run("logs the panic value", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		wrapped := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(errors.New("upstream exploded"))
		}))

		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		if w.Code != http.StatusBadGateway {
			t.Errorf("Status code = %v, want %v", w.Code, http.StatusBadGateway)
		}
		if !strings.Contains(buf.String(), "upstream exploded") {
			t.Errorf("panic value missing from log: %s", buf.String())
		}
	})

	t.Run("re-raises ErrAbortHandler", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		})

		wrapped := RecoveryMiddleware(nil)(handler)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		defer func() {
			if err := recover(); err != http.ErrAbortHandler {
				t.Errorf("recover() = %v, want http.ErrAbortHandler", err)
			}
		}()
		wrapped.ServeHTTP(w, req)
	})
}
