package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// WriteHeader captures the status code before writing.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write ensures WriteHeader is called if not already done.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController so
// flushing and upgrades keep working through the wrapper.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingMiddleware logs each proxied request with method, path, protocol,
// status and latency. A "request started" line is written at debug level
// and a "request completed" line when the handler returns. 5xx responses
// log at error level, 4xx at warn, everything else at info. The request
// ID is read from the context, so RequestIDMiddleware must run first.
//
// Log format (JSON):
//
//	{
//	  "time": "2026-10-15T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "method": "GET",
//	  "path": "/catalog/items",
//	  "proto": "HTTP/2.0",
//	  "status": 200,
//	  "latency_ms": 12,
//	  "request_id": "0b6f3c3e-5d0e-4d5c-9a43-2f0e3f6a8e21",
//	  "remote_addr": "10.0.4.17:51234"
//	}
//
// Example usage:
//
//	handler = middleware.LoggingMiddleware(logger)(handler)
//	handler = middleware.RequestIDMiddleware(handler)
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			ctx := context.WithValue(r.Context(), StartTimeKey, startTime)
			rw := newResponseWriter(w)
			requestID := GetRequestID(ctx)

			logger.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"proto", r.Proto,
				"request_id", requestID,
				"remote_addr", r.RemoteAddr,
			)

			next.ServeHTTP(rw, r.WithContext(ctx))

			level := slog.LevelInfo
			if rw.statusCode >= 500 {
				level = slog.LevelError
			} else if rw.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(ctx, level, "request completed",
				"method", r.Method,
				"path", r.URL.Path,
				"proto", r.Proto,
				"status", rw.statusCode,
				"latency_ms", time.Since(startTime).Milliseconds(),
				"request_id", requestID,
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if startTime, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return startTime
	}
	return time.Time{}
}
