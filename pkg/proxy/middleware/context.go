package middleware

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey stores the request ID.
	RequestIDKey contextKey = "request_id"

	// StartTimeKey stores when the proxy began handling the request.
	StartTimeKey contextKey = "start_time"
)
