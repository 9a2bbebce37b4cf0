// Package logging builds the structured logger used across the proxy.
//
// The logger is a log/slog logger with two handlers in front of the output
// handler:
//
//   - a context handler that adds session_id, transaction_id and client_addr
//     when the record is logged with a context carrying them
//   - a redacting handler that masks attributes whose key names a sensitive
//     header field, using the same placeholder written into replay files
//
// # Usage
//
//	r := logging.NewRedactor(redact.NewPolicy(nil))
//	logger, err := logging.New(logging.Config{
//	    Level:    "info",
//	    Format:   "json",
//	    Redactor: r,
//	})
//
//	ctx = logging.WithSessionID(ctx, id)
//	logger.InfoContext(ctx, "session opened", "cookie", raw) // cookie masked
package logging
