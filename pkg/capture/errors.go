package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrBudgetExhausted is returned when the disk budget cannot fit a session.
	ErrBudgetExhausted = errors.New("disk budget exhausted")

	// ErrSessionClosed is returned when a closed session buffer is used.
	ErrSessionClosed = errors.New("session buffer closed")

	// ErrEmptySession is returned for sessions that completed no transaction.
	ErrEmptySession = errors.New("session has no transactions")

	// ErrQueueFull is returned when the writer queue cannot accept a session.
	ErrQueueFull = errors.New("dump writer queue full")

	// ErrWriterClosed is returned when submitting to a closed writer.
	ErrWriterClosed = errors.New("dump writer closed")

	// ErrNoTransaction is returned when a response arrives with no open request.
	ErrNoTransaction = errors.New("no transaction in progress")
)

// CaptureError wraps a failure of a single session's capture.
type CaptureError struct {
	SessionID string
	Cause     error
}

// Error implements the error interface.
func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture failed [session=%s]: %v", e.SessionID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// NewCaptureError creates a new CaptureError.
func NewCaptureError(sessionID string, cause error) *CaptureError {
	return &CaptureError{
		SessionID: sessionID,
		Cause:     cause,
	}
}

// WriteError represents an I/O failure while persisting a session file.
type WriteError struct {
	Path      string // Target file path
	Operation string // Operation that failed ("mkdir", "create", "write", "sync", "close")
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("write error [path=%s, operation=%s]: %v", e.Path, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *WriteError) Unwrap() error {
	return e.Cause
}

// NewWriteError creates a new WriteError.
func NewWriteError(path, operation string, cause error) *WriteError {
	return &WriteError{
		Path:      path,
		Operation: operation,
		Cause:     cause,
	}
}
