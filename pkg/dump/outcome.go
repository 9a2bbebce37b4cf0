package dump

import "time"

// State is a step of a capture's write lifecycle.
//
//	Pending -> Reserved -> Written
//	Pending -> Rejected
//	Reserved -> Aborted
type State int

const (
	// StatePending means the session is serialized and its size is known.
	StatePending State = iota
	// StateReserved means the disk budget holds room for the file.
	StateReserved
	// StateWritten means the file is on disk. Terminal.
	StateWritten
	// StateRejected means no file was produced and no budget was taken.
	// Terminal.
	StateRejected
	// StateAborted means the write failed after reserving and the
	// reservation was released. Terminal.
	StateAborted
)

// String returns the lowercase state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReserved:
		return "reserved"
	case StateWritten:
		return "written"
	case StateRejected:
		return "rejected"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateWritten || s == StateRejected || s == StateAborted
}

// Reasons a session finishes without a file.
const (
	ReasonEmpty     = "empty"
	ReasonRejected  = "rejected"
	ReasonAborted   = "aborted"
	ReasonQueueFull = "queue_full"
	ReasonSerialize = "serialize"
	ReasonClosed    = "closed"
)

// Outcome is the result of one capture write.
type Outcome struct {
	SessionID  string
	ClientAddr string
	State      State

	// Path and Bytes are set only for StateWritten.
	Path  string
	Bytes int64

	// Reason is set for sessions that produced no file.
	Reason string

	Redactions int
	Duration   time.Duration
	Err        error
}
