// Package dump persists finished capture sessions as replay files.
//
// For each session the writer runs the redaction pass with the current
// policy, serializes the replay document, reserves its exact size from the
// disk budget and writes the file. A session whose document does not fit
// is rejected without touching the disk; a write that fails after the
// reservation releases it again. Either way the proxied traffic is not
// affected.
//
// Files are laid out per client address:
//
//	<log_dir>/127/0000000000000000
//	<log_dir>/127/0000000000000001
//	<log_dir>/10./0000000000000000
//
// Every terminal outcome is logged with one of:
//
//	Finish a session with log file of <bytes> bytes
//	Finish a session without a log file   (reason=empty|rejected|aborted|queue_full|serialize|closed)
package dump
