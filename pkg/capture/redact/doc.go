// Package redact implements the sensitive header policy and the
// redaction pass that runs over a session before it is serialized.
//
// Values of matching headers are replaced with a length-preserving
// placeholder drawn from a fixed pattern ("0000000 0000001 ..."). Header
// names, count and order are never changed, and running the pass twice
// gives the same result as running it once.
//
// Redaction is best effort: only headers named in the policy are
// touched. Bodies, URLs and unlisted headers pass through unchanged.
package redact
