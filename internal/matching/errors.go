package matching

import "errors"

var (
	// ErrNotFound means the source report of a run does not exist
	ErrNotFound = errors.New("report not found")
	// ErrUpstreamUnavailable means the embedding service could not produce a vector
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrPersistenceConflict wraps unexpected store failures while persisting a match
	ErrPersistenceConflict = errors.New("persistence conflict")
	// ErrInvariantViolation means a pair or report breaks a matching precondition
	ErrInvariantViolation = errors.New("invariant violation")
)
