package broker

import "errors"

// Sentinel errors for broker operations.
var (
	// ErrNoJobAvailable indicates no pending job is queued for the pool.
	ErrNoJobAvailable = errors.New("no job available")

	// ErrJobNotFound indicates the referenced job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrAlreadyClaimed indicates a job was claimed by another worker between
	// the caller's read and its attempted claim.
	ErrAlreadyClaimed = errors.New("job already claimed")

	// ErrBrokerUnavailable indicates the backing store could not be reached;
	// callers should retry with backoff.
	ErrBrokerUnavailable = errors.New("broker unavailable")
)
