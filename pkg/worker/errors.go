package worker

import "errors"

// ErrAtCapacity is returned by pollAndProcess when a pool's
// MaxConcurrency would be exceeded by claiming another job.
var ErrAtCapacity = errors.New("worker: pool at capacity")

// ErrPoolUnavailable is returned by Dispatcher.Enqueue when the target
// pool has had no registered workers for longer than stale_pool_threshold.
var ErrPoolUnavailable = errors.New("worker: pool unavailable, no healthy workers")
