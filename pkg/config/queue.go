package config

import "time"

// QueueConfig contains the worker-runtime tunables shared by every pool.
// Per-pool concurrency and timeout live on PoolConfig; these values
// control how workers poll, heartbeat, and detect orphans regardless of
// which pool they belong to.
type QueueConfig struct {
	// PollInterval is the base interval for checking a pool's pending jobs.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// HeartbeatInterval is how often a worker updates its liveness TTL.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// GracefulShutdownTimeout is the max time to wait for an in-flight job
	// to finish during shutdown before the worker detaches anyway.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often the supervisor scans for jobs
	// whose owning worker's heartbeat has expired.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a running job can go without a
	// heartbeat before it is considered orphaned. Default 3x heartbeat
	// interval.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// MaxWorkerRequeues is the default requeue cap applied to a job that
	// doesn't specify its own.
	MaxWorkerRequeues int `yaml:"max_worker_requeues"`

	// CancelGracePeriod is how long a stage handler is given to honor
	// cooperative cancellation before the worker self-terminates.
	CancelGracePeriod time.Duration `yaml:"cancel_grace_period"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		HeartbeatInterval:       5 * time.Second,
		GracefulShutdownTimeout: 30 * time.Second,
		OrphanDetectionInterval: 15 * time.Second,
		OrphanThreshold:         15 * time.Second,
		MaxWorkerRequeues:       3,
		CancelGracePeriod:       5 * time.Second,
	}
}
