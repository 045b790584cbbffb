package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus represents database health, connection pool statistics, and
// the durable job queue's backlog — a signal of storage-layer pressure
// distinct from any single pool's worker liveness, since a stuck queue can
// reflect slow Postgres I/O or a wedged autovacuum just as easily as a
// crashed worker.
type HealthStatus struct {
	Status          string        `json:"status"`
	ResponseTime    time.Duration `json:"response_time_ms"`
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration_ms"`
	MaxOpenConns    int           `json:"max_open_conns"`

	PendingJobs         int           `json:"pending_jobs"`
	DeadLetteredJobs    int           `json:"dead_lettered_jobs"`
	OldestPendingJobAge time.Duration `json:"oldest_pending_job_age_ms"`
}

// Health checks database connectivity, connection pool statistics, and the
// jobstore.jobs backlog.
func Health(ctx context.Context, db *sql.DB) (*HealthStatus, error) {
	start := time.Now()

	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start),
		}, err
	}

	stats := db.Stats()
	status := &HealthStatus{
		Status:          "healthy",
		ResponseTime:    time.Since(start),
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
		MaxOpenConns:    stats.MaxOpenConnections,
	}

	if err := queueBacklog(ctx, db, status); err != nil {
		// The ping already succeeded; a backlog-query failure (e.g. the
		// jobstore schema not yet migrated) shouldn't flip overall status.
		return status, nil
	}

	return status, nil
}

// queueBacklog fills in the jobstore.jobs backlog fields of status.
func queueBacklog(ctx context.Context, db *sql.DB, status *HealthStatus) error {
	var oldestSeconds float64
	err := db.QueryRowContext(ctx, `
		SELECT count(*) FILTER (WHERE status = 'pending'),
		       count(*) FILTER (WHERE status = 'dead'),
		       COALESCE(extract(epoch FROM now() - min(created_at) FILTER (WHERE status = 'pending')), 0)
		FROM jobstore.jobs
	`).Scan(&status.PendingJobs, &status.DeadLetteredJobs, &oldestSeconds)
	if err != nil {
		return err
	}
	status.OldestPendingJobAge = time.Duration(oldestSeconds * float64(time.Second))
	return nil
}
