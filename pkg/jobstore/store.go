// Package jobstore is the canonical record of every job ever created,
// separate from the broker's live queue so job history survives broker
// flushes. It is modeled as a logically distinct repository even
// though it shares the broker's `jobstore.jobs` table — the same table
// serves both the live queue and the durable job record.
package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/arkhamforge/docintel/pkg/models"
)

// Store is the Job Record Store.
type Store struct {
	db *sql.DB
}

// New constructs a Store over an existing connection pool.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the full record for jobID.
func (s *Store) Get(ctx context.Context, jobID string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pool, payload, priority, status, attempts, worker_requeue_count,
		       max_worker_requeues, result, error, claimed_by, correlation_id,
		       created_at, claimed_at, finalized_at
		FROM jobstore.jobs
		WHERE id = $1
	`, jobID)

	job, err := scanJob(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return job, nil
}

// ListFilter narrows List's result set. Zero values are treated as
// "unfiltered" for that field.
type ListFilter struct {
	Pool   string
	Status models.JobStatus
	Limit  int
	Offset int
}

// List returns job records matching filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*models.Job, error) {
	query := `
		SELECT id, pool, payload, priority, status, attempts, worker_requeue_count,
		       max_worker_requeues, result, error, claimed_by, correlation_id,
		       created_at, claimed_at, finalized_at
		FROM jobstore.jobs
	`
	var (
		conditions []string
		args       []any
	)
	if filter.Pool != "" {
		args = append(args, filter.Pool)
		conditions = append(conditions, fmt.Sprintf("pool = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateStatus updates a job's status and, when the new status is
// terminal, stamps finalized_at.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	var query string
	if status.Terminal() {
		query = `UPDATE jobstore.jobs SET status = $1, finalized_at = now() WHERE id = $2`
	} else {
		query = `UPDATE jobstore.jobs SET status = $1 WHERE id = $2`
	}

	res, err := s.db.ExecContext(ctx, query, string(status), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// PurgeBefore deletes terminal job records finalized before cutoff,
// returning the count removed. Used by the retention purge loop.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM jobstore.jobs
		WHERE finalized_at IS NOT NULL AND finalized_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge job records: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job           models.Job
		payload       []byte
		result        sql.NullString
		errMsg        sql.NullString
		claimedBy     sql.NullString
		correlationID sql.NullString
		claimedAt     sql.NullTime
		finalizedAt   sql.NullTime
		status        string
	)

	if err := row.Scan(
		&job.ID, &job.Pool, &payload, &job.Priority, &status, &job.Attempts,
		&job.WorkerRequeueCount, &job.MaxWorkerRequeues, &result, &errMsg,
		&claimedBy, &correlationID, &job.CreatedAt, &claimedAt, &finalizedAt,
	); err != nil {
		return nil, err
	}

	job.Payload = payload
	job.Status = models.JobStatus(status)
	if result.Valid {
		job.Result = []byte(result.String)
	}
	job.Error = errMsg.String
	job.ClaimedBy = claimedBy.String
	job.CorrelationID = correlationID.String
	if claimedAt.Valid {
		t := claimedAt.Time
		job.ClaimedAt = &t
	}
	if finalizedAt.Valid {
		t := finalizedAt.Time
		job.FinalizedAt = &t
	}
	return &job, nil
}
