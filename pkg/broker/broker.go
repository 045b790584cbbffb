// Package broker implements the durable priority queue that backs pool
// work distribution: enqueue, claim, ack, nack, peek, and dead-letter,
// all atomic at job-id granularity.
package broker

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arkhamforge/docintel/pkg/models"
)

// Broker is a Postgres-backed durable priority queue. One `jobstore.jobs`
// table serves every pool; `pool` is a plain filter column rather than a
// physical partition, so the same table doubles as both the queue and
// the record of truth for every job.
type Broker struct {
	db *sql.DB
}

// New constructs a Broker over an existing connection pool.
func New(db *sql.DB) *Broker {
	return &Broker{db: db}
}

// Enqueue inserts a new pending job for pool. The caller supplies the job
// id so retries/dedup can be handled upstream (e.g. by the dispatcher
// re-enqueuing with the same id after an orphan requeue).
func (b *Broker) Enqueue(ctx context.Context, pool string, jobID string, payload []byte, priority int) error {
	if jobID == "" {
		jobID = uuid.NewString()
	}

	_, err := b.db.ExecContext(ctx, `
		INSERT INTO jobstore.jobs (id, pool, payload, priority, status, max_worker_requeues, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5, now())
		ON CONFLICT (id) DO NOTHING
	`, jobID, pool, json.RawMessage(payload), priority, defaultMaxWorkerRequeues)
	if err != nil {
		return classifyError(err)
	}
	return nil
}

// Claim atomically claims the highest-priority pending job for pool,
// breaking ties by oldest created_at, via a
// `SELECT ... FOR UPDATE SKIP LOCKED` pattern.
func (b *Broker) Claim(ctx context.Context, pool, workerID string) (*models.Job, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classifyError(err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, pool, payload, priority, status, attempts, worker_requeue_count,
		       max_worker_requeues, result, error, claimed_by, correlation_id,
		       created_at, claimed_at, finalized_at
		FROM jobstore.jobs
		WHERE pool = $1 AND status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`, pool)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoJobAvailable
		}
		return nil, classifyError(err)
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		UPDATE jobstore.jobs
		SET status = 'claimed', claimed_by = $1, claimed_at = $2, attempts = attempts + 1
		WHERE id = $3
	`, workerID, now, job.ID)
	if err != nil {
		return nil, classifyError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, classifyError(err)
	}

	job.Status = models.JobClaimed
	job.ClaimedBy = workerID
	job.ClaimedAt = &now
	job.Attempts++
	return job, nil
}

// Ack marks a claimed/running job completed and stores its result.
func (b *Broker) Ack(ctx context.Context, jobID string, result []byte) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE jobstore.jobs
		SET status = 'completed', result = $1, finalized_at = now()
		WHERE id = $2
	`, json.RawMessage(result), jobID)
	if err != nil {
		return classifyError(err)
	}
	return checkRowsAffected(res)
}

// Nack reports a job failure. When requeue is true and the job has not
// exhausted its worker-requeue cap, it is returned to pending with
// worker_requeue_count incremented; otherwise it is dead-lettered.
func (b *Broker) Nack(ctx context.Context, jobID string, cause error, requeue bool) error {
	errMsg := ""
	if cause != nil {
		errMsg = cause.Error()
	}

	if !requeue {
		return b.Deadletter(ctx, jobID, errMsg)
	}

	res, err := b.db.ExecContext(ctx, `
		UPDATE jobstore.jobs
		SET status = CASE
				WHEN worker_requeue_count + 1 >= max_worker_requeues THEN 'dead'
				ELSE 'pending'
			END,
			worker_requeue_count = worker_requeue_count + 1,
			error = $1,
			finalized_at = CASE
				WHEN worker_requeue_count + 1 >= max_worker_requeues THEN now()
				ELSE finalized_at
			END
		WHERE id = $2
	`, errMsg, jobID)
	if err != nil {
		return classifyError(err)
	}
	return checkRowsAffected(res)
}

// Deadletter terminally fails a job, recording reason.
func (b *Broker) Deadletter(ctx context.Context, jobID, reason string) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE jobstore.jobs
		SET status = 'dead', error = $1, finalized_at = now()
		WHERE id = $2
	`, reason, jobID)
	if err != nil {
		return classifyError(err)
	}
	return checkRowsAffected(res)
}

// Peek lists pending job ids for pool without claiming them, ordered the
// same way Claim would serve them.
func (b *Broker) Peek(ctx context.Context, pool string, limit int) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id FROM jobstore.jobs
		WHERE pool = $1 AND status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT $2
	`, pool, limit)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classifyError(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// QueueDepth counts pending jobs for pool, for health reporting.
func (b *Broker) QueueDepth(ctx context.Context, pool string) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `
		SELECT count(*) FROM jobstore.jobs WHERE pool = $1 AND status = 'pending'
	`, pool).Scan(&n)
	if err != nil {
		return 0, classifyError(err)
	}
	return n, nil
}

// MarkRunning transitions a claimed job to running, the state the worker
// runtime records once it begins dispatching to the stage handler.
func (b *Broker) MarkRunning(ctx context.Context, jobID string) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE jobstore.jobs SET status = 'running' WHERE id = $1 AND status = 'claimed'
	`, jobID)
	if err != nil {
		return classifyError(err)
	}
	return checkRowsAffected(res)
}

// RequeueOrphan returns an orphaned running job to pending, incrementing
// worker_requeue_count, or dead-letters it once the cap is reached.
func (b *Broker) RequeueOrphan(ctx context.Context, jobID, reason string) (deadLettered bool, err error) {
	row := b.db.QueryRowContext(ctx, `
		UPDATE jobstore.jobs
		SET status = CASE
				WHEN worker_requeue_count + 1 >= max_worker_requeues THEN 'dead'
				ELSE 'pending'
			END,
			worker_requeue_count = worker_requeue_count + 1,
			claimed_by = NULL,
			claimed_at = NULL,
			error = $1,
			finalized_at = CASE
				WHEN worker_requeue_count + 1 >= max_worker_requeues THEN now()
				ELSE NULL
			END
		WHERE id = $2
		RETURNING status = 'dead'
	`, reason, jobID)

	if scanErr := row.Scan(&deadLettered); scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			return false, ErrJobNotFound
		}
		return false, classifyError(scanErr)
	}
	return deadLettered, nil
}

// ResetRequeueCount resets worker_requeue_count to 0, used by the
// operator "requeue" endpoint to give a poison job a fresh
// budget after a root cause fix.
func (b *Broker) ResetRequeueCount(ctx context.Context, jobID string) error {
	res, err := b.db.ExecContext(ctx, `
		UPDATE jobstore.jobs SET worker_requeue_count = 0 WHERE id = $1
	`, jobID)
	if err != nil {
		return classifyError(err)
	}
	return checkRowsAffected(res)
}

const defaultMaxWorkerRequeues = 3

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job            models.Job
		payload        []byte
		result         sql.NullString
		errMsg         sql.NullString
		claimedBy      sql.NullString
		correlationID  sql.NullString
		claimedAt      sql.NullTime
		finalizedAt    sql.NullTime
		status         string
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

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classifyError(err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// classifyError wraps driver errors as ErrBrokerUnavailable for anything
// that is not a recognized not-found/conflict condition, so callers can
// apply backoff-and-retry uniformly.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrJobNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
}
