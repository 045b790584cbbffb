package broker_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/models"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func TestClaimIsAtomicUnderConcurrency(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	ctx := context.Background()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(ctx, "extract", jobID, []byte(`{}`), 0))

	const workers = 8
	results := make(chan *models.Job, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func(n int) {
			job, err := b.Claim(ctx, "extract", uuid.NewString())
			results <- job
			errs <- err
		}(i)
	}

	wins := 0
	misses := 0
	for i := 0; i < workers; i++ {
		job := <-results
		err := <-errs
		switch {
		case err == nil && job != nil:
			wins++
		case err == broker.ErrNoJobAvailable:
			misses++
		default:
			require.NoError(t, err)
		}
	}

	assert.Equal(t, 1, wins, "exactly one worker must win the claim")
	assert.Equal(t, workers-1, misses)
}

func TestClaimOrdersByPriorityThenFIFO(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	ctx := context.Background()

	low := uuid.NewString()
	high := uuid.NewString()
	require.NoError(t, b.Enqueue(ctx, "ner", low, []byte(`{}`), 0))
	require.NoError(t, b.Enqueue(ctx, "ner", high, []byte(`{}`), 10))

	job, err := b.Claim(ctx, "ner", "worker-1")
	require.NoError(t, err)
	assert.Equal(t, high, job.ID, "higher priority job must be claimed first")
}

func TestAckCompletesJob(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	ctx := context.Background()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(ctx, "chunk", jobID, []byte(`{"x":1}`), 0))
	job, err := b.Claim(ctx, "chunk", "worker-1")
	require.NoError(t, err)
	require.NoError(t, b.MarkRunning(ctx, job.ID))

	require.NoError(t, b.Ack(ctx, job.ID, []byte(`{"chunks":3}`)))

	_, err = b.Claim(ctx, "chunk", "worker-2")
	assert.ErrorIs(t, err, broker.ErrNoJobAvailable)
}

func TestNackRequeuesUntilCapThenDeadLetters(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	ctx := context.Background()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(ctx, "embed", jobID, []byte(`{}`), 0))

	// max_worker_requeues defaults to 3: three nacks should requeue, the
	// third crossing the cap and dead-lettering the job.
	for i := 0; i < 2; i++ {
		job, err := b.Claim(ctx, "embed", "worker-x")
		require.NoError(t, err)
		require.NoError(t, b.Nack(ctx, job.ID, assertErr("transient"), true))
	}

	job, err := b.Claim(ctx, "embed", "worker-x")
	require.NoError(t, err)
	require.NoError(t, b.Nack(ctx, job.ID, assertErr("transient"), true))

	_, err = b.Claim(ctx, "embed", "worker-y")
	assert.ErrorIs(t, err, broker.ErrNoJobAvailable, "dead-lettered job must not be claimable")
}

func TestRequeueOrphanDeadLettersAtCap(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	ctx := context.Background()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(ctx, "ocr-fast", jobID, []byte(`{}`), 0))
	job, err := b.Claim(ctx, "ocr-fast", "worker-1")
	require.NoError(t, err)
	require.NoError(t, b.MarkRunning(ctx, job.ID))

	deadLettered, err := b.RequeueOrphan(ctx, job.ID, "heartbeat expired")
	require.NoError(t, err)
	assert.False(t, deadLettered)

	reclaimed, err := b.Claim(ctx, "ocr-fast", "worker-2")
	require.NoError(t, err)
	assert.Equal(t, 1, reclaimed.WorkerRequeueCount)
}

func TestPeekDoesNotClaim(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	ctx := context.Background()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(ctx, "normalize", jobID, []byte(`{}`), 0))

	ids, err := b.Peek(ctx, "normalize", 10)
	require.NoError(t, err)
	require.Contains(t, ids, jobID)

	job, err := b.Claim(ctx, "normalize", "worker-1")
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
}

func TestResetRequeueCount(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	ctx := context.Background()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(ctx, "chunk", jobID, []byte(`{}`), 0))
	job, err := b.Claim(ctx, "chunk", "worker-1")
	require.NoError(t, err)
	require.NoError(t, b.Nack(ctx, job.ID, assertErr("transient"), true))

	require.NoError(t, b.ResetRequeueCount(ctx, jobID))

	reclaimed, err := b.Claim(ctx, "chunk", "worker-2")
	require.NoError(t, err)
	assert.Equal(t, 0, reclaimed.WorkerRequeueCount)
}

func assertErr(msg string) error {
	return &testError{msg}
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
