package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/worker"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func newTestPool(name string) models.Pool {
	return models.Pool{Name: name, MaxConcurrency: 1, JobTimeout: time.Second}
}

func TestWorkerClaimsAndAcksJob(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	store := jobstore.New(client.DB())
	bus := events.New()
	registry := worker.NewRegistry()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(context.Background(), "extract", jobID, []byte(`{"file":"a.pdf"}`), 0))

	handled := make(chan string, 1)
	handler := worker.HandlerFunc(func(ctx context.Context, job *models.Job) ([]byte, error) {
		handled <- job.ID
		return []byte(`{"pages":3}`), nil
	})

	w := worker.NewWorker("w1", newTestPool("extract"), b, handler, bus, registry, worker.Config{
		PollInterval: 10 * time.Millisecond, HeartbeatInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer func() { cancel(); w.Stop() }()

	select {
	case got := <-handled:
		assert.Equal(t, jobID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("expected handler to run")
	}

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), jobID)
		return err == nil && job.Status == models.JobCompleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkerNacksAndRequeuesOnTransientFailure(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	store := jobstore.New(client.DB())
	bus := events.New()
	registry := worker.NewRegistry()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(context.Background(), "ocr", jobID, []byte(`{}`), 0))

	attempt := 0
	handler := worker.HandlerFunc(func(ctx context.Context, job *models.Job) ([]byte, error) {
		attempt++
		return nil, errors.New("engine unavailable")
	})

	w := worker.NewWorker("w1", newTestPool("ocr"), b, handler, bus, registry, worker.Config{
		PollInterval: 10 * time.Millisecond, HeartbeatInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer func() { cancel(); w.Stop() }()

	require.Eventually(t, func() bool {
		job, err := store.Get(context.Background(), jobID)
		return err == nil && job.WorkerRequeueCount >= 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWorkerHealthReflectsActivity(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	bus := events.New()
	registry := worker.NewRegistry()

	handler := worker.HandlerFunc(func(ctx context.Context, job *models.Job) ([]byte, error) {
		return []byte(`{}`), nil
	})
	w := worker.NewWorker("w1", newTestPool("chunk"), b, handler, bus, registry, worker.Config{
		PollInterval: 10 * time.Millisecond, HeartbeatInterval: time.Second,
	})

	h := w.Health()
	assert.Equal(t, "w1", h.ID)
	assert.Equal(t, string(worker.StatusIdle), h.Status)
}
