package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/worker"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func TestPoolProcessesEnqueuedJobs(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	bus := events.New()
	registry := worker.NewRegistry()

	handled := make(chan string, 4)
	handler := worker.HandlerFunc(func(ctx context.Context, job *models.Job) ([]byte, error) {
		handled <- job.ID
		return []byte(`{}`), nil
	})

	pool := models.Pool{Name: "chunk", MaxConcurrency: 2, JobTimeout: time.Second}
	p := worker.NewPool(pool, b, handler, bus, registry, worker.Config{
		PollInterval: 10 * time.Millisecond, HeartbeatInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	defer func() { cancel(); p.Stop() }()

	jobID := uuid.NewString()
	require.NoError(t, b.Enqueue(context.Background(), "chunk", jobID, []byte(`{}`), 0))

	select {
	case got := <-handled:
		assert.Equal(t, jobID, got)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a worker to process the job")
	}
}

func TestPoolHealthReportsWorkerCount(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	bus := events.New()
	registry := worker.NewRegistry()

	handler := worker.HandlerFunc(func(ctx context.Context, job *models.Job) ([]byte, error) {
		return []byte(`{}`), nil
	})

	pool := models.Pool{Name: "ner", MaxConcurrency: 3, JobTimeout: time.Second}
	p := worker.NewPool(pool, b, handler, bus, registry, worker.Config{
		PollInterval: 50 * time.Millisecond, HeartbeatInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	defer func() { cancel(); p.Stop() }()

	h, err := p.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, h.TotalWorkers)
	assert.Equal(t, "ner", h.Pool)
}

func TestPoolStartIsIdempotent(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	bus := events.New()
	registry := worker.NewRegistry()

	handler := worker.HandlerFunc(func(ctx context.Context, job *models.Job) ([]byte, error) {
		return []byte(`{}`), nil
	})

	pool := models.Pool{Name: "extract", MaxConcurrency: 1, JobTimeout: time.Second}
	p := worker.NewPool(pool, b, handler, bus, registry, worker.Config{
		PollInterval: 50 * time.Millisecond, HeartbeatInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); p.Stop() }()

	p.Start(ctx)
	p.Start(ctx)

	h, err := p.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, h.TotalWorkers)
}
