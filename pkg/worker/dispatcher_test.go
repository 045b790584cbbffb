package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/worker"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func TestDispatcherRejectsUnregisteredPool(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	registry := worker.NewRegistry()
	bus := events.New()

	d := worker.NewDispatcher(b, bus, registry, nil, time.Minute)

	err := d.Enqueue(context.Background(), "embed", "job-1", []byte(`{}`), 0)
	require.ErrorIs(t, err, worker.ErrPoolUnavailable)
}

func TestDispatcherAdmitsHealthyPool(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	registry := worker.NewRegistry()
	bus := events.New()

	registry.Register("embed-worker-0", "embed")

	d := worker.NewDispatcher(b, bus, registry, nil, time.Minute)

	err := d.Enqueue(context.Background(), "embed", "job-1", []byte(`{}`), 0)
	assert.NoError(t, err)
}

func TestDispatcherRejectsStalePool(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	registry := worker.NewRegistry()
	bus := events.New()

	registry.Register("ocr-worker-0", "ocr")

	d := worker.NewDispatcher(b, bus, registry, nil, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	err := d.Enqueue(context.Background(), "ocr", "job-1", []byte(`{}`), 0)
	require.ErrorIs(t, err, worker.ErrPoolUnavailable)
}

func TestDispatcherRunRoutesStageCompletion(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	registry := worker.NewRegistry()
	bus := events.New()

	registry.Register("ner-worker-0", "ner")

	routes := map[string][]worker.Route{
		"chunk": {{NextStage: "ner", Pool: "ner", Priority: 5}},
	}
	d := worker.NewDispatcher(b, bus, registry, routes, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	time.Sleep(20 * time.Millisecond) // let Run's subscription establish
	bus.Publish("stage.chunk.completed", "worker-1", []byte(`{}`), "doc-1")

	require.Eventually(t, func() bool {
		depth, err := b.QueueDepth(context.Background(), "ner")
		return err == nil && depth == 1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDispatcherRunFansOutToEverySuccessor(t *testing.T) {
	client := testdb.NewTestClient(t)
	b := broker.New(client.DB())
	registry := worker.NewRegistry()
	bus := events.New()

	registry.Register("ner-worker-0", "ner")
	registry.Register("chunk-worker-0", "chunk")

	routes := map[string][]worker.Route{
		"normalize": {
			{NextStage: "ner", Pool: "ner", Priority: 0},
			{NextStage: "chunk", Pool: "chunk", Priority: 0},
		},
	}
	d := worker.NewDispatcher(b, bus, registry, routes, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	time.Sleep(20 * time.Millisecond) // let Run's subscription establish
	bus.Publish("stage.normalize.completed", "worker-1", []byte(`{}`), "doc-1")

	require.Eventually(t, func() bool {
		nerDepth, err := b.QueueDepth(context.Background(), "ner")
		if err != nil || nerDepth != 1 {
			return false
		}
		chunkDepth, err := b.QueueDepth(context.Background(), "chunk")
		return err == nil && chunkDepth == 1
	}, 2*time.Second, 20*time.Millisecond)
}
