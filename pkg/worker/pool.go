package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// Pool runs every worker goroutine assigned to a single named pool,
// generalizing a single fixed global worker pool into N independently
// sized and configured pools.
type Pool struct {
	pool     models.Pool
	broker   *broker.Broker
	handler  Handler
	bus      *events.Bus
	registry *Registry
	cfg      Config

	workers []*Worker
	started bool
	mu      sync.Mutex
}

// NewPool constructs a Pool for pool, not yet started.
func NewPool(pool models.Pool, b *broker.Broker, handler Handler, bus *events.Bus, registry *Registry, cfg Config) *Pool {
	return &Pool{pool: pool, broker: b, handler: handler, bus: bus, registry: registry, cfg: cfg}
}

// Start spawns pool.MaxConcurrency worker goroutines. Safe to call once;
// later calls are no-ops.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		slog.Warn("pool already started, ignoring duplicate Start call", "pool", p.pool.Name)
		return
	}
	p.started = true

	n := p.pool.MaxConcurrency
	if n <= 0 {
		n = 1
	}
	slog.Info("starting pool", "pool", p.pool.Name, "worker_count", n)

	p.workers = make([]*Worker, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-worker-%d", p.pool.Name, i)
		w := NewWorker(id, p.pool, p.broker, p.handler, p.bus, p.registry, p.cfg)
		p.workers = append(p.workers, w)
		w.Start(ctx)
	}
}

// Stop signals every worker to finish its current job, then exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	slog.Info("pool stopped", "pool", p.pool.Name)
}

// Health reports the status of every worker in the pool, plus queue depth.
func (p *Pool) Health(ctx context.Context) (*Health, error) {
	depth, err := p.broker.QueueDepth(ctx, p.pool.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue depth for pool %s: %w", p.pool.Name, err)
	}

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()

	stats := make([]WorkerHealth, len(workers))
	active := 0
	for i, w := range workers {
		h := w.Health()
		stats[i] = h
		if h.Status == string(StatusWorking) {
			active++
		}
	}

	return &Health{
		Pool:           p.pool.Name,
		TotalWorkers:   len(workers),
		ActiveWorkers:  active,
		QueueDepth:     depth,
		MaxConcurrency: p.pool.MaxConcurrency,
		Workers:        stats,
	}, nil
}

// Health is a Pool's point-in-time status report.
type Health struct {
	Pool           string
	TotalWorkers   int
	ActiveWorkers  int
	QueueDepth     int
	MaxConcurrency int
	Workers        []WorkerHealth
}
