package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/events"
)

// Route maps a completed stage to the next stage's pool and the priority
// its job should be enqueued with.
type Route struct {
	NextStage string
	Pool      string
	Priority  int
}

// Dispatcher is the Pool Dispatcher. Rather than running one fixed chain
// of stages, it subscribes to `stage.<k>.completed` events and enqueues
// stage k+1's job on the pool the DAG resolves it to, after an admission
// check against the worker-health registry.
type Dispatcher struct {
	broker   *broker.Broker
	bus      *events.Bus
	registry *Registry
	routes   map[string][]Route // keyed by completed stage name

	staleThreshold time.Duration

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
	cacheMu    sync.Mutex
	cache      map[string]bool // pool → last admission decision
}

// NewDispatcher constructs a Dispatcher. routes is keyed by the stage name
// whose completion triggers the route (e.g. "extract" routes to the
// pool for "ocr" or "normalize"); a stage with more than one next stage
// (e.g. "normalize" feeding both "ner" and "chunk") carries one Route
// per successor, and every one of them is enqueued on that stage's
// completion. staleThreshold is the configured stale_pool_threshold: a
// pool with no worker heartbeat for longer than this is rejected via
// ErrPoolUnavailable.
func NewDispatcher(b *broker.Broker, bus *events.Bus, registry *Registry, routes map[string][]Route, staleThreshold time.Duration) *Dispatcher {
	if staleThreshold <= 0 {
		staleThreshold = 60 * time.Second
	}
	return &Dispatcher{
		broker:         b,
		bus:            bus,
		registry:       registry,
		routes:         routes,
		staleThreshold: staleThreshold,
		limiters:       make(map[string]*rate.Limiter),
		cache:          make(map[string]bool),
	}
}

// Run subscribes to stage completion events and dispatches until ctx is
// cancelled. Intended to be run in its own goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	sub := d.bus.Subscribe("stage.*.completed")
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			d.handleTopic(ctx, evt.Type, evt.CorrelationID, evt.Payload)
		}
	}
}

// handleTopic extracts the completed stage name from a "stage.<k>.completed"
// topic and routes its successor.
func (d *Dispatcher) handleTopic(ctx context.Context, topic, correlationID string, payload []byte) {
	parts := strings.Split(topic, ".")
	if len(parts) != 3 || parts[0] != "stage" || parts[2] != "completed" {
		return
	}
	stage := parts[1]

	routes, ok := d.routes[stage]
	if !ok {
		return
	}

	for _, route := range routes {
		// A single successor reuses correlationID (the document id) as
		// the job id, preserving the "job id == document id" lookup
		// convention jobs/:id/events relies on. Fanning out to more
		// than one successor can't reuse the same id for each: jobs.id
		// is a single global primary key across every pool, so a
		// second insert with the same id would silently no-op under
		// the ON CONFLICT DO NOTHING dedup guard. Suffix by next stage
		// instead, so every fan-out branch still gets its own row.
		jobID := correlationID
		if len(routes) > 1 {
			jobID = correlationID + ":" + route.NextStage
		}
		if err := d.Enqueue(ctx, route.Pool, jobID, payload, route.Priority); err != nil {
			slog.Error("dispatcher failed to enqueue next stage", "stage", stage, "next_pool", route.Pool, "error", err)
			d.publishStageUnavailable(route.NextStage, correlationID, err)
		}
	}
}

// publishStageUnavailable reports a stage that could never be enqueued
// on its own stage.<name>.failed topic, the same topic a stage handler
// uses to report an in-process failure. Whether that's fatal for the
// owning document (a mandatory stage) or just degrades it (an optional
// one, e.g. embed with no GPU worker available) is a decision the
// document-completion tracker makes, not the dispatcher.
func (d *Dispatcher) publishStageUnavailable(stage, documentID string, cause error) {
	if d.bus == nil || documentID == "" {
		return
	}
	payload, err := json.Marshal(events.StagePayload{DocumentID: documentID, Stage: stage, Status: events.StageFailed, Error: cause.Error()})
	if err != nil {
		return
	}
	d.bus.Publish(events.StageTopic(stage, events.StageFailed), "dispatcher", payload, documentID)
}

// Enqueue admits and places a job on pool, rejecting with
// ErrPoolUnavailable if the pool has had no registered worker heartbeat
// within staleThreshold.
func (d *Dispatcher) Enqueue(ctx context.Context, pool, jobID string, payload []byte, priority int) error {
	if !d.admit(pool) {
		return fmt.Errorf("%w: pool %q", ErrPoolUnavailable, pool)
	}
	return d.broker.Enqueue(ctx, pool, jobID, payload, priority)
}

// admit reports whether pool currently has a healthy worker, throttling
// the underlying registry check to at most once per second per pool
// (golang.org/x/time/rate) so a hot dispatch path doesn't hammer the
// registry's lock on every single enqueue.
func (d *Dispatcher) admit(pool string) bool {
	d.limitersMu.Lock()
	limiter, ok := d.limiters[pool]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(1), 1)
		d.limiters[pool] = limiter
	}
	d.limitersMu.Unlock()

	if !limiter.Allow() {
		d.cacheMu.Lock()
		decision, cached := d.cache[pool]
		d.cacheMu.Unlock()
		if cached {
			return decision
		}
	}

	last, registered := d.registry.LastHeartbeat(pool)
	decision := registered && time.Since(last) <= d.staleThreshold

	d.cacheMu.Lock()
	d.cache[pool] = decision
	d.cacheMu.Unlock()

	return decision
}
