// Package worker implements the worker runtime and pool dispatcher:
// per-pool worker goroutines that claim, execute, heartbeat, and
// finalize jobs, plus the admission-controlled stage router that
// couples pipeline stages through the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// Handler dispatches a claimed job to the stage logic registered for its
// pool and returns the opaque result payload to ack, or an error to nack.
// A Handler must respect ctx cancellation: job_timeout is enforced by
// wrapping ctx, not by the handler itself.
type Handler interface {
	Handle(ctx context.Context, job *models.Job) ([]byte, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, job *models.Job) ([]byte, error)

func (f HandlerFunc) Handle(ctx context.Context, job *models.Job) ([]byte, error) {
	return f(ctx, job)
}

// Status is a worker's current activity state.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWorking Status = "working"
)

// Worker polls one pool for jobs, executing each through the pool's
// Handler: claim, execute, heartbeat while running, finalize — the same
// loop shape for any named pool rather than one global queue.
type Worker struct {
	id       string
	pool     models.Pool
	broker   *broker.Broker
	handler  Handler
	bus      *events.Bus
	registry *Registry

	pollInterval       time.Duration
	pollIntervalJitter time.Duration
	heartbeatInterval  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu           sync.RWMutex
	status       Status
	currentJobID string
	jobsHandled  int
	lastActivity time.Time
}

// Config tunes a Worker's polling and heartbeat cadence.
type Config struct {
	PollInterval       time.Duration
	PollIntervalJitter time.Duration
	HeartbeatInterval  time.Duration
}

// DefaultConfig returns reasonable poll/heartbeat defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:       time.Second,
		PollIntervalJitter: 250 * time.Millisecond,
		HeartbeatInterval:  5 * time.Second,
	}
}

// NewWorker constructs a worker draining pool, dispatching claimed jobs to
// handler, and publishing lifecycle events to bus.
func NewWorker(id string, pool models.Pool, b *broker.Broker, handler Handler, bus *events.Bus, registry *Registry, cfg Config) *Worker {
	if cfg.PollInterval <= 0 {
		cfg = DefaultConfig()
	}
	return &Worker{
		id:                 id,
		pool:               pool,
		broker:             b,
		handler:            handler,
		bus:                bus,
		registry:           registry,
		pollInterval:       cfg.PollInterval,
		pollIntervalJitter: cfg.PollIntervalJitter,
		heartbeatInterval:  cfg.HeartbeatInterval,
		stopCh:             make(chan struct{}),
		status:             StatusIdle,
		lastActivity:       time.Now(),
	}
}

// Start begins the worker's polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.registry.Register(w.id, w.pool.Name)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to finish its current job, then exit.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.registry.Unregister(w.id)
}

// Health returns a point-in-time snapshot for the Pool's health report.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:           w.id,
		Pool:         w.pool.Name,
		Status:       string(w.status),
		CurrentJobID: w.currentJobID,
		JobsHandled:  w.jobsHandled,
		LastActivity: w.lastActivity,
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pool", w.pool.Name)
	log.Info("worker started")

	heartbeat := time.NewTicker(w.heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-w.stopCh:
			log.Info("worker shutting down")
			return
		case <-ctx.Done():
			log.Info("context cancelled, worker shutting down")
			return
		case <-heartbeat.C:
			w.registry.Heartbeat(w.id)
		default:
			w.registry.Heartbeat(w.id)
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, broker.ErrNoJobAvailable) {
					w.sleep(w.jitteredPollInterval())
					continue
				}
				log.Error("error processing job", "error", err)
				w.sleep(time.Second)
			}
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

func (w *Worker) jitteredPollInterval() time.Duration {
	if w.pollIntervalJitter <= 0 {
		return w.pollInterval
	}
	offset := time.Duration(rand.Int64N(int64(2 * w.pollIntervalJitter)))
	return w.pollInterval - w.pollIntervalJitter + offset
}

// pollAndProcess claims one job from the pool and runs it to completion.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	job, err := w.broker.Claim(ctx, w.pool.Name, w.id)
	if err != nil {
		return err
	}

	log := slog.With("job_id", job.ID, "pool", w.pool.Name, "worker_id", w.id)
	log.Info("job claimed")

	w.setStatus(StatusWorking, job.ID)
	defer w.setStatus(StatusIdle, "")

	if err := w.broker.MarkRunning(ctx, job.ID); err != nil {
		log.Error("failed to mark job running", "error", err)
	}

	jobCtx := ctx
	var cancel context.CancelFunc
	if w.pool.JobTimeout > 0 {
		jobCtx, cancel = context.WithTimeout(ctx, w.pool.JobTimeout)
		defer cancel()
	}

	result, handleErr := w.handler.Handle(jobCtx, job)

	switch {
	case handleErr == nil:
		if err := w.broker.Ack(context.Background(), job.ID, result); err != nil {
			return fmt.Errorf("failed to ack job %s: %w", job.ID, err)
		}
		w.publishJob(events.TopicJobCompleted, job, "")

	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		timeoutErr := fmt.Errorf("job exceeded pool timeout %v: %w", w.pool.JobTimeout, handleErr)
		if err := w.broker.Nack(context.Background(), job.ID, timeoutErr, true); err != nil {
			return fmt.Errorf("failed to nack timed-out job %s: %w", job.ID, err)
		}
		w.publishJob(events.TopicJobFailed, job, timeoutErr.Error())

	default:
		if err := w.broker.Nack(context.Background(), job.ID, handleErr, true); err != nil {
			return fmt.Errorf("failed to nack job %s: %w", job.ID, err)
		}
		w.publishJob(events.TopicJobFailed, job, handleErr.Error())
	}

	w.mu.Lock()
	w.jobsHandled++
	w.mu.Unlock()

	log.Info("job processing complete")
	return nil
}

func (w *Worker) publishJob(topic string, job *models.Job, errMsg string) {
	if w.bus == nil {
		return
	}
	payload := events.JobPayload{JobID: job.ID, Pool: job.Pool, Status: string(job.Status), Error: errMsg}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("failed to marshal job event payload", "job_id", job.ID, "error", err)
		return
	}
	w.bus.Publish(topic, w.id, data, job.CorrelationID)
}

func (w *Worker) setStatus(status Status, jobID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentJobID = jobID
	w.lastActivity = time.Now()
}
