package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/arkhamforge/docintel/pkg/broker"
	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/jobstore"
	"github.com/arkhamforge/docintel/pkg/models"
)

// OrphanScanner periodically requeues `running` jobs whose owning worker's
// heartbeat has expired: an orphan is requeued like any other nack, and
// only dead-lettered once worker_requeue_count reaches the pool's cap.
type OrphanScanner struct {
	broker   *broker.Broker
	store    *jobstore.Store
	registry *Registry
	bus      *events.Bus

	threshold time.Duration
	interval  time.Duration

	stopCh chan struct{}
	once   sync.Once
	done   chan struct{}
}

// NewOrphanScanner constructs a scanner over store/broker/registry. A zero
// threshold or interval falls back to 3×heartbeat_interval / 30s defaults.
func NewOrphanScanner(b *broker.Broker, store *jobstore.Store, registry *Registry, bus *events.Bus, threshold, interval time.Duration) *OrphanScanner {
	if threshold <= 0 {
		threshold = 15 * time.Second
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &OrphanScanner{
		broker: b, store: store, registry: registry, bus: bus,
		threshold: threshold, interval: interval,
		stopCh: make(chan struct{}),
	}
}

// Start launches the background scan loop.
func (s *OrphanScanner) Start(ctx context.Context) {
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop signals the scan loop to exit and waits for it to finish.
func (s *OrphanScanner) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	if s.done != nil {
		<-s.done
	}
}

func (s *OrphanScanner) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				slog.Error("orphan scan failed", "error", err)
			}
		}
	}
}

// Scan runs one pass over running jobs, requeueing any whose pool has had
// no worker heartbeat within threshold. Exported so callers can drive a
// single pass directly instead of waiting on the interval ticker.
func (s *OrphanScanner) Scan(ctx context.Context) error {
	running, err := s.store.List(ctx, jobstore.ListFilter{Status: models.JobRunning, Limit: 1000})
	if err != nil {
		return fmt.Errorf("failed to list running jobs: %w", err)
	}

	now := time.Now()
	for _, job := range running {
		last, registered := s.registry.LastHeartbeat(job.Pool)
		stale := !registered || now.Sub(last) > s.threshold
		if !stale {
			continue
		}

		reason := fmt.Sprintf("orphaned: no heartbeat from worker %s in pool %s", job.ClaimedBy, job.Pool)
		deadLettered, err := s.broker.RequeueOrphan(ctx, job.ID, reason)
		if err != nil {
			slog.Error("failed to requeue orphaned job", "job_id", job.ID, "error", err)
			continue
		}

		if deadLettered {
			slog.Warn("orphaned job dead-lettered at requeue cap", "job_id", job.ID, "pool", job.Pool)
			s.publishDocumentFailed(job, reason)
		} else {
			slog.Warn("orphaned job requeued", "job_id", job.ID, "pool", job.Pool)
		}
	}
	return nil
}

// publishDocumentFailed emits document.failed when an orphan exhausts its
// requeue cap.
func (s *OrphanScanner) publishDocumentFailed(job *models.Job, reason string) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(events.DocumentPayload{DocumentID: job.CorrelationID, Status: "failed", Reason: reason})
	if err != nil {
		return
	}
	s.bus.Publish(events.TopicDocumentFailed, "orphan-scanner", payload, job.CorrelationID)
}
