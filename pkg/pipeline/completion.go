package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// MandatoryGroup is a set of stage names that are alternative entry
// points into the same logical pipeline step — e.g. {"extract", "ocr"}
// both feed "normalize", and a document only ever goes through one of
// them. A group is satisfied once any one of its members completes.
type MandatoryGroup []string

func (g MandatoryGroup) has(stage string) bool {
	for _, s := range g {
		if s == stage {
			return true
		}
	}
	return false
}

// docProgress is the per-document bookkeeping CompletionTracker keeps
// while a document is in flight.
type docProgress struct {
	satisfied       []bool
	optionalSettled bool
	optionalFailed  bool
	resolved        bool
}

func (p *docProgress) allMandatorySatisfied() bool {
	for _, ok := range p.satisfied {
		if !ok {
			return false
		}
	}
	return true
}

// CompletionTracker derives each document's terminal lifecycle status by
// tallying stage.*.completed/stage.*.failed events against the
// pipeline's mandatory-stage groups. It subscribes once for the whole
// pipeline's lifetime and resolves one document at a time as events
// arrive; it owns no retry or backfill logic of its own, mirroring the
// Pool Dispatcher's own single bus subscription.
type CompletionTracker struct {
	documents DocumentStore
	bus       *events.Bus

	groups []MandatoryGroup
	// optionalStage is the one non-mandatory stage a document's outcome
	// still waits on before finalizing — "embed" in the built-in DAG.
	// A document is marked complete only once every mandatory group is
	// satisfied AND this stage has settled (completed or could not be
	// enqueued); if it never failed to enqueue but also never runs
	// (e.g. no engine declared at all), the document waits indefinitely,
	// the same way it would for any other stage with no worker.
	// Empty disables the optional-stage wait entirely.
	optionalStage string

	mu       sync.Mutex
	progress map[string]*docProgress
}

// NewCompletionTracker constructs a tracker. groups is normally built
// from config.StageRegistry by grouping mandatory stages that share the
// same NextStages (alternative entries), one group per distinct
// successor set.
func NewCompletionTracker(documents DocumentStore, bus *events.Bus, groups []MandatoryGroup, optionalStage string) *CompletionTracker {
	return &CompletionTracker{
		documents:     documents,
		bus:           bus,
		groups:        groups,
		optionalStage: optionalStage,
		progress:      make(map[string]*docProgress),
	}
}

// Run subscribes to every stage lifecycle event and resolves documents
// until ctx is cancelled. Intended to be run in its own goroutine,
// alongside Dispatcher.Run.
func (t *CompletionTracker) Run(ctx context.Context) {
	sub := t.bus.Subscribe("stage.*.*")
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			t.handle(ctx, evt)
		}
	}
}

func (t *CompletionTracker) handle(ctx context.Context, evt models.Event) {
	parts := strings.Split(evt.Type, ".")
	if len(parts) != 3 || parts[0] != "stage" {
		return
	}
	stageName := parts[1]

	var payload events.StagePayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return
	}
	if payload.DocumentID == "" {
		return
	}

	outcome, final := t.record(payload.DocumentID, stageName, payload.Status)
	if !final {
		return
	}

	switch outcome {
	case models.DocComplete:
		t.finalize(ctx, payload.DocumentID, models.DocComplete, "")
	case models.DocPartial:
		t.finalize(ctx, payload.DocumentID, models.DocPartial, "optional stage "+t.optionalStage+" unavailable")
	case models.DocFailed:
		t.finalize(ctx, payload.DocumentID, models.DocFailed, payload.Error)
	}
}

// record updates a document's progress for one stage event and reports
// the terminal status to apply, if the document just became resolved.
func (t *CompletionTracker) record(documentID, stageName string, status events.StageStatus) (outcome models.DocumentStatus, final bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prog, ok := t.progress[documentID]
	if !ok {
		prog = &docProgress{satisfied: make([]bool, len(t.groups))}
		t.progress[documentID] = prog
	}
	if prog.resolved {
		return "", false
	}

	switch {
	case stageName == t.optionalStage:
		prog.optionalSettled = true
		prog.optionalFailed = status == events.StageFailed

	case status == events.StageFailed:
		// A mandatory stage couldn't be run at all: the document can
		// never reach complete or partial, it failed outright.
		prog.resolved = true
		return models.DocFailed, true

	case status == events.StageCompleted:
		for i, group := range t.groups {
			if !prog.satisfied[i] && group.has(stageName) {
				prog.satisfied[i] = true
			}
		}
	}

	if !prog.allMandatorySatisfied() {
		return "", false
	}
	if t.optionalStage != "" && !prog.optionalSettled {
		return "", false
	}

	prog.resolved = true
	if prog.optionalFailed {
		return models.DocPartial, true
	}
	return models.DocComplete, true
}

func (t *CompletionTracker) finalize(ctx context.Context, documentID string, status models.DocumentStatus, reason string) {
	log := slog.With("document_id", documentID, "status", status)

	if err := t.documents.UpdateStatus(ctx, documentID, status); err != nil {
		log.Error("failed to update document status", "error", err)
	}

	topic := documentTopicFor(status)
	if topic == "" || t.bus == nil {
		return
	}
	payload, err := json.Marshal(events.DocumentPayload{DocumentID: documentID, Status: string(status), Reason: reason})
	if err != nil {
		log.Error("failed to marshal document lifecycle payload", "error", err)
		return
	}
	t.bus.Publish(topic, "completion-tracker", payload, documentID)
	log.Info("document lifecycle resolved")
}

func documentTopicFor(status models.DocumentStatus) string {
	switch status {
	case models.DocComplete:
		return events.TopicDocumentComplete
	case models.DocPartial:
		return events.TopicDocumentPartial
	case models.DocFailed:
		return events.TopicDocumentFailed
	default:
		return ""
	}
}
