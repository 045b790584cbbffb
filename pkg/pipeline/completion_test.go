package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
)

func publishStage(bus *events.Bus, documentID, stage string, status events.StageStatus, errText string) {
	payload, _ := json.Marshal(events.StagePayload{DocumentID: documentID, Stage: stage, Status: status, Error: errText})
	bus.Publish(events.StageTopic(stage, status), "test", payload, documentID)
}

func waitForStatus(t *testing.T, docs *fakeDocumentStore, documentID string, want models.DocumentStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		docs.mu.Lock()
		defer docs.mu.Unlock()
		return docs.statuses[documentID] == want
	}, 2*time.Second, 10*time.Millisecond)
}

func waitForTopic(t *testing.T, sub *events.Subscription) models.Event {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for document lifecycle event")
		return models.Event{}
	}
}

func TestCompletionTrackerResolvesCompleteOnHappyPath(t *testing.T) {
	bus := events.New()
	docs := &fakeDocumentStore{}
	groups := []pipeline.MandatoryGroup{{"extract", "ocr"}, {"normalize"}, {"ner"}, {"chunk"}}

	tracker := pipeline.NewCompletionTracker(docs, bus, groups, "embed")
	sub := bus.Subscribe("document.*")
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	publishStage(bus, "doc-1", "extract", events.StageCompleted, "")
	publishStage(bus, "doc-1", "normalize", events.StageCompleted, "")
	publishStage(bus, "doc-1", "ner", events.StageCompleted, "")
	publishStage(bus, "doc-1", "chunk", events.StageCompleted, "")
	publishStage(bus, "doc-1", "embed", events.StageCompleted, "")

	waitForStatus(t, docs, "doc-1", models.DocComplete)
	evt := waitForTopic(t, sub)
	assert.Equal(t, events.TopicDocumentComplete, evt.Type)
}

func TestCompletionTrackerTreatsOCRAsAlternateEntryToExtract(t *testing.T) {
	bus := events.New()
	docs := &fakeDocumentStore{}
	groups := []pipeline.MandatoryGroup{{"extract", "ocr"}, {"normalize"}}

	tracker := pipeline.NewCompletionTracker(docs, bus, groups, "")
	sub := bus.Subscribe("document.*")
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	// "extract" never completes for this document; "ocr" satisfies the
	// same mandatory group in its place.
	publishStage(bus, "doc-2", "ocr", events.StageCompleted, "")
	publishStage(bus, "doc-2", "normalize", events.StageCompleted, "")

	waitForStatus(t, docs, "doc-2", models.DocComplete)
}

func TestCompletionTrackerResolvesPartialWhenOptionalStageFails(t *testing.T) {
	bus := events.New()
	docs := &fakeDocumentStore{}
	groups := []pipeline.MandatoryGroup{{"chunk"}}

	tracker := pipeline.NewCompletionTracker(docs, bus, groups, "embed")
	sub := bus.Subscribe("document.*")
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	publishStage(bus, "doc-3", "chunk", events.StageCompleted, "")
	publishStage(bus, "doc-3", "embed", events.StageFailed, "pool embed unavailable")

	waitForStatus(t, docs, "doc-3", models.DocPartial)
	evt := waitForTopic(t, sub)
	assert.Equal(t, events.TopicDocumentPartial, evt.Type)
}

func TestCompletionTrackerResolvesFailedOnMandatoryStageFailure(t *testing.T) {
	bus := events.New()
	docs := &fakeDocumentStore{}
	groups := []pipeline.MandatoryGroup{{"extract", "ocr"}, {"ner"}}

	tracker := pipeline.NewCompletionTracker(docs, bus, groups, "embed")
	sub := bus.Subscribe("document.*")
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tracker.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	publishStage(bus, "doc-4", "extract", events.StageCompleted, "")
	publishStage(bus, "doc-4", "ner", events.StageFailed, "engine unreachable")

	waitForStatus(t, docs, "doc-4", models.DocFailed)
	evt := waitForTopic(t, sub)
	assert.Equal(t, events.TopicDocumentFailed, evt.Type)

	// A late completion for an already-resolved document is a no-op.
	publishStage(bus, "doc-4", "embed", events.StageCompleted, "")
	time.Sleep(20 * time.Millisecond)
	docs.mu.Lock()
	status := docs.statuses["doc-4"]
	docs.mu.Unlock()
	assert.Equal(t, models.DocFailed, status)
}
