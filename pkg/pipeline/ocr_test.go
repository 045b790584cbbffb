package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
)

func TestOCRHandlerUsesFastResultWhenGoodEnough(t *testing.T) {
	fast := &fakeOCREngine{result: pipeline.OCRResult{Text: "a perfectly readable page of text", Confidence: 0.9}}
	heavy := &fakeOCREngine{result: pipeline.OCRResult{Text: "should not be used", Confidence: 1}}
	docs := &fakeDocumentStore{}

	h := &pipeline.OCRHandler{Fast: fast, Heavy: heavy, Documents: docs}

	payload, _ := json.Marshal(pipeline.OCRPayload{DocumentID: "doc-1", FilePath: "scan.png"})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.OCRStageResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, fast.result.Text, result.Text)
	assert.False(t, result.Escalated)
}

func TestOCRHandlerEscalatesOnLowConfidence(t *testing.T) {
	fast := &fakeOCREngine{result: pipeline.OCRResult{Text: "garbled low quality text here", Confidence: 0.2}}
	heavy := &fakeOCREngine{result: pipeline.OCRResult{Text: "clean vision-lm recognized text", Confidence: 0.95}}
	docs := &fakeDocumentStore{}

	h := &pipeline.OCRHandler{Fast: fast, Heavy: heavy, Documents: docs}

	payload, _ := json.Marshal(pipeline.OCRPayload{DocumentID: "doc-1", FilePath: "scan.png"})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.OCRStageResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, heavy.result.Text, result.Text)
	assert.True(t, result.Escalated)
}

func TestOCRHandlerEscalatesOnShortText(t *testing.T) {
	fast := &fakeOCREngine{result: pipeline.OCRResult{Text: "hi", Confidence: 0.99}}
	heavy := &fakeOCREngine{result: pipeline.OCRResult{Text: "a much longer recognized passage", Confidence: 0.8}}

	h := &pipeline.OCRHandler{Fast: fast, Heavy: heavy, MinTextLength: 10}

	payload, _ := json.Marshal(pipeline.OCRPayload{DocumentID: "doc-1", FilePath: "scan.png"})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.OCRStageResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.True(t, result.Escalated)
}

func TestOCRHandlerBothEnginesFailReturnsError(t *testing.T) {
	fast := &fakeOCREngine{err: errors.New("fast engine unreachable")}
	heavy := &fakeOCREngine{err: errors.New("heavy engine unreachable")}

	h := &pipeline.OCRHandler{Fast: fast, Heavy: heavy}

	payload, _ := json.Marshal(pipeline.OCRPayload{DocumentID: "doc-1", FilePath: "scan.png"})
	job := &models.Job{ID: "job-1", Payload: payload}

	_, err := h.Handle(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrOCRExhausted)
}

func TestOCRHandlerNoEnginesRegisteredReturnsError(t *testing.T) {
	h := &pipeline.OCRHandler{}
	payload, _ := json.Marshal(pipeline.OCRPayload{DocumentID: "doc-1", FilePath: "scan.png"})
	job := &models.Job{ID: "job-1", Payload: payload}

	_, err := h.Handle(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrOCRExhausted)
}

func TestOCRHandlerFallbackEmitsAttemptedAndEscalatedEvents(t *testing.T) {
	fast := &fakeOCREngine{result: pipeline.OCRResult{Text: "garbled low quality text here", Confidence: 0.2}}
	heavy := &fakeOCREngine{result: pipeline.OCRResult{Text: "clean vision-lm recognized text", Confidence: 0.95}}
	docs := &fakeDocumentStore{}
	bus := events.New()

	attempted := bus.Subscribe(events.TopicOCRAttempted)
	defer attempted.Unsubscribe()
	escalated := bus.Subscribe(events.TopicOCREscalated)
	defer escalated.Unsubscribe()

	h := &pipeline.OCRHandler{Fast: fast, Heavy: heavy, Documents: docs, Bus: bus}

	payload, _ := json.Marshal(pipeline.OCRPayload{DocumentID: "doc-1", FilePath: "scan.png"})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.OCRStageResult
	require.NoError(t, json.Unmarshal(out, &result))
	require.True(t, result.Escalated)

	select {
	case evt := <-attempted.Events():
		assert.Equal(t, events.TopicOCRAttempted, evt.Type)
	default:
		t.Fatal("expected an ocr.attempted event before the escalation decision")
	}

	select {
	case evt := <-escalated.Events():
		assert.Equal(t, events.TopicOCREscalated, evt.Type)
	default:
		t.Fatal("expected an ocr.escalated event once fallback was triggered")
	}
}
