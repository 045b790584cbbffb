package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// OCRResult is OCR's job result.
type OCRStageResult struct {
	DocumentID string `json:"document_id"`
	Text       string `json:"text"`
	Escalated  bool   `json:"escalated"`
}

// OCRHandler implements the OCR stage: the fast engine
// runs first; if its result is below confidence, below minimum length,
// or fails a character-quality check, the heavy engine is tried instead.
// The escalation decision is recorded on the result, never silently
// swallowed.
type OCRHandler struct {
	Fast  OCREngine
	Heavy OCREngine

	ConfidenceFloor float64 // default 0.6
	MinTextLength   int     // default 20

	Documents DocumentStore
	Bus       *events.Bus
}

// Handle implements pkg/worker.Handler.
func (h *OCRHandler) Handle(ctx context.Context, job *models.Job) ([]byte, error) {
	var in OCRPayload
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		return nil, fmt.Errorf("ocr: invalid payload: %w", err)
	}

	h.publishAttempted(in.DocumentID, job.ID)

	result, escalated, err := h.recognize(ctx, in.FilePath)
	if err != nil {
		h.publishFailed(in.DocumentID, job.ID, err)
		return nil, fmt.Errorf("ocr: %w", err)
	}

	if h.Documents != nil {
		if err := h.Documents.SaveExtractedText(ctx, in.DocumentID, result.Text, 0); err != nil {
			return nil, fmt.Errorf("ocr: failed to save text: %w", err)
		}
	}

	if escalated {
		h.publishEscalated(in.DocumentID)
	}
	h.publishCompleted(in.DocumentID, job.ID, result.Text)

	return json.Marshal(OCRStageResult{DocumentID: in.DocumentID, Text: result.Text, Escalated: escalated})
}

// recognize runs the fast engine, escalating to the heavy engine when
// the fast result's confidence, length, or character quality is
// insufficient. Returns ErrOCRExhausted if neither engine is usable.
func (h *OCRHandler) recognize(ctx context.Context, imagePath string) (OCRResult, bool, error) {
	floor := h.ConfidenceFloor
	if floor <= 0 {
		floor = 0.6
	}
	minLen := h.MinTextLength
	if minLen <= 0 {
		minLen = 20
	}

	var fastResult OCRResult
	var fastErr error
	if h.Fast != nil {
		fastResult, fastErr = h.Fast.Recognize(ctx, imagePath)
		if fastErr == nil && sufficientQuality(fastResult, floor, minLen) {
			return fastResult, false, nil
		}
	}

	if h.Heavy != nil {
		heavyResult, heavyErr := h.Heavy.Recognize(ctx, imagePath)
		if heavyErr == nil {
			return heavyResult, true, nil
		}
		if fastErr != nil {
			return OCRResult{}, false, fmt.Errorf("%w: fast engine: %v, heavy engine: %v", ErrOCRExhausted, fastErr, heavyErr)
		}
		// Fast engine ran but was low quality, and heavy also failed:
		// fall back to the fast result rather than losing it entirely.
		return fastResult, true, nil
	}

	if fastErr != nil {
		return OCRResult{}, false, fmt.Errorf("%w: %v", ErrOCRExhausted, fastErr)
	}
	if h.Fast == nil {
		return OCRResult{}, false, ErrOCRExhausted
	}
	return fastResult, false, nil
}

// sufficientQuality applies the fast-engine acceptance rule: confidence
// at or above floor, text at or above minLen, and plausible character
// composition (not mostly non-printable/garbage).
func sufficientQuality(r OCRResult, floor float64, minLen int) bool {
	if r.Confidence < floor {
		return false
	}
	if len(r.Text) < minLen {
		return false
	}
	return characterQualityOK(r.Text)
}

// characterQualityOK rejects OCR output dominated by non-letter,
// non-digit, non-space runes — a cheap signal of garbled recognition.
func characterQualityOK(text string) bool {
	if text == "" {
		return false
	}
	var usable, total int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) {
			usable++
		}
	}
	if total == 0 {
		return false
	}
	return float64(usable)/float64(total) >= 0.8
}

// publishAttempted records that the fast engine is about to run, ahead
// of any escalation decision — distinct from publishCompleted so the
// event log carries both "OCR was tried on this document" and "here's
// how it turned out" as separate entries, even when escalation follows.
func (h *OCRHandler) publishAttempted(documentID, jobID string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "ocr", Status: events.StageStarted})
	if err != nil {
		return
	}
	h.Bus.Publish(events.TopicOCRAttempted, "pipeline-ocr", payload, documentID)
}

func (h *OCRHandler) publishCompleted(documentID, jobID, text string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(textForwardPayload{
		StagePayload: events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "ocr", Status: events.StageCompleted},
		RawText:      text,
	})
	if err != nil {
		return
	}
	h.Bus.Publish(events.StageTopic("ocr", events.StageCompleted), "pipeline-ocr", payload, documentID)
}

func (h *OCRHandler) publishEscalated(documentID string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.DocumentPayload{DocumentID: documentID, Status: "ocr_escalated"})
	if err != nil {
		return
	}
	h.Bus.Publish(events.TopicOCREscalated, "pipeline-ocr", payload, documentID)
}

func (h *OCRHandler) publishFailed(documentID, jobID string, cause error) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "ocr", Status: events.StageFailed, Error: cause.Error()})
	if err != nil {
		return
	}
	h.Bus.Publish(events.StageTopic("ocr", events.StageFailed), "pipeline-ocr", payload, documentID)

	docPayload, err := json.Marshal(events.DocumentPayload{DocumentID: documentID, Status: "failed", Reason: cause.Error()})
	if err == nil {
		h.Bus.Publish(events.TopicDocumentFailed, "pipeline-ocr", docPayload, documentID)
	}
}
