package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// NormalizeResult is Normalize's job result.
type NormalizeResult struct {
	DocumentID string  `json:"document_id"`
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Quality    float64 `json:"quality"`
	WordCount  int     `json:"word_count"`
}

// NormalizeHandler implements the Normalize/Light stage:
// whitespace and unicode normalization, language detection, and a
// quality score. Pure CPU, no external engine.
type NormalizeHandler struct {
	Documents DocumentStore
	Bus       *events.Bus
}

// Handle implements pkg/worker.Handler.
func (h *NormalizeHandler) Handle(ctx context.Context, job *models.Job) ([]byte, error) {
	var in NormalizePayload
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		return nil, fmt.Errorf("normalize: invalid payload: %w", err)
	}

	text := normalizeText(in.RawText)
	lang := detectLanguage(text)
	quality := qualityScore(text)
	wordCount := len(strings.Fields(text))

	if h.Documents != nil {
		if err := h.Documents.SaveNormalizedText(ctx, in.DocumentID, text, lang, quality, wordCount); err != nil {
			return nil, fmt.Errorf("normalize: failed to save: %w", err)
		}
	}

	h.publishCompleted(in.DocumentID, job.ID)

	return json.Marshal(NormalizeResult{
		DocumentID: in.DocumentID,
		Text:       text,
		Language:   lang,
		Quality:    quality,
		WordCount:  wordCount,
	})
}

// normalizeText collapses runs of whitespace and applies NFC unicode
// normalization so downstream stages (NER, Chunk) see consistent byte
// offsets.
func normalizeText(raw string) string {
	composed := norm.NFC.String(raw)
	fields := strings.Fields(composed)
	return strings.Join(fields, " ")
}

// detectLanguage is a minimal heuristic: ASCII-dominant text is English,
// anything with a significant share of non-Latin script is tagged
// "und" (undetermined) rather than guessed at, since a real language
// model is out of scope for this stage.
func detectLanguage(text string) string {
	if text == "" {
		return "und"
	}
	var latin, total int
	for _, r := range text {
		if unicode.IsLetter(r) {
			total++
			if r <= unicode.MaxLatin1 {
				latin++
			}
		}
	}
	if total == 0 {
		return "und"
	}
	if float64(latin)/float64(total) >= 0.9 {
		return "en"
	}
	return "und"
}

// qualityScore is a 0-1 heuristic blending average word length and
// alphanumeric density; garbled OCR output and binary-looking text both
// score low.
func qualityScore(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}

	var alnum, total int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	density := float64(alnum) / float64(total)

	avgWordLen := float64(len(strings.Join(fields, ""))) / float64(len(fields))
	lengthScore := avgWordLen / 8
	if lengthScore > 1 {
		lengthScore = 1
	}

	score := (density + lengthScore) / 2
	if score > 1 {
		score = 1
	}
	return score
}

func (h *NormalizeHandler) publishCompleted(documentID, jobID string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "normalize", Status: events.StageCompleted})
	if err != nil {
		return
	}
	h.Bus.Publish(events.StageTopic("normalize", events.StageCompleted), "pipeline-normalize", payload, documentID)
}
