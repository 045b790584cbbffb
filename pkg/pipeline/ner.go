package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// labelStandardization maps an engine's raw label vocabulary onto the
// fixed output vocabulary, so downstream consumers never
// see an engine-specific spelling like "GPE" or "geo-political".
var labelStandardization = map[string]string{
	"PERSON": "PERSON",
	"PER":    "PERSON",
	"ORG":    "ORG",
	"ORGANIZATION": "ORG",
	"GPE":    "location",
	"LOC":    "location",
	"LOCATION": "location",
	"DATE":   "DATE",
	"TIME":   "DATE",
	"MONEY":  "MONEY",
	"CARDINAL": "MONEY",
}

// standardizeLabel maps label to the fixed vocabulary, falling back to
// an uppercased copy of the original for anything unrecognized rather
// than dropping the mention.
func standardizeLabel(label string) string {
	if mapped, ok := labelStandardization[strings.ToUpper(label)]; ok {
		return mapped
	}
	return strings.ToUpper(label)
}

// NERResult is NER's job result.
type NERResult struct {
	DocumentID string          `json:"document_id"`
	Mentions   []models.EntityMention `json:"mentions"`
}

// NERHandler implements the NER stage: it runs one chunk
// at a time against the registered engine, standardizes labels, and
// backfills confidence heuristically when the engine doesn't provide
// one.
type NERHandler struct {
	Engine NEREngine

	Chunks  ChunkStore
	Entities EntityStore
	Bus     *events.Bus
}

// Handle implements pkg/worker.Handler.
func (h *NERHandler) Handle(ctx context.Context, job *models.Job) ([]byte, error) {
	var in NERPayload
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		return nil, fmt.Errorf("ner: invalid payload: %w", err)
	}
	if h.Engine == nil {
		return nil, fmt.Errorf("ner: %w", ErrNoEngineAvailable)
	}

	var chunks []models.Chunk
	if h.Chunks != nil {
		var err error
		chunks, err = h.Chunks.ChunksForDocument(ctx, in.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("ner: failed to load chunks: %w", err)
		}
	}

	var mentions []models.EntityMention
	for _, chunk := range chunks {
		raw, err := h.Engine.Extract(ctx, chunk.Text)
		if err != nil {
			return nil, fmt.Errorf("ner: engine failed on chunk %s: %w", chunk.ID, err)
		}
		for _, r := range raw {
			mentions = append(mentions, models.EntityMention{
				ID:         uuid.NewString(),
				ChunkID:    chunk.ID,
				DocumentID: in.DocumentID,
				Text:       r.Text,
				Label:      standardizeLabel(r.Label),
				StartChar:  r.StartChar,
				EndChar:    r.EndChar,
				Confidence: confidenceFor(r),
			})
		}
	}

	if h.Entities != nil && len(mentions) > 0 {
		if err := h.Entities.SaveMentions(ctx, in.DocumentID, mentions); err != nil {
			return nil, fmt.Errorf("ner: failed to save mentions: %w", err)
		}
	}

	h.publishCompleted(in.DocumentID, job.ID)

	return json.Marshal(NERResult{DocumentID: in.DocumentID, Mentions: mentions})
}

// confidenceFor returns the engine's own confidence when it reports one,
// otherwise a heuristic derived from capitalization and word count:
// capitalized multi-word spans (e.g. "New York City") score higher than
// a single capitalized token, which in turn scores higher than a
// lowercase span.
func confidenceFor(r RawEntity) float64 {
	if r.Confidence > 0 {
		return r.Confidence
	}

	words := strings.Fields(r.Text)
	if len(words) == 0 {
		return 0.3
	}

	capitalized := 0
	for _, w := range words {
		runes := []rune(w)
		if len(runes) > 0 && unicode.IsUpper(runes[0]) {
			capitalized++
		}
	}
	ratio := float64(capitalized) / float64(len(words))

	switch {
	case ratio == 1 && len(words) > 1:
		return 0.85
	case ratio == 1:
		return 0.65
	case ratio > 0:
		return 0.45
	default:
		return 0.3
	}
}

func (h *NERHandler) publishCompleted(documentID, jobID string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "ner", Status: events.StageCompleted})
	if err != nil {
		return
	}
	h.Bus.Publish(events.StageTopic("ner", events.StageCompleted), "pipeline-ner", payload, documentID)
}
