package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// defaultVectorCollection is used when a job's payload doesn't name one.
const defaultVectorCollection = "default"

// EmbedResult is Embed's job result.
type EmbedResult struct {
	DocumentID string `json:"document_id"`
	VectorIDs  []string `json:"vector_ids"`
	Model      string   `json:"model"`
}

// EmbedHandler implements the Embed stage: embeds every
// chunk of a document in a single batch call, auto-creating the target
// vector collection with dimensions inferred from the engine on first
// use.
type EmbedHandler struct {
	Engine EmbedEngine

	Chunks  ChunkStore
	Vectors VectorStore
	Bus     *events.Bus
}

// Handle implements pkg/worker.Handler.
func (h *EmbedHandler) Handle(ctx context.Context, job *models.Job) ([]byte, error) {
	var in EmbedPayload
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		return nil, fmt.Errorf("embed: invalid payload: %w", err)
	}
	if h.Engine == nil {
		return nil, fmt.Errorf("embed: %w", ErrNoEngineAvailable)
	}

	collection := in.Collection
	if collection == "" {
		collection = defaultVectorCollection
	}

	var chunks []models.Chunk
	if h.Chunks != nil {
		var err error
		chunks, err = h.Chunks.ChunksForDocument(ctx, in.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("embed: failed to load chunks: %w", err)
		}
	}
	if len(chunks) == 0 {
		return json.Marshal(EmbedResult{DocumentID: in.DocumentID, Model: h.Engine.Model()})
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embeddings, err := h.Engine.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: engine failed: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embed: engine returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}

	if h.Vectors != nil {
		if err := h.Vectors.EnsureCollection(ctx, collection, h.Engine.Dimensions()); err != nil {
			return nil, fmt.Errorf("embed: failed to ensure collection %q: %w", collection, err)
		}
	}

	vectorIDs := make([]string, len(chunks))
	for i, c := range chunks {
		vectorID := uuid.NewString()
		vectorIDs[i] = vectorID

		if h.Vectors != nil {
			v := models.Vector{
				ID:         vectorID,
				Collection: collection,
				DocumentID: in.DocumentID,
				ChunkID:    c.ID,
				Model:      h.Engine.Model(),
				Embedding:  embeddings[i],
			}
			if err := h.Vectors.SaveVector(ctx, v); err != nil {
				return nil, fmt.Errorf("embed: failed to save vector for chunk %s: %w", c.ID, err)
			}
		}
		if h.Chunks != nil {
			if err := h.Chunks.SetVectorID(ctx, c.ID, vectorID); err != nil {
				return nil, fmt.Errorf("embed: failed to set vector_id for chunk %s: %w", c.ID, err)
			}
		}
	}

	h.publishCompleted(in.DocumentID, job.ID)

	return json.Marshal(EmbedResult{DocumentID: in.DocumentID, VectorIDs: vectorIDs, Model: h.Engine.Model()})
}

func (h *EmbedHandler) publishCompleted(documentID, jobID string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "embed", Status: events.StageCompleted})
	if err != nil {
		return
	}
	h.Bus.Publish(events.StageTopic("embed", events.StageCompleted), "pipeline-embed", payload, documentID)
}
