package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
)

// sentenceBoundary splits on '.', '!', or '?' followed by whitespace,
// used by both the sentence and semantic-fallback chunk methods.
var sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)

// ChunkResult is Chunk's job result.
type ChunkResult struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// ChunkHandler implements the Chunk stage: splits a
// document's normalized text into ordered, dense-indexed chunks using
// the configured method.
type ChunkHandler struct {
	Method  string // "fixed", "sentence", "semantic"
	Size    int
	Overlap int

	Documents DocumentStore
	Chunks    ChunkStore
	Bus       *events.Bus
}

// chunkText is an intermediate chunk before a document/ID are assigned.
type chunkText struct {
	text       string
	pageNumber int
}

// Handle implements pkg/worker.Handler.
func (h *ChunkHandler) Handle(ctx context.Context, job *models.Job) ([]byte, error) {
	var in ChunkPayload
	if err := json.Unmarshal(job.Payload, &in); err != nil {
		return nil, fmt.Errorf("chunk: invalid payload: %w", err)
	}

	var text string
	if h.Documents != nil {
		var err error
		text, err = h.Documents.NormalizedText(ctx, in.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("chunk: failed to load normalized text: %w", err)
		}
	}

	pieces := splitText(h.Method, text, h.Size, h.Overlap)

	chunks := make([]models.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = models.Chunk{
			ID:         uuid.NewString(),
			DocumentID: in.DocumentID,
			Text:       p,
			ChunkIndex: i,
		}
	}

	if h.Chunks != nil && len(chunks) > 0 {
		if err := h.Chunks.SaveChunks(ctx, in.DocumentID, chunks); err != nil {
			return nil, fmt.Errorf("chunk: failed to save chunks: %w", err)
		}
	}

	h.publishCompleted(in.DocumentID, job.ID)

	return json.Marshal(ChunkResult{DocumentID: in.DocumentID, ChunkCount: len(chunks)})
}

// splitText dispatches to the configured method, applying the safety
// defaults and the overlap≥size clamp rule.
func splitText(method, text string, size, overlap int) []string {
	if size <= 0 {
		size = 800
	}
	if overlap < 0 {
		overlap = 0
	}

	switch method {
	case "fixed":
		return chunkFixed(text, size, overlap)
	case "semantic":
		// No semantic signal is wired in yet; fall back to
		// sentence-aware chunking.
		return chunkSentence(text, size, overlap)
	default:
		return chunkSentence(text, size, overlap)
	}
}

// chunkFixed splits text into size-rune windows advancing by
// (size - overlap) runes. If overlap >= size the step would be zero or
// negative, looping forever; it is clamped to 1 instead, a known
// degenerate mode that must still terminate.
func chunkFixed(text string, size, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := size - overlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// chunkSentence groups whole sentences into windows of at most size
// runes, falling back to a fixed split for any sentence longer than size
// on its own so a single run-on sentence can't produce an unbounded
// chunk.
func chunkSentence(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []string
	var current strings.Builder
	for _, s := range sentences {
		if len(s) > size {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, chunkFixed(s, size, overlap)...)
			continue
		}
		if current.Len()+len(s)+1 > size && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return applyOverlap(chunks, overlap)
}

// splitSentences breaks text on '.', '!', '?' boundaries, trimming
// surrounding whitespace and dropping empty fragments.
func splitSentences(text string) []string {
	raw := sentenceBoundary.Split(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// applyOverlap prepends the tail of each preceding chunk to the next,
// so consecutive sentence-aware chunks still share context like the
// fixed method does. No-op when overlap is 0 or there's only one chunk.
func applyOverlap(chunks []string, overlap int) []string {
	if overlap <= 0 || len(chunks) < 2 {
		return chunks
	}
	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tailLen := overlap
		if tailLen > len(prev) {
			tailLen = len(prev)
		}
		tail := string(prev[len(prev)-tailLen:])
		out[i] = tail + " " + chunks[i]
	}
	return out
}

func (h *ChunkHandler) publishCompleted(documentID, jobID string) {
	if h.Bus == nil {
		return
	}
	payload, err := json.Marshal(events.StagePayload{DocumentID: documentID, JobID: jobID, Stage: "chunk", Status: events.StageCompleted})
	if err != nil {
		return
	}
	h.Bus.Publish(events.StageTopic("chunk", events.StageCompleted), "pipeline-chunk", payload, documentID)
}
