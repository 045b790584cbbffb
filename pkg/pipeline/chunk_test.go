package pipeline_test

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
)

type fakeDocumentStore struct {
	mu         sync.Mutex
	normalized map[string]string
	statuses   map[string]models.DocumentStatus
}

func (f *fakeDocumentStore) SaveExtractedText(ctx context.Context, documentID, text string, numPages int) error {
	return nil
}
func (f *fakeDocumentStore) SaveNormalizedText(ctx context.Context, documentID, text, language string, quality float64, wordCount int) error {
	if f.normalized == nil {
		f.normalized = make(map[string]string)
	}
	f.normalized[documentID] = text
	return nil
}
func (f *fakeDocumentStore) NormalizedText(ctx context.Context, documentID string) (string, error) {
	return f.normalized[documentID], nil
}
func (f *fakeDocumentStore) UpdateStatus(ctx context.Context, documentID string, status models.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]models.DocumentStatus)
	}
	f.statuses[documentID] = status
	return nil
}
func (f *fakeDocumentStore) Get(ctx context.Context, documentID string) (*models.Document, error) {
	return &models.Document{ID: documentID}, nil
}

type fakeChunkStore struct {
	saved map[string][]models.Chunk
}

func (f *fakeChunkStore) SaveChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	if f.saved == nil {
		f.saved = make(map[string][]models.Chunk)
	}
	f.saved[documentID] = chunks
	return nil
}
func (f *fakeChunkStore) ChunksForDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	return f.saved[documentID], nil
}
func (f *fakeChunkStore) SetVectorID(ctx context.Context, chunkID, vectorID string) error {
	return nil
}

func TestChunkHandlerFixedMethod(t *testing.T) {
	docs := &fakeDocumentStore{normalized: map[string]string{"doc-1": strings.Repeat("abcdefghij", 10)}}
	chunks := &fakeChunkStore{}

	h := &pipeline.ChunkHandler{Method: "fixed", Size: 20, Overlap: 5, Documents: docs, Chunks: chunks}

	payload, _ := json.Marshal(pipeline.ChunkPayload{DocumentID: "doc-1"})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.ChunkResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Greater(t, result.ChunkCount, 1)
	assert.Len(t, chunks.saved["doc-1"], result.ChunkCount)
}

func TestChunkHandlerDegenerateOverlapTerminates(t *testing.T) {
	docs := &fakeDocumentStore{normalized: map[string]string{"doc-1": strings.Repeat("x", 100)}}
	chunks := &fakeChunkStore{}

	// overlap >= size: must clamp to step=1 and still terminate quickly.
	h := &pipeline.ChunkHandler{Method: "fixed", Size: 10, Overlap: 50, Documents: docs, Chunks: chunks}

	payload, _ := json.Marshal(pipeline.ChunkPayload{DocumentID: "doc-1"})
	job := &models.Job{ID: "job-1", Payload: payload}

	done := make(chan error, 1)
	go func() {
		_, err := h.Handle(context.Background(), job)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("chunk handler hung on degenerate overlap configuration")
	}
}

func TestChunkHandlerSentenceMethodSplitsOnPunctuation(t *testing.T) {
	docs := &fakeDocumentStore{normalized: map[string]string{
		"doc-1": "First sentence here. Second sentence follows! Third one asks? Fourth.",
	}}
	chunks := &fakeChunkStore{}

	h := &pipeline.ChunkHandler{Method: "sentence", Size: 30, Overlap: 0, Documents: docs, Chunks: chunks}

	payload, _ := json.Marshal(pipeline.ChunkPayload{DocumentID: "doc-1"})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.ChunkResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.GreaterOrEqual(t, result.ChunkCount, 2)
}

func TestChunkHandlerEmptyTextProducesNoChunks(t *testing.T) {
	docs := &fakeDocumentStore{normalized: map[string]string{"doc-1": ""}}
	chunks := &fakeChunkStore{}

	h := &pipeline.ChunkHandler{Method: "fixed", Size: 100, Overlap: 10, Documents: docs, Chunks: chunks}

	payload, _ := json.Marshal(pipeline.ChunkPayload{DocumentID: "doc-1"})
	job := &models.Job{ID: "job-1", Payload: payload}

	out, err := h.Handle(context.Background(), job)
	require.NoError(t, err)

	var result pipeline.ChunkResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, 0, result.ChunkCount)
}
