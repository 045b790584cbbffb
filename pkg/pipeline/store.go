package pipeline

import (
	"context"

	"github.com/arkhamforge/docintel/pkg/models"
)

// DocumentStore is the subset of the Content Store the
// pipeline stages need. Defined here, on the consumer side, so
// pkg/store's pgx-backed repository can satisfy it without pipeline
// importing store directly.
type DocumentStore interface {
	SaveExtractedText(ctx context.Context, documentID, text string, numPages int) error
	SaveNormalizedText(ctx context.Context, documentID, text, language string, quality float64, wordCount int) error
	NormalizedText(ctx context.Context, documentID string) (string, error)
	UpdateStatus(ctx context.Context, documentID string, status models.DocumentStatus) error
	Get(ctx context.Context, documentID string) (*models.Document, error)
}

// ChunkStore persists and retrieves a document's chunks.
type ChunkStore interface {
	SaveChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
	ChunksForDocument(ctx context.Context, documentID string) ([]models.Chunk, error)
	SetVectorID(ctx context.Context, chunkID, vectorID string) error
}

// EntityStore persists per-chunk entity mentions.
type EntityStore interface {
	SaveMentions(ctx context.Context, documentID string, mentions []models.EntityMention) error
}

// VectorStore writes embeddings to the vector schema, auto-creating the
// backing collection on first insert.
type VectorStore interface {
	EnsureCollection(ctx context.Context, collection string, dimensions int) error
	SaveVector(ctx context.Context, v models.Vector) error
}
