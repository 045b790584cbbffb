package store

import (
	"context"
	"database/sql"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arkhamforge/docintel/pkg/models"
)

// Chunks is the chunk half of the Content Store. It satisfies
// pkg/pipeline.ChunkStore.
type Chunks struct {
	db    *sql.DB
	cache *lru.Cache[string, []models.Chunk]
}

// NewChunks constructs a Chunks repository over db, front-caching up to
// cacheSize documents' full chunk sets. cacheSize<=0 falls back to
// DefaultCacheSize.
func NewChunks(db *sql.DB, cacheSize int) *Chunks {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []models.Chunk](cacheSize)
	if err != nil {
		panic(err)
	}
	return &Chunks{db: db, cache: cache}
}

// SaveChunks writes a document's chunks in a single transaction. Chunk
// indices must already form the contiguous [0, N) range the Chunk stage
// invariant requires — this repository trusts
// its caller rather than re-validating.
func (c *Chunks) SaveChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin chunk transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO core.chunks (id, document_id, text, chunk_index, page_number)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET text = EXCLUDED.text, id = EXCLUDED.id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, chunk.ID, documentID, chunk.Text, chunk.ChunkIndex, chunk.PageNumber); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk transaction: %w", err)
	}
	c.cache.Remove(documentID)
	return nil
}

// ChunksForDocument returns a document's chunks ordered by index,
// serving from the front-cache when present.
func (c *Chunks) ChunksForDocument(ctx context.Context, documentID string) ([]models.Chunk, error) {
	if chunks, ok := c.cache.Get(documentID); ok {
		return chunks, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, document_id, text, chunk_index, page_number, vector_id
		FROM core.chunks
		WHERE document_id = $1
		ORDER BY chunk_index ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks for document %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			chunk    models.Chunk
			vectorID sql.NullString
		)
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Text, &chunk.ChunkIndex, &chunk.PageNumber, &vectorID); err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunk.VectorID = vectorID.String
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.cache.Add(documentID, chunks)
	return chunks, nil
}

// SetVectorID records the embedding id produced for chunkID by the
// Embed stage.
func (c *Chunks) SetVectorID(ctx context.Context, chunkID, vectorID string) error {
	row := c.db.QueryRowContext(ctx, `
		UPDATE core.chunks SET vector_id = $1 WHERE id = $2 RETURNING document_id
	`, vectorID, chunkID)

	var documentID string
	if err := row.Scan(&documentID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("chunk %s not found", chunkID)
		}
		return fmt.Errorf("failed to set vector id for chunk %s: %w", chunkID, err)
	}
	c.cache.Remove(documentID)
	return nil
}
