package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/arkhamforge/docintel/pkg/models"
)

// toFloat64s and fromFloat64s convert between the float32 embeddings
// pkg/pipeline's engines produce and the float8[] column pgx's stdlib
// driver binds/scans natively, without a third-party array wrapper.
func toFloat64s(embedding []float32) []float64 {
	out := make([]float64, len(embedding))
	for i, f := range embedding {
		out[i] = float64(f)
	}
	return out
}

func fromFloat64s(embedding []float64) []float32 {
	out := make([]float32, len(embedding))
	for i, f := range embedding {
		out[i] = float32(f)
	}
	return out
}

// Vectors is the vector half of the Content Store. It satisfies
// pkg/pipeline.VectorStore.
type Vectors struct {
	db *sql.DB
}

// NewVectors constructs a Vectors repository over db.
func NewVectors(db *sql.DB) *Vectors {
	return &Vectors{db: db}
}

// EnsureCollection registers collection with the given model/dimensions
// if it doesn't already exist, idempotently, so the Embed stage can call
// it on every run without needing to check first.
func (v *Vectors) EnsureCollection(ctx context.Context, collection string, dimensions int) error {
	_, err := v.db.ExecContext(ctx, `
		INSERT INTO vectors.collections (name, model, dimensions)
		VALUES ($1, '', $2)
		ON CONFLICT (name) DO NOTHING
	`, collection, dimensions)
	if err != nil {
		return fmt.Errorf("failed to ensure vector collection %q: %w", collection, err)
	}
	return nil
}

// SaveVector writes an embedding to the vector schema, updating the
// owning collection's model name (the Embed stage's engine is only
// known once the first embed call returns).
func (v *Vectors) SaveVector(ctx context.Context, vec models.Vector) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin vector transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE vectors.collections SET model = $1 WHERE name = $2 AND model = ''
	`, vec.Model, vec.Collection); err != nil {
		return fmt.Errorf("failed to stamp collection model: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vectors.vectors (id, collection, document_id, chunk_id, model, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, vec.ID, vec.Collection, vec.DocumentID, vec.ChunkID, vec.Model, toFloat64s(vec.Embedding)); err != nil {
		return fmt.Errorf("failed to save vector %s: %w", vec.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vector transaction: %w", err)
	}
	return nil
}

// VectorsForDocument returns every embedding derived from documentID,
// used by the vector-reset CLI and the External API Surface.
func (v *Vectors) VectorsForDocument(ctx context.Context, documentID string) ([]models.Vector, error) {
	rows, err := v.db.QueryContext(ctx, `
		SELECT id, collection, document_id, chunk_id, model, embedding
		FROM vectors.vectors
		WHERE document_id = $1
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vectors for document %s: %w", documentID, err)
	}
	defer rows.Close()

	var vecs []models.Vector
	for rows.Next() {
		var vec models.Vector
		var embedding []float64
		if err := rows.Scan(&vec.ID, &vec.Collection, &vec.DocumentID, &vec.ChunkID, &vec.Model, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		vec.Embedding = fromFloat64s(embedding)
		vecs = append(vecs, vec)
	}
	return vecs, rows.Err()
}

// ResetCollection deletes every vector in collection, used by the
// `docintel vectors reset` CLI command.
func (v *Vectors) ResetCollection(ctx context.Context, collection string) (int64, error) {
	res, err := v.db.ExecContext(ctx, `DELETE FROM vectors.vectors WHERE collection = $1`, collection)
	if err != nil {
		return 0, fmt.Errorf("failed to reset collection %q: %w", collection, err)
	}
	return res.RowsAffected()
}
