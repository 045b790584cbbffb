package database

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateGINIndexes creates full-text-search indexes used by the keyword
// fallback path: a document with no `gpu-embed` workers available is
// marked `partial` — un-embedded but still keyword-searchable. That
// search runs against these indexes.
func CreateGINIndexes(ctx context.Context, db *sql.DB) error {
	// GIN index for chunk text full-text search (keyword fallback path).
	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_chunks_text_gin
		ON core.chunks USING gin(to_tsvector('english', text))`)
	if err != nil {
		return fmt.Errorf("failed to create chunks text GIN index: %w", err)
	}

	// GIN index over document metadata (author/producer) for coarse search.
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_documents_metadata_gin
		ON core.documents USING gin(to_tsvector('english', coalesce(author, '') || ' ' || coalesce(producer, '')))`)
	if err != nil {
		return fmt.Errorf("failed to create documents metadata GIN index: %w", err)
	}

	return nil
}
