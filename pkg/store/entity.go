package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/arkhamforge/docintel/pkg/models"
)

// Entities is the entity-mention half of the Content Store. It
// satisfies pkg/pipeline.EntityStore, and additionally owns canonical
// entity resolution: many mentions of the same (label, text) collapse
// onto one canonical_entities row with an aggregated mention count.
type Entities struct {
	db *sql.DB
}

// NewEntities constructs an Entities repository over db.
func NewEntities(db *sql.DB) *Entities {
	return &Entities{db: db}
}

// SaveMentions persists mentions and resolves each onto a canonical
// entity, upserting the canonical row's mention_count within the same
// transaction so a partial write never leaves a mention without its
// canonical link.
func (e *Entities) SaveMentions(ctx context.Context, documentID string, mentions []models.EntityMention) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin mentions transaction: %w", err)
	}
	defer tx.Rollback()

	canonicalStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO core.canonical_entities (id, label, name, mention_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (label, lower(name)) DO UPDATE
			SET mention_count = core.canonical_entities.mention_count + 1
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare canonical upsert: %w", err)
	}
	defer canonicalStmt.Close()

	mentionStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO core.entity_mentions (id, chunk_id, document_id, text, label, start_char, end_char, confidence, canonical_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare mention insert: %w", err)
	}
	defer mentionStmt.Close()

	for _, m := range mentions {
		var canonicalID string
		if err := canonicalStmt.QueryRowContext(ctx, uuid.NewString(), m.Label, m.Text).Scan(&canonicalID); err != nil {
			return fmt.Errorf("failed to resolve canonical entity for %q: %w", m.Text, err)
		}

		if _, err := mentionStmt.ExecContext(ctx, m.ID, m.ChunkID, documentID, m.Text, m.Label, m.StartChar, m.EndChar, m.Confidence, canonicalID); err != nil {
			return fmt.Errorf("failed to insert mention %s: %w", m.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit mentions transaction: %w", err)
	}
	return nil
}

// Canonical returns the deduplicated canonical entity by id.
func (e *Entities) Canonical(ctx context.Context, canonicalID string) (*models.CanonicalEntity, error) {
	var ce models.CanonicalEntity
	err := e.db.QueryRowContext(ctx, `
		SELECT id, label, name, mention_count FROM core.canonical_entities WHERE id = $1
	`, canonicalID).Scan(&ce.ID, &ce.Label, &ce.Name, &ce.MentionCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("canonical entity %s not found", canonicalID)
		}
		return nil, fmt.Errorf("failed to get canonical entity %s: %w", canonicalID, err)
	}
	return &ce, nil
}

// MentionsForDocument returns every entity mention extracted from
// documentID, used by the External API Surface's entity listing.
func (e *Entities) MentionsForDocument(ctx context.Context, documentID string) ([]models.EntityMention, error) {
	rows, err := e.db.QueryContext(ctx, `
		SELECT id, chunk_id, document_id, text, label, start_char, end_char, confidence, canonical_id
		FROM core.entity_mentions
		WHERE document_id = $1
		ORDER BY start_char ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentions for document %s: %w", documentID, err)
	}
	defer rows.Close()

	var mentions []models.EntityMention
	for rows.Next() {
		var (
			m           models.EntityMention
			canonicalID sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ChunkID, &m.DocumentID, &m.Text, &m.Label, &m.StartChar, &m.EndChar, &m.Confidence, &canonicalID); err != nil {
			return nil, fmt.Errorf("failed to scan mention row: %w", err)
		}
		m.CanonicalID = canonicalID.String
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}
