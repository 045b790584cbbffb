package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/arkhamforge/docintel/pkg/models"
)

// Documents is the document half of the Content Store. It satisfies
// pkg/pipeline.DocumentStore.
type Documents struct {
	db    *sql.DB
	cache *lru.Cache[string, *models.Document]
}

// NewDocuments constructs a Documents repository over db, front-cached
// by up to cacheSize hot documents. cacheSize<=0 falls back to
// DefaultCacheSize.
func NewDocuments(db *sql.DB, cacheSize int) *Documents {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *models.Document](cacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// cacheSize can no longer be at this point.
		panic(err)
	}
	return &Documents{db: db, cache: cache}
}

// CreateOrGetByHash implements the ingestion coordinator's dedup rule:
// re-ingest of an identical file short-circuits to the pre-existing
// document id rather than creating a new row or re-running any stage.
// created reports whether this call is the one that inserted the row.
func (d *Documents) CreateOrGetByHash(ctx context.Context, id, fileHash string, numPages int, author, producer string, creationDate *time.Time, encrypted bool, sizeBytes int64) (doc *models.Document, created bool, err error) {
	row := d.db.QueryRowContext(ctx, `
		INSERT INTO core.documents (id, file_hash, status, num_pages, author, producer, creation_date, encrypted, size_bytes)
		VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8)
		ON CONFLICT (file_hash) DO NOTHING
		RETURNING id, file_hash, status, num_pages, author, producer, creation_date, encrypted, size_bytes, created_at, updated_at
	`, id, fileHash, numPages, nullableString(author), nullableString(producer), creationDate, encrypted, sizeBytes)

	doc, scanErr := scanDocument(row)
	if scanErr == nil {
		d.cache.Add(doc.ID, doc)
		return doc, true, nil
	}
	if scanErr != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to insert document: %w", scanErr)
	}

	// No row returned: a concurrent insert won the race on file_hash.
	// Resolve to the document it created, per the "exactly one document
	// is created" duplicate-ingest invariant.
	existing, err := d.getByHash(ctx, fileHash)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve existing document for hash: %w", err)
	}
	return existing, false, nil
}

func (d *Documents) getByHash(ctx context.Context, fileHash string) (*models.Document, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, file_hash, status, num_pages, author, producer, creation_date, encrypted, size_bytes, created_at, updated_at
		FROM core.documents
		WHERE file_hash = $1
	`, fileHash)
	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	d.cache.Add(doc.ID, doc)
	return doc, nil
}

// Get returns a document by id, serving from the front-cache when
// present. The cache is invalidated by every mutating method below.
func (d *Documents) Get(ctx context.Context, documentID string) (*models.Document, error) {
	if doc, ok := d.cache.Get(documentID); ok {
		return doc, nil
	}

	row := d.db.QueryRowContext(ctx, `
		SELECT id, file_hash, status, num_pages, author, producer, creation_date, encrypted, size_bytes, created_at, updated_at
		FROM core.documents
		WHERE id = $1
	`, documentID)

	doc, err := scanDocument(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", documentID, err)
	}
	d.cache.Add(doc.ID, doc)
	return doc, nil
}

// SaveExtractedText persists the Extract stage's raw text layer and
// advances the document into "processing".
func (d *Documents) SaveExtractedText(ctx context.Context, documentID, text string, numPages int) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE core.documents
		SET raw_text = $1, num_pages = $2, status = 'processing', updated_at = now()
		WHERE id = $3
	`, text, numPages, documentID)
	if err != nil {
		return fmt.Errorf("failed to save extracted text: %w", err)
	}
	return d.checkAffectedAndInvalidate(res, documentID)
}

// SaveNormalizedText persists the Normalize stage's output.
func (d *Documents) SaveNormalizedText(ctx context.Context, documentID, text, language string, quality float64, wordCount int) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE core.documents
		SET normalized_text = $1, language = $2, quality = $3, word_count = $4, updated_at = now()
		WHERE id = $5
	`, text, language, quality, wordCount, documentID)
	if err != nil {
		return fmt.Errorf("failed to save normalized text: %w", err)
	}
	return d.checkAffectedAndInvalidate(res, documentID)
}

// NormalizedText returns the Normalize stage's output for documentID,
// consumed by the Chunk stage.
func (d *Documents) NormalizedText(ctx context.Context, documentID string) (string, error) {
	var text sql.NullString
	err := d.db.QueryRowContext(ctx, `
		SELECT normalized_text FROM core.documents WHERE id = $1
	`, documentID).Scan(&text)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrDocumentNotFound
		}
		return "", fmt.Errorf("failed to get normalized text for %s: %w", documentID, err)
	}
	return text.String, nil
}

// UpdateStatus transitions a document's lifecycle status.
func (d *Documents) UpdateStatus(ctx context.Context, documentID string, status models.DocumentStatus) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE core.documents SET status = $1, updated_at = now() WHERE id = $2
	`, string(status), documentID)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	return d.checkAffectedAndInvalidate(res, documentID)
}

func (d *Documents) checkAffectedAndInvalidate(res sql.Result, documentID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDocumentNotFound
	}
	d.cache.Remove(documentID)
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc          models.Document
		status       string
		author       sql.NullString
		producer     sql.NullString
		creationDate sql.NullTime
	)

	if err := row.Scan(
		&doc.ID, &doc.FileHash, &status, &doc.NumPages, &author, &producer,
		&creationDate, &doc.Encrypted, &doc.SizeBytes, &doc.CreatedAt, &doc.UpdatedAt,
	); err != nil {
		return nil, err
	}

	doc.Status = models.DocumentStatus(status)
	doc.Author = author.String
	doc.Producer = producer.String
	if creationDate.Valid {
		t := creationDate.Time
		doc.CreationDate = &t
	}
	return &doc, nil
}
