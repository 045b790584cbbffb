package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/arkhamforge/docintel/pkg/events"
	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/pipeline"
)

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configDir := configDirFlag(fs)
	filePath := fs.String("file", "", "path to the PDF file to ingest")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *filePath == "" {
		return fmt.Errorf("--file is required")
	}

	ctx := context.Background()
	c, err := newCore(ctx, *configDir)
	if err != nil {
		return err
	}
	defer c.Close()

	doc, created, err := ingestFile(ctx, c, *filePath)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	if created {
		fmt.Printf("ingested document %s, queued for extraction\n", doc.ID)
	} else {
		fmt.Printf("document %s already ingested (file_hash match), skipping re-processing\n", doc.ID)
	}
	return nil
}

// ingestFile is the ingestion coordinator: it hashes filePath, resolves
// (or creates) the file_hash-deduped core.documents row via
// Documents.CreateOrGetByHash, and — only on a genuine first insert —
// enqueues the document onto the extract pool through the dispatcher's
// admission check, the same path every later stage transition goes
// through. A re-ingested file resolves to the existing document and
// triggers no further work, per the duplicate-ingest invariant.
func ingestFile(ctx context.Context, c *core, filePath string) (*models.Document, bool, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, false, fmt.Errorf("stat %s: %w", filePath, err)
	}

	hash, err := hashFile(filePath)
	if err != nil {
		return nil, false, err
	}

	numPages, encrypted := probePDF(filePath)

	id := uuid.NewString()
	doc, created, err := c.documents.CreateOrGetByHash(ctx, id, hash, numPages, "", "", nil, encrypted, info.Size())
	if err != nil {
		return nil, false, err
	}

	if created {
		payload, err := json.Marshal(pipeline.ExtractPayload{DocumentID: doc.ID, FilePath: filePath})
		if err != nil {
			return nil, false, fmt.Errorf("marshal extract payload: %w", err)
		}
		if err := c.dispatcher.Enqueue(ctx, "extract", doc.ID, payload, 0); err != nil {
			return nil, false, fmt.Errorf("enqueue extract: %w", err)
		}
		publishIngested(c, doc.ID)
	}

	return doc, created, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// probePDF best-effort-opens filePath to recover its page count and
// whether it required (and thus has) an owner/user password. Metadata
// beyond that — author, producer, creation date — isn't exposed by the
// pdf reader library this module already depends on for text
// extraction, so those fields are left unset here; a document's
// num_pages/encrypted columns get filled in for real once the extract
// stage itself runs.
func probePDF(path string) (numPages int, encrypted bool) {
	f, r, err := pdf.Open(path)
	if err != nil {
		// pdf.Open fails closed on an encrypted or malformed file; either
		// way there's nothing more to learn here without a password.
		return 0, true
	}
	defer f.Close()
	return r.NumPage(), false
}

func publishIngested(c *core, documentID string) {
	payload, err := json.Marshal(events.DocumentPayload{DocumentID: documentID, Status: "ingested"})
	if err != nil {
		return
	}
	c.bus.Publish(events.TopicDocumentIngested, "ingest", payload, documentID)
}
