package store_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkhamforge/docintel/pkg/models"
	"github.com/arkhamforge/docintel/pkg/store"
	testdb "github.com/arkhamforge/docintel/test/database"
)

func TestSaveAndListChunksOrderedByIndex(t *testing.T) {
	client := testdb.NewTestClient(t)
	docs := store.NewDocuments(client.DB(), 0)
	chunks := store.NewChunks(client.DB(), 0)
	ctx := context.Background()

	doc, _, err := docs.CreateOrGetByHash(ctx, uuid.NewString(), uuid.NewString(), 0, "", "", nil, false, 0)
	require.NoError(t, err)

	want := []models.Chunk{
		{ID: uuid.NewString(), DocumentID: doc.ID, Text: "second", ChunkIndex: 1},
		{ID: uuid.NewString(), DocumentID: doc.ID, Text: "first", ChunkIndex: 0},
	}
	require.NoError(t, chunks.SaveChunks(ctx, doc.ID, want))

	got, err := chunks.ChunksForDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func TestSetVectorIDInvalidatesChunkCache(t *testing.T) {
	client := testdb.NewTestClient(t)
	docs := store.NewDocuments(client.DB(), 0)
	chunks := store.NewChunks(client.DB(), 0)
	ctx := context.Background()

	doc, _, err := docs.CreateOrGetByHash(ctx, uuid.NewString(), uuid.NewString(), 0, "", "", nil, false, 0)
	require.NoError(t, err)

	chunkID := uuid.NewString()
	require.NoError(t, chunks.SaveChunks(ctx, doc.ID, []models.Chunk{
		{ID: chunkID, DocumentID: doc.ID, Text: "alice met bob", ChunkIndex: 0},
	}))

	// Populate the cache.
	_, err = chunks.ChunksForDocument(ctx, doc.ID)
	require.NoError(t, err)

	require.NoError(t, chunks.SetVectorID(ctx, chunkID, "vec-1"))

	got, err := chunks.ChunksForDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "vec-1", got[0].VectorID)
}

func TestSetVectorIDOnUnknownChunkReturnsError(t *testing.T) {
	client := testdb.NewTestClient(t)
	chunks := store.NewChunks(client.DB(), 0)

	err := chunks.SetVectorID(context.Background(), uuid.NewString(), "vec-1")
	assert.Error(t, err)
}
