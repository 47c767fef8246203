package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/pkg/embedder"
	"ragengine/pkg/vectorstore"
)

func TestDocumentStoreIndexesAndTracksDocuments(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(32)
	idx := vectorstore.NewMemoryIndex(32)

	store, err := NewDocumentStore(DocumentStoreConfig{
		ContainerID: "c1",
		Chunker: ChunkerConfig{Strategy: ChunkerSimple, Size: 40},
	}, emb, idx, nil)
	require.NoError(t, err)

	progress, err := store.IndexDocuments(ctx, []RawDocument{
		{ID: "doc1", Filename: "a.txt", Content: "mitochondria are the powerhouse of the cell"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, progress.DocumentsProcessed)
	assert.Equal(t, 0, progress.Failed)
	assert.Greater(t, progress.ChunksIndexed, 0)
	assert.Equal(t, progress.ChunksIndexed, idx.Count())

	docs := store.Documents()
	require.Len(t, docs, 1)
	assert.Equal(t, "doc1", docs[0].ID)
	assert.Equal(t, "c1", docs[0].ContainerID)
}

func TestDocumentStoreRemoveDocument(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(32)
	idx := vectorstore.NewMemoryIndex(32)

	store, err := NewDocumentStore(DocumentStoreConfig{ContainerID: "c1"}, emb, idx, nil)
	require.NoError(t, err)

	_, err = store.IndexDocuments(ctx, []RawDocument{{ID: "doc1", Content: "hello world"}})
	require.NoError(t, err)
	require.NoError(t, store.RemoveDocument(ctx, "doc1"))

	assert.Empty(t, store.Documents())
	assert.Equal(t, 0, idx.Count())
}
