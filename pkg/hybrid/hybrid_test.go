package hybrid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"ragengine/pkg/chunk"
	"ragengine/pkg/embedder"
	"ragengine/pkg/vectorstore"
)

func TestSearchOnlyReturnsDenseCandidates(t *testing.T) {
	ctx := context.Background()
	emb := embedder.New(32)
	idx := vectorstore.NewMemoryIndex(32)

	mk := func(id, content string) chunk.Chunk {
		v, err := emb.Embed(ctx, content)
		require.NoError(t, err)
		return chunk.Chunk{ID: id, DocumentID: id, Content: content, Embedding: v}
	}

	c1 := mk("1", "the mitochondrion is the powerhouse of the cell")
	c2 := mk("2", "completely unrelated text about sailing boats")
	require.NoError(t, idx.InsertBatch(ctx, []chunk.Chunk{c1, c2}))

	qv, err := emb.Embed(ctx, "powerhouse of the cell")
	require.NoError(t, err)

	s := New(idx)
	results, err := s.Search(ctx, qv, []string{"powerhouse of the cell"}, 1)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		found := false
		for _, c := range []chunk.Chunk{c1, c2} {
			if c.ID == r.Chunk.ID {
				found = true
			}
		}
		require.True(t, found)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := vectorstore.NewMemoryIndex(8)
	s := New(idx)
	results, err := s.Search(context.Background(), make([]float32, 8), []string{"q"}, 5)
	require.NoError(t, err)
	require.Empty(t, results)
}
