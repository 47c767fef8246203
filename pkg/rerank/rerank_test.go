package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/pkg/chunk"
)

func TestRerankOrdersByCombinedScore(t *testing.T) {
	candidates := []chunk.RetrievedChunk{
		{Chunk: chunk.Chunk{ID: "a", Content: "the mitochondrion is the powerhouse of the cell"}, Similarity: 0.6},
		{Chunk: chunk.Chunk{ID: "b", Content: "an unrelated sentence about boats"}, Similarity: 0.6},
	}
	out, err := Rerank(context.Background(), candidates, "powerhouse of the cell", 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Chunk.ID)
}

func TestRerankCapsAtTopN(t *testing.T) {
	candidates := make([]chunk.RetrievedChunk, 5)
	for i := range candidates {
		candidates[i] = chunk.RetrievedChunk{Chunk: chunk.Chunk{ID: string(rune('a' + i)), Content: "text"}, Similarity: float32(i)}
	}
	out, err := Rerank(context.Background(), candidates, "text", 2)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestRerankCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	candidates := make([]chunk.RetrievedChunk, 64)
	_, err := Rerank(ctx, candidates, "q", 10)
	assert.Error(t, err)
}
