package mmr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/pkg/chunk"
)

func TestDiversifyFirstIsHighestSimilarity(t *testing.T) {
	candidates := []chunk.RetrievedChunk{
		{Chunk: chunk.Chunk{ID: "a", Embedding: []float32{1, 0}}, Similarity: 0.4},
		{Chunk: chunk.Chunk{ID: "b", Embedding: []float32{0, 1}}, Similarity: 0.9},
		{Chunk: chunk.Chunk{ID: "c", Embedding: []float32{1, 0}}, Similarity: 0.3},
	}
	out, err := Diversify(context.Background(), candidates, 2, false)
	require.NoError(t, err)
	assert.Equal(t, "b", out[0].Chunk.ID)
}

func TestDiversifyIsSubsetOfInput(t *testing.T) {
	candidates := []chunk.RetrievedChunk{
		{Chunk: chunk.Chunk{ID: "a", Embedding: []float32{1, 0}}, Similarity: 0.9},
		{Chunk: chunk.Chunk{ID: "b", Embedding: []float32{1, 0}}, Similarity: 0.8},
		{Chunk: chunk.Chunk{ID: "c", Embedding: []float32{0, 1}}, Similarity: 0.7},
	}
	out, err := Diversify(context.Background(), candidates, 2, false)
	require.NoError(t, err)
	assert.Len(t, out, 2)
	ids := map[string]bool{"a": true, "b": true, "c": true}
	for _, o := range out {
		assert.True(t, ids[o.Chunk.ID])
	}
}

func TestDiversifyEmptyInput(t *testing.T) {
	out, err := Diversify(context.Background(), nil, 3, false)
	require.NoError(t, err)
	assert.Empty(t, out)
}
