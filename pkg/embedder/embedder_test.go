package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedDeterministic(t *testing.T) {
	e := New(64)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "the mitochondrion is the powerhouse of the cell")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "the mitochondrion is the powerhouse of the cell")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 64)
}

func TestEmbedUnitNorm(t *testing.T) {
	e := New(32)
	v, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-3)
}

func TestEmbedEmptyInput(t *testing.T) {
	e := New(32)
	_, err := e.Embed(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestEmbedFallbackForOutOfVocabulary(t *testing.T) {
	e := New(16)
	v1, err := e.Embed(context.Background(), "!!!")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "???")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestEmbedBatchCancellation(t *testing.T) {
	e := New(8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.EmbedBatch(ctx, make([]string, 64))
	require.Error(t, err)
}
