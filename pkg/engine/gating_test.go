package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragengine/pkg/chunk"
)

func makeRanked(sims ...float32) []chunk.RetrievedChunk {
	out := make([]chunk.RetrievedChunk, len(sims))
	for i, s := range sims {
		out[i] = chunk.RetrievedChunk{
			Chunk: chunk.Chunk{ID: string(rune('a' + i))},
			Similarity: s,
			Rank: i + 1,
			SourceDocument: "doc1",
		}
	}
	return out
}

func TestApplyGatingEmptyFilterFallsBackToTop2K(t *testing.T) {
	// All similarities fall below strictMinSimilarity, but the override
	// condition (top-second >= 0.07) fires, so gating should accept the
	// top 2*effectiveK reranked chunks rather than a fixed count.
	reranked := makeRanked(0.30, 0.10, 0.09, 0.08, 0.07, 0.06)

	gated, decision, _ := applyGating(reranked, false, "some query", 3)
	require.Equal(t, chunk.GatingAccepted, decision)
	assert.Len(t, gated, 6) // 2*3 capped to len(reranked)

	gated, decision, _ = applyGating(reranked, false, "some query", 1)
	require.Equal(t, chunk.GatingAccepted, decision)
	assert.Len(t, gated, 2) // 2*1
}

func TestApplyGatingNoOverrideFallsBackToOnDevice(t *testing.T) {
	reranked := makeRanked(0.20, 0.19, 0.18)
	_, decision, warnings := applyGating(reranked, false, "some query", 3)
	assert.Equal(t, chunk.GatingFallbackOnDeviceLow, decision)
	assert.NotEmpty(t, warnings)
}

func TestApplyGatingStrictModeBlocksOnWeakEvidence(t *testing.T) {
	// reranked[0] (the rank leader) has low similarity, so the
	// acceptance override doesn't fire even though a later-ranked chunk
	// clears the strict threshold; with only one strong hit strict mode
	// should block rather than accept.
	reranked := makeRanked(0.30, 0.55, 0.10, 0.05, 0.05)
	_, decision, warnings := applyGating(reranked, true, "some query", 3)
	assert.Equal(t, chunk.GatingStrictBlocked, decision)
	assert.NotEmpty(t, warnings)
}
