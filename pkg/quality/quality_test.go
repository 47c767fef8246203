package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ragengine/pkg/chunk"
)

func TestAssessEmptyChunks(t *testing.T) {
	a := Assess(nil, 0, 3)
	assert.Equal(t, 0.0, a.Confidence)
	assert.NotEmpty(t, a.Warnings)
}

func TestAssessLimitedContextWarning(t *testing.T) {
	chunks := []chunk.RetrievedChunk{
		{Chunk: chunk.Chunk{ID: "a"}, Similarity: 0.9, SourceDocument: "doc1"},
	}
	a := Assess(chunks, 1, 4)
	assert.Contains(t, a.Warnings, "limited context")
}

func TestAssessSingleSourceWarning(t *testing.T) {
	chunks := []chunk.RetrievedChunk{
		{Chunk: chunk.Chunk{ID: "a"}, Similarity: 0.9, SourceDocument: "doc1"},
		{Chunk: chunk.Chunk{ID: "b"}, Similarity: 0.8, SourceDocument: "doc1"},
		{Chunk: chunk.Chunk{ID: "c"}, Similarity: 0.7, SourceDocument: "doc1"},
	}
	a := Assess(chunks, 5, 4)
	assert.Contains(t, a.Warnings, "single source")
}

func TestAssessHighConfidenceNoRelevanceWarning(t *testing.T) {
	chunks := make([]chunk.RetrievedChunk, 5)
	for i := range chunks {
		chunks[i] = chunk.RetrievedChunk{Chunk: chunk.Chunk{ID: string(rune('a' + i))}, Similarity: 0.9, SourceDocument: string(rune('a' + i))}
	}
	a := Assess(chunks, 5, 5)
	assert.NotContains(t, a.Warnings, "low relevance")
	assert.NotContains(t, a.Warnings, "moderate relevance")
	assert.Greater(t, a.Confidence, 0.8)
}
