package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSnapshotEmpty(t *testing.T) {
	snap := BuildSnapshot(map[string]string{})
	assert.Equal(t, 0, snap.TotalDocuments)
	assert.Empty(t, snap.ScoreAll([]string{"anything"}))
}

func TestScorePrefersTermFrequency(t *testing.T) {
	snap := BuildSnapshot(map[string]string{
		"a": "the cell has a mitochondrion the powerhouse of the cell",
		"b": "a completely unrelated sentence about boats",
	})
	scores := snap.ScoreAll(Tokenize("powerhouse of the cell"))
	assert.Greater(t, scores["a"], scores["b"])
}

func TestScoreZeroForUnknownCandidate(t *testing.T) {
	snap := BuildSnapshot(map[string]string{"a": "hello world"})
	assert.Equal(t, 0.0, snap.Score("missing", []string{"hello"}))
}

func TestTokenizeUnicodeLowercase(t *testing.T) {
	got := Tokenize("Café, naïve! 123 tokens?")
	assert.Equal(t, []string{"café", "naïve", "123", "tokens"}, got)
}
