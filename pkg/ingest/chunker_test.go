package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleChunkerFitsInOneChunk(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{Strategy: ChunkerSimple, Size: 1000})
	require.NoError(t, err)

	spans, err := c.Split("short content")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 1, spans[0].Total)
}

func TestSimpleChunkerSplitsLongContent(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{Strategy: ChunkerSimple, Size: 50})
	require.NoError(t, err)

	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "this is a line of text"
	}
	content := strings.Join(lines, "\n")

	spans, err := c.Split(content)
	require.NoError(t, err)
	require.Greater(t, len(spans), 1)
	for i, s := range spans {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, len(spans), s.Total)
	}
}

func TestOverlappingChunkerCarriesOverlap(t *testing.T) {
	c, err := NewChunker(ChunkerConfig{Strategy: ChunkerOverlapping, Size: 100, Overlap: 20})
	require.NoError(t, err)

	content := strings.Repeat("abcdefghij", 30)
	spans, err := c.Split(content)
	require.NoError(t, err)
	require.Greater(t, len(spans), 1)

	tail := spans[0].Content[len(spans[0].Content)-20:]
	assert.True(t, strings.HasPrefix(spans[1].Content, tail))
}

func TestChunkerConfigValidation(t *testing.T) {
	_, err := NewChunker(ChunkerConfig{Strategy: "bogus"})
	assert.Error(t, err)

	_, err = NewChunker(ChunkerConfig{Strategy: ChunkerOverlapping, Size: 100, Overlap: 200})
	assert.Error(t, err)
}
