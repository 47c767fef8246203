package queryexpand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTrivialQuery(t *testing.T) {
	e := New()
	variants, err := e.Expand(context.Background(), "hi")
	require.NoError(t, err)
	assert.Contains(t, variants, "hi")
	assert.Contains(t, variants, "hi overview")
	assert.Contains(t, variants, "overview")
}

func TestExpandDeterministic(t *testing.T) {
	e := New()
	v1, err := e.Expand(context.Background(), "how do i fix a slow database build?")
	require.NoError(t, err)
	v2, err := e.Expand(context.Background(), "how do i fix a slow database build?")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.LessOrEqual(t, len(v1), 6)
	assert.Equal(t, "how do i fix a slow database build?", v1[0])
}

func TestExpandPrefixRewrite(t *testing.T) {
	e := New()
	variants, err := e.Expand(context.Background(), "What is a container?")
	require.NoError(t, err)
	found := false
	for _, v := range variants {
		if v == "Information about a container" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExpandDedupesOriginalFirst(t *testing.T) {
	e := New()
	variants, err := e.Expand(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, "test", variants[0])
}
