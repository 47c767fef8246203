package tokenbudget

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountReturnsEstimateForUnknownModel(t *testing.T) {
	c := NewCounter()
	n := c.Count("no-such-model-xyz", "hello world")
	assert.Greater(t, n, 0)
}

func TestCountCachesEncodingPerModel(t *testing.T) {
	c := NewCounter()
	first := c.Count("gpt-4", "a reasonably long sentence to tokenize")
	second := c.Count("gpt-4", "a reasonably long sentence to tokenize")
	assert.Equal(t, first, second)
}

func TestEstimateTokensCharsMinimumOne(t *testing.T) {
	assert.Equal(t, 1, estimateTokensChars("hi"))
	assert.Equal(t, 0, estimateTokensChars(""))
}

func TestFitsWithinWindow(t *testing.T) {
	fits, capped := FitsWithinWindow(100, 20, 200)
	assert.True(t, fits)
	assert.Equal(t, 0, capped)

	fits, capped = FitsWithinWindow(190, 20, 200)
	assert.False(t, fits)
	assert.GreaterOrEqual(t, capped, 128)
}

func TestFitsWithinWindowCapsAtMinimum(t *testing.T) {
	fits, capped := FitsWithinWindow(1000, 50, 200)
	assert.False(t, fits)
	assert.Equal(t, 128, capped)
}
