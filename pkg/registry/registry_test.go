package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("a", 1))
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := New[string]()
	require.NoError(t, r.Register("a", "x"))
	err := r.Register("a", "y")
	assert.Error(t, err)
}

func TestGetMissing(t *testing.T) {
	r := New[string]()
	_, ok := r.Get("missing")
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("a", 1))
	r.Remove("a")
	_, ok := r.Get("a")
	assert.False(t, ok)
	r.Remove("never-registered")
}

func TestNames(t *testing.T) {
	r := New[int]()
	require.NoError(t, r.Register("a", 1))
	require.NoError(t, r.Register("b", 2))
	names := r.Names()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}
