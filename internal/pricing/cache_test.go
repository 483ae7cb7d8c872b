package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenCache(t *testing.T) {
	c := NewGenCache()

	_, ok := c.Get("k")
	assert.False(t, ok, "empty cache must miss")

	c.Put("k", []float64{1, 2})
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, got)

	// A bump invalidates everything without touching the entries.
	c.Bump()
	_, ok = c.Get("k")
	assert.False(t, ok, "stale generation must miss")

	// Re-putting under the new generation serves again.
	c.Put("k", []float64{3})
	got, ok = c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []float64{3}, got)
}

func TestGenCacheClear(t *testing.T) {
	c := NewGenCache()
	gen := c.Generation()

	c.Put("k", []float64{1})
	c.Clear()

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, gen, c.Generation(), "clear must not advance the generation")
}

func TestGenCacheIndependentKeys(t *testing.T) {
	c := NewGenCache()
	c.Put("a", []float64{1})
	c.Put("b", []float64{2})

	a, ok := c.Get("a")
	require.True(t, ok)
	b, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, []float64{1}, a)
	assert.Equal(t, []float64{2}, b)
}
