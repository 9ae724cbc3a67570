package collision_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/sqpforge/internal/collision"
)

func TestCacheMissThenHitAfterPut(t *testing.T) {
	c := collision.NewCache(2, nil)
	_, ok := c.Get(42)
	assert.False(t, ok)

	c.Put(42, &collision.CacheEntry{})
	entry, ok := c.Get(42)
	require.True(t, ok)
	assert.NotNil(t, entry)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheEvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := collision.NewCache(2, nil)
	c.Put(1, &collision.CacheEntry{})
	c.Put(2, &collision.CacheEntry{})
	c.Put(3, &collision.CacheEntry{}) // evicts key 1

	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCacheWithNonPositiveCapacityNeverRetains(t *testing.T) {
	c := collision.NewCache(0, nil)
	c.Put(1, &collision.CacheEntry{})
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}
