package collision

import (
	"container/list"
	"sync"

	"go.uber.org/zap"
)

// Cache is the bounded, LRU-evicted collision cache shared by every
// evaluator in a solve (SPEC_FULL §3 "CollisionCacheData", §9 "Shared
// ownership of the collision cache"). All access is serialized by an
// internal mutex; readers and the single writer both take the same
// lock since Go's sync.RWMutex offers no benefit for an LRU whose reads
// mutate recency order.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[uint64]*list.Element
	order    *list.List // front = most recently used
	log      *zap.Logger

	hits, misses int64
}

type cacheItem struct {
	key   uint64
	entry *CacheEntry
}

// NewCache creates a cache with the given capacity (entries, not bytes).
// A non-positive capacity disables caching: every lookup misses and no
// entry is retained.
func NewCache(capacity int, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[uint64]*list.Element),
		order:    list.New(),
		log:      log,
	}
}

// Get returns the cached entry for key, if present, promoting it to
// most-recently-used.
func (c *Cache) Get(key uint64) (*CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		c.log.Debug("collision cache miss", zap.Uint64("key", key))
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	c.log.Debug("collision cache hit", zap.Uint64("key", key))
	return el.Value.(*cacheItem).entry, true
}

// Put inserts or replaces the entry for key, evicting the
// least-recently-used entry if the cache is at capacity.
func (c *Cache) Put(key uint64, entry *CacheEntry) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheItem).entry = entry
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheItem{key: key, entry: entry})
	c.entries[key] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheItem).key)
		}
	}
}

// Stats returns cumulative hit/miss counts, for metrics and tests.
func (c *Cache) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
