package embedding

import (
	"container/list"
	"context"
	"sync"
)

// EmbeddingCache is an LRU cache for embeddings keyed by text.
type EmbeddingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewEmbeddingCache creates a new cache with the given capacity.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present. A hit marks the entry
// most recently used, so Get takes the write lock.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		c.hits++
		return elem.Value.(*cacheEntry).value, true
	}
	c.misses++
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Stats returns hit and miss counters.
func (c *EmbeddingCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// CachedEmbedder memoizes another embedder per task and text.
type CachedEmbedder struct {
	next  Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps next with an LRU of the given size.
func NewCachedEmbedder(next Embedder, size int) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: NewEmbeddingCache(size)}
}

// Embed returns a cached vector or computes and stores one. Failures are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	key := string(task) + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text, task)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v)
	return v, nil
}

// Cache exposes the underlying LRU.
func (c *CachedEmbedder) Cache() *EmbeddingCache { return c.cache }

// Dimensions delegates to the wrapped embedder.
func (c *CachedEmbedder) Dimensions() int { return c.next.Dimensions() }

// Close closes the wrapped embedder.
func (c *CachedEmbedder) Close() error { return c.next.Close() }
