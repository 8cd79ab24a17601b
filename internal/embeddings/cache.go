// Package embeddings wraps a configured embedding provider with an
// LRU/TTL cache in front of it (spec.md §7 "no spurious re-embedding":
// the same text embedded twice should cost one API call, not two).
package embeddings

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// embeddingCache caches embedding vectors keyed by the sha256 of their
// source text, evicting least-recently-used entries once full and
// treating anything past ttl as a miss.
type embeddingCache struct {
	mu      sync.RWMutex
	cache   map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
}

type cacheEntry struct {
	key        string
	value      []float64
	element    *list.Element
	createdAt  time.Time
	accessedAt time.Time
}

// newEmbeddingCache creates a new LRU cache with TTL.
func newEmbeddingCache(maxSize int, ttl time.Duration) *embeddingCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &embeddingCache{
		cache:   make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached embedding for text, if present and unexpired.
func (c *embeddingCache) Get(text string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.hashKey(text)
	entry, exists := c.cache[key]
	if !exists {
		return nil, false
	}

	if time.Since(entry.createdAt) > c.ttl {
		c.removeEntry(entry)
		return nil, false
	}

	c.lruList.MoveToFront(entry.element)
	entry.accessedAt = time.Now()

	result := make([]float64, len(entry.value))
	copy(result, entry.value)
	return result, true
}

// Set stores an embedding for text, evicting the oldest entry if the
// cache is at capacity.
func (c *embeddingCache) Set(text string, embedding []float64) {
	if len(embedding) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.hashKey(text)
	now := time.Now()

	if entry, exists := c.cache[key]; exists {
		entry.value = make([]float64, len(embedding))
		copy(entry.value, embedding)
		entry.createdAt = now
		entry.accessedAt = now
		c.lruList.MoveToFront(entry.element)
		return
	}

	entry := &cacheEntry{
		key:        key,
		value:      make([]float64, len(embedding)),
		createdAt:  now,
		accessedAt: now,
	}
	copy(entry.value, embedding)

	entry.element = c.lruList.PushFront(entry)
	c.cache[key] = entry

	for c.lruList.Len() > c.maxSize {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeEntry(oldest.Value.(*cacheEntry))
	}
}

func (c *embeddingCache) hashKey(text string) string {
	hash := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", hash)
}

func (c *embeddingCache) removeEntry(entry *cacheEntry) {
	delete(c.cache, entry.key)
	c.lruList.Remove(entry.element)
}
