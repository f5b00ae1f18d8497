package retriever

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

// EmbeddingCache stores query embeddings keyed by normalized query text so
// retries of the same ticket do not re-embed the same query. Implementations
// must be safe for concurrent use. A redis-backed implementation lives in
// contrib/cache/redis.
type EmbeddingCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vec []float32)
}

var reQuerySpace = regexp.MustCompile(`\s+`)

// NormalizeQuery produces the cache key for a query string: lowercased with
// collapsed whitespace. Two queries that normalize identically share one
// embedding.
func NormalizeQuery(query string) string {
	return reQuerySpace.ReplaceAllString(strings.ToLower(strings.TrimSpace(query)), " ")
}

// MemoryCache is a bounded in-process EmbeddingCache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]float32
	limit   int
}

// NewMemoryCache creates a cache holding at most limit entries
// (default 1024).
func NewMemoryCache(limit int) *MemoryCache {
	if limit <= 0 {
		limit = 1024
	}
	return &MemoryCache{
		entries: make(map[string][]float32),
		limit:   limit,
	}
}

// Get returns the cached embedding for key.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]float32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.entries[key]
	return vec, ok
}

// Set stores an embedding. When the cache is full an arbitrary entry is
// evicted; the cache is an optimisation, not a source of truth.
func (c *MemoryCache) Set(ctx context.Context, key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.limit {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[key] = vec
}

// Len returns the number of cached embeddings.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
