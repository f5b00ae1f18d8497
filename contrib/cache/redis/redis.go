// Package redis provides a redis-backed query-embedding cache so that
// multiple triage workers share one embedding per normalized query.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/triagehq/triage/pkg/logging"
)

// Config holds Redis configuration for the embedding cache.
type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// DefaultConfig returns a local-Redis configuration with a 24h TTL.
func DefaultConfig() *Config {
	return &Config{
		Addr:   "localhost:6379",
		Prefix: "triage:embedding:",
		TTL:    24 * time.Hour,
	}
}

// Cache implements retriever.EmbeddingCache on Redis. Cache errors are
// logged and swallowed: a miss costs one embedding call, never a failed
// retrieval.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New creates a Redis-backed embedding cache.
func New(config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Prefix == "" {
		config.Prefix = "triage:embedding:"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &Cache{
		client: client,
		prefix: config.Prefix,
		ttl:    config.TTL,
	}
}

// Get returns the cached embedding for key.
func (c *Cache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, c.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			logging.WithComponent("embedding_cache").Warn("redis get failed", "error", err)
		}
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal([]byte(raw), &vec); err != nil {
		logging.WithComponent("embedding_cache").Warn("corrupt cache entry dropped", "key", key)
		c.client.Del(ctx, c.prefix+key)
		return nil, false
	}
	return vec, true
}

// Set stores an embedding with the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, vec []float32) {
	raw, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err(); err != nil {
		logging.WithComponent("embedding_cache").Warn("redis set failed", "error", err)
	}
}

// Ping checks the Redis connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
