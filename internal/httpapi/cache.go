// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Libretto Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/libretto/libretto/internal/observability"
)

const (
	booksCacheKey      = "books-all"
	bookCacheKeyPrefix = "book-"
)

// Cache is a read-through JSON cache on Redis for catalog reads. Every
// failure degrades to the database: a broken cache slows reads down, it
// never breaks them.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache creates a Cache. A nil client disables caching entirely.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Get loads a cached value into dst. It returns true only on a hit that
// decoded cleanly.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.client == nil {
		return false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.RecordCacheEvent("miss")
		return false
	}
	if err != nil {
		observability.RecordCacheEvent("error")
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		observability.RecordCacheEvent("error")
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	observability.RecordCacheEvent("hit")
	return true
}

// Set stores a value under key for the cache TTL.
func (c *Cache) Set(ctx context.Context, key string, v any) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		observability.RecordCacheEvent("error")
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Invalidate drops the given keys. Mutations call this so readers never
// see a stale entry past the next write.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		observability.RecordCacheEvent("error")
		c.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}
