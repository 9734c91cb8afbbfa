package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix     = "archgov:resp"
	generationKey = "archgov:resp:generation"
)

// ResponseCache caches serialized read responses in Redis. Entries are
// keyed by a generation counter that every successful write bumps, so a
// write immediately stops older responses from being served; the
// orphaned entries age out via TTL. A nil Redis client disables the
// cache entirely and every call becomes a pass-through.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewResponseCache creates a ResponseCache with the given TTL in
// seconds. Cache failures are never surfaced to callers; a broken cache
// degrades to uncached reads.
func NewResponseCache(client *redis.Client, ttlSeconds int, logger *zap.Logger) *ResponseCache {
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &ResponseCache{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
		logger: logger,
	}
}

// Enabled reports whether a Redis client is configured.
func (c *ResponseCache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached payload for the given request path, if any.
func (c *ResponseCache) Get(ctx context.Context, path string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}

	key, ok := c.key(ctx, path)
	if !ok {
		return nil, false
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Response cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

// Set stores a payload for the given request path under the current
// generation.
func (c *ResponseCache) Set(ctx context.Context, path string, payload []byte) {
	if !c.Enabled() {
		return
	}

	key, ok := c.key(ctx, path)
	if !ok {
		return
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("Response cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Bump advances the generation counter, invalidating every cached
// response. Called after each successful write.
func (c *ResponseCache) Bump(ctx context.Context) {
	if !c.Enabled() {
		return
	}

	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		c.logger.Warn("Response cache generation bump failed", zap.Error(err))
	}
}

func (c *ResponseCache) key(ctx context.Context, path string) (string, bool) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && err != redis.Nil {
		c.logger.Warn("Response cache generation read failed", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("%s:%d:%s", keyPrefix, gen, path), true
}
