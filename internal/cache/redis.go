package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores JSON-encoded values in Redis under a key prefix.
type RedisCache[T any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisClient parses a redis:// URL and verifies the server answers.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func NewRedisCache[T any](client redis.UniversalClient, prefix string, ttl time.Duration, logger *slog.Logger) *RedisCache[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache[T]{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *RedisCache[T]) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false
	}
	if err != nil {
		c.logger.WarnContext(ctx, "Redis get failed", "key", key, "error", err)
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.WarnContext(ctx, "Redis value decode failed", "key", key, "error", err)
		return zero, false
	}
	return v, true
}

func (c *RedisCache[T]) Set(ctx context.Context, key string, data T) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.WarnContext(ctx, "Redis value encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis set failed", "key", key, "error", err)
	}
}

func (c *RedisCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.WarnContext(ctx, "Redis delete failed", "key", key, "error", err)
	}
}
