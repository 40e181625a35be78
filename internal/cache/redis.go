// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/society/internal/log"
)

const (
	redisOpTimeout = 2 * time.Second
	scanBatch      = 256
)

// RedisCache is a Redis-backed Cache. All keys live under a namespace so a
// shared Redis database is never flushed wholesale.
type RedisCache struct {
	client    *redis.Client
	namespace string
	logger    zerolog.Logger
	stats     struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string // key prefix, defaults to "society:"
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	c := newRedisCache(client, cfg.Namespace)
	c.logger.Info().
		Str("addr", cfg.Addr).
		Int("db", cfg.DB).
		Str(log.FieldEvent, "cache.redis_connected").
		Msg("connected to Redis cache")
	return c, nil
}

func newRedisCache(client *redis.Client, namespace string) *RedisCache {
	if namespace == "" {
		namespace = "society:"
	}
	return &RedisCache{
		client:    client,
		namespace: namespace,
		logger:    log.WithComponent("cache"),
	}
}

func (c *RedisCache) key(k string) string { return c.namespace + k }

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		}
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return val, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	c.stats.sets.Add(1)
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// DeletePrefix walks the keyspace with SCAN so Redis is never blocked by
// KEYS on a large database.
func (c *RedisCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	pattern := escapeGlob(c.key(prefix)) + "*"
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan %s: %w", prefix, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis delete %s: %w", prefix, err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}

// Clear removes every key in the namespace.
func (c *RedisCache) Clear(ctx context.Context) error {
	_, err := c.DeletePrefix(ctx, "")
	return err
}

// Stats counts the namespace with SCAN; CurrentSize is -1 if that fails.
func (c *RedisCache) Stats(ctx context.Context) Stats {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	size := 0
	iter := c.client.Scan(ctx, 0, escapeGlob(c.namespace)+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis scan for stats failed")
		size = -1
	}

	return Stats{
		Backend:     "redis",
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		CurrentSize: size,
	}
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// HealthCheck checks if Redis is available.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
