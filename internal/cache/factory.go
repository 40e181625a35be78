// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"time"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend         string
	DataDir         string // sqlite file location
	CleanupInterval time.Duration
	Redis           RedisConfig
}

// Open builds the configured backend.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendMemory:
		interval := opts.CleanupInterval
		if interval <= 0 {
			interval = time.Minute
		}
		return NewMemoryCache(interval), nil
	case BackendRedis:
		return NewRedisCache(ctx, opts.Redis)
	case BackendSQLite:
		return NewSQLiteCache(ctx, filepath.Join(opts.DataDir, "cache.sqlite"))
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}
