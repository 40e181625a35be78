// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/persistence/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS cache_entries_expires ON cache_entries(expires_at);
`

// SQLiteCache keeps entries in a local SQLite file so a warm cache
// survives restarts. Expired rows are filtered on read and purged by
// PurgeExpired.
type SQLiteCache struct {
	db     *sql.DB
	now    func() time.Time
	logger zerolog.Logger
	stats  struct {
		hits      atomic.Int64
		misses    atomic.Int64
		sets      atomic.Int64
		evictions atomic.Int64
	}
}

// NewSQLiteCache opens (or rebuilds, if corrupt) the cache database at path.
func NewSQLiteCache(ctx context.Context, path string) (*SQLiteCache, error) {
	db, err := sqlite.OpenDisposable(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &SQLiteCache{db: db, now: time.Now, logger: log.WithComponent("cache")}, nil
}

func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool) {
	var value []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, c.now().UnixNano()).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			c.logger.Warn().Err(err).Str("key", key).Msg("sqlite cache get failed")
		}
		c.stats.misses.Add(1)
		return nil, false
	}
	c.stats.hits.Add(1)
	return value, true
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = c.now().Add(ttl).UnixNano()
	}
	if value == nil {
		value = []byte{}
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expires)
	if err != nil {
		return fmt.Errorf("sqlite cache set %s: %w", key, err)
	}
	c.stats.sets.Add(1)
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite cache delete %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("sqlite cache delete prefix %s: %w", prefix, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (c *SQLiteCache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("sqlite cache clear: %w", err)
	}
	return nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (c *SQLiteCache) PurgeExpired(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?`, c.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("sqlite cache purge: %w", err)
	}
	n, _ := res.RowsAffected()
	c.stats.evictions.Add(n)
	return int(n), nil
}

func (c *SQLiteCache) Stats(ctx context.Context) Stats {
	size := 0
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&size); err != nil {
		c.logger.Warn().Err(err).Msg("sqlite cache count failed")
		size = -1
	}
	return Stats{
		Backend:     "sqlite",
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Sets:        c.stats.sets.Load(),
		Evictions:   c.stats.evictions.Load(),
		CurrentSize: size,
	}
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
