// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sqlite opens the local SQLite databases with the pragmas every
// connection needs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/ManuGH/society/internal/log"
)

// Config defines SQLite connection parameters.
type Config struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultConfig suits a small local cache: WAL lets readers proceed while
// the single writer holds the lock.
func DefaultConfig() Config {
	return Config{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// Open initializes a connection pool. The pragmas are part of the DSN so
// they apply to every pooled connection.
func Open(ctx context.Context, dbPath string, cfg Config) (*sql.DB, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return db, nil
}

// OpenDisposable opens a database whose contents can be rebuilt, such as a
// cache. If an existing file fails the integrity check it is deleted and a
// fresh one is created.
func OpenDisposable(ctx context.Context, dbPath string, cfg Config) (*sql.DB, error) {
	if _, err := os.Stat(dbPath); err == nil {
		issues, verr := VerifyIntegrity(ctx, dbPath, "quick")
		if verr != nil || len(issues) > 0 {
			logger := log.WithComponent("sqlite")
			logger.Warn().
				Err(verr).
				Strs("issues", issues).
				Str("path", dbPath).
				Str(log.FieldEvent, "sqlite.reset").
				Msg("discarding unreadable database")
			for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
				if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("sqlite: reset %s: %w", p, err)
				}
			}
		}
	}
	return Open(ctx, dbPath, cfg)
}
