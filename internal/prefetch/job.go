// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package prefetch warms the cache with what the home screen shows first:
// upcoming events, categories and the user's RSVPs.
package prefetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/society/internal/cache"
	"github.com/ManuGH/society/internal/domain/launch/ports"
	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/metrics"
	"github.com/ManuGH/society/internal/supabase"
)

const (
	DefaultEventsLimit = 50
	DefaultTTL         = 15 * time.Minute
	userPrefix         = "user:"
)

// Resource names, also used as cache key suffixes.
const (
	ResourceEvents     = "events"
	ResourceCategories = "categories"
	ResourceRSVPs      = "rsvps"
)

// TokenSource yields the access token requests are made with.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Config tunes the job.
type Config struct {
	EventsLimit int
	TTL         time.Duration
}

// Job implements ports.PrefetchJob and ports.StateClearer.
type Job struct {
	client *supabase.Client
	tokens TokenSource
	cache  cache.Cache
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger

	flights singleflight.Group

	// mu guards warmed and epoch, and is held across cache writes so a
	// load that started before ClearUserState cannot repopulate the cache
	// after it.
	mu     sync.Mutex
	warmed map[uuid.UUID]time.Time
	epoch  uint64
}

var (
	_ ports.PrefetchJob  = (*Job)(nil)
	_ ports.StateClearer = (*Job)(nil)
)

func New(client *supabase.Client, tokens TokenSource, c cache.Cache, cfg Config) *Job {
	if cfg.EventsLimit <= 0 {
		cfg.EventsLimit = DefaultEventsLimit
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Job{
		client: client,
		tokens: tokens,
		cache:  c,
		cfg:    cfg,
		now:    time.Now,
		logger: log.WithComponent("prefetch"),
		warmed: make(map[uuid.UUID]time.Time),
	}
}

// Key returns the cache key of a user's resource.
func Key(userID uuid.UUID, resource string) string {
	return userPrefix + userID.String() + ":" + resource
}

// Run loads every resource concurrently. Concurrent calls for the same
// user share one load. The first failing resource cancels the rest.
// Results of a load overtaken by ClearUserState are discarded.
func (j *Job) Run(ctx context.Context, userID uuid.UUID) error {
	j.mu.Lock()
	epoch := j.epoch
	j.mu.Unlock()

	key := fmt.Sprintf("%s/%d", userID, epoch)
	ch := j.flights.DoChan(key, func() (any, error) {
		return nil, j.run(ctx, userID, epoch)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Job) run(ctx context.Context, userID uuid.UUID, epoch uint64) error {
	started := j.now()
	logger := log.WithContext(ctx, j.logger)

	token, err := j.tokens.AccessToken(ctx)
	if err != nil {
		return fmt.Errorf("prefetch: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range j.resources(userID) {
		g.Go(func() error {
			raw, err := r.query.Execute(gctx, token)
			if err != nil {
				metrics.RecordPrefetchResource(r.name, "failed")
				return fmt.Errorf("prefetch %s: %w", r.name, err)
			}
			stored, err := j.store(gctx, epoch, Key(userID, r.name), raw)
			if err != nil {
				metrics.RecordPrefetchResource(r.name, "cache_failed")
				return fmt.Errorf("cache %s: %w", r.name, err)
			}
			if !stored {
				metrics.RecordPrefetchResource(r.name, "discarded")
				return nil
			}
			metrics.RecordPrefetchResource(r.name, "ok")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	j.mu.Lock()
	current := j.epoch == epoch
	if current {
		j.warmed[userID] = j.now()
	}
	j.mu.Unlock()

	if !current {
		logger.Debug().
			Str(log.FieldEvent, "prefetch.discarded").
			Msg("user state cleared during load, results dropped")
		return nil
	}
	logger.Debug().
		Str(log.FieldEvent, "prefetch.done").
		Dur(log.FieldDuration, j.now().Sub(started)).
		Msg("cache warmed")
	return nil
}

// store writes one payload unless user state was cleared since epoch.
func (j *Job) store(ctx context.Context, epoch uint64, key string, raw []byte) (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.epoch != epoch {
		return false, nil
	}
	return true, j.cache.Set(ctx, key, raw, j.cfg.TTL)
}

type resource struct {
	name  string
	query *supabase.Query
}

func (j *Job) resources(userID uuid.UUID) []resource {
	return []resource{
		{ResourceEvents, j.client.From("events").
			Select("*").
			Gte("starts_at", j.now().UTC().Format(time.RFC3339)).
			Is("deleted_at", "null").
			Order("starts_at", true).
			Limit(j.cfg.EventsLimit)},
		{ResourceCategories, j.client.From("categories").
			Select("*").
			Order("name", true)},
		{ResourceRSVPs, j.client.From("rsvps").
			Select("*").
			Eq("user_id", userID)},
	}
}

// Cached returns a prefetched payload.
func (j *Job) Cached(ctx context.Context, userID uuid.UUID, resource string) ([]byte, bool) {
	return j.cache.Get(ctx, Key(userID, resource))
}

// WarmedAt reports when the user's cache was last fully warmed.
func (j *Job) WarmedAt(userID uuid.UUID) (time.Time, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	t, ok := j.warmed[userID]
	return t, ok
}

// ClearUserState drops every per-user cache entry. Loads still in flight
// keep running but no longer write.
func (j *Job) ClearUserState(ctx context.Context) error {
	j.mu.Lock()
	j.epoch++
	j.warmed = make(map[uuid.UUID]time.Time)
	j.mu.Unlock()

	n, err := j.cache.DeletePrefix(ctx, userPrefix)
	if err != nil {
		return fmt.Errorf("clear user cache: %w", err)
	}
	metrics.RecordCacheUserClear()
	logger := log.WithContext(ctx, j.logger)
	logger.Info().
		Str(log.FieldEvent, "prefetch.cleared").
		Int("entries", n).
		Msg("per-user cache cleared")
	return nil
}
