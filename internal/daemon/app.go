// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/society/internal/admin"
	"github.com/ManuGH/society/internal/api"
	"github.com/ManuGH/society/internal/cache"
	"github.com/ManuGH/society/internal/config"
	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/domain/launch/sequencer"
	"github.com/ManuGH/society/internal/health"
	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/prefetch"
	"github.com/ManuGH/society/internal/profile"
	"github.com/ManuGH/society/internal/session"
	"github.com/ManuGH/society/internal/supabase"
	"github.com/ManuGH/society/internal/telemetry"
)

const serviceName = "societyd"

// App is the assembled daemon: launch sequencer, its adapters and the
// control API.
type App struct {
	cfg     config.AppConfig
	logger  zerolog.Logger
	tel     *telemetry.Provider
	client  *supabase.Client
	session *session.Provider
	cache   cache.Cache
	job     *prefetch.Job
	seq     *sequencer.Sequencer
	manager *Manager
}

// New builds every component from cfg. Nothing runs until Run.
func New(ctx context.Context, cfg config.AppConfig) (app *App, err error) {
	if err := health.PerformStartupChecks(cfg.DataDir); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, logger: log.WithComponent("daemon")}
	defer func() {
		if err != nil {
			a.closeEarly()
		}
	}()

	a.tel, err = telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a.client, err = supabase.New(supabase.Config{
		URL:               cfg.Supabase.URL,
		AnonKey:           cfg.Supabase.AnonKey,
		Timeout:           cfg.Supabase.Timeout,
		RequestsPerSecond: cfg.Supabase.RequestsPerSecond,
		Burst:             cfg.Supabase.Burst,
		UserAgent:         serviceName + "/" + cfg.Version,
	})
	if err != nil {
		return nil, err
	}

	store, err := session.NewFileStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	a.session = session.NewProvider(a.client, store, session.WithExpirySkew(cfg.Session.ExpirySkew))

	a.cache, err = cache.Open(ctx, cache.Options{
		Backend:         cfg.Cache.Backend,
		DataDir:         cfg.DataDir,
		CleanupInterval: cfg.Cache.CleanupInterval,
		Redis: cache.RedisConfig{
			Addr:      cfg.Cache.Redis.Addr,
			Password:  cfg.Cache.Redis.Password,
			DB:        cfg.Cache.Redis.DB,
			Namespace: "society:",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	a.job = prefetch.New(a.client, a.session, a.cache, prefetch.Config{
		EventsLimit: cfg.Prefetch.EventsLimit,
		TTL:         cfg.Cache.TTL,
	})

	a.seq = sequencer.New(
		a.session,
		profile.NewLookup(a.client, a.session),
		a.job,
		model.Config{
			MinSplashDuration: cfg.Launch.MinSplash,
			MaxPrefetchWait:   cfg.Launch.MaxPrefetchWait,
		},
		sequencer.WithLogger(log.WithComponent("launch")),
		sequencer.WithStateClearers(a.job),
		sequencer.WithTracer(telemetry.Tracer("society.launch")),
	)

	ready := health.NewManager(cfg.Version)
	ready.Register(
		health.LaunchCheck(a.seq.State),
		health.BreakerCheck("supabase", a.client.BreakerState),
		health.DirCheck("data_dir", cfg.DataDir),
	)
	if p, ok := a.cache.(health.Pinger); ok {
		ready.Register(health.PingCheck("cache", p))
	}

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = serviceName
	}
	srv := api.New(api.Deps{
		Launcher:   a.seq,
		Sessions:   a.session,
		Dashboard:  admin.NewClient(a.client),
		Prefetched: a.job,
		Cache:      a.cache,
		Readiness:  http.HandlerFunc(ready.ServeReady),
	}, api.Config{
		Version:        cfg.Version,
		RateLimit:      cfg.Server.RateLimit,
		TracingService: tracing,
	})

	a.manager, err = NewManager(ServerConfig{
		ListenAddr:      cfg.Server.ListenAddr,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, srv.Handler())
	if err != nil {
		return nil, err
	}

	// LIFO: the sequencer stops before the cache it writes through, and
	// spans are flushed last.
	a.manager.RegisterShutdownHook("telemetry", a.tel.Shutdown)
	a.manager.RegisterShutdownHook("cache", func(context.Context) error { return a.cache.Close() })
	a.manager.RegisterShutdownHook("launch", func(context.Context) error {
		a.seq.Close()
		return nil
	})

	return a, nil
}

// closeEarly releases what New managed to open before failing.
func (a *App) closeEarly() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.tel != nil {
		_ = a.tel.Shutdown(context.Background())
	}
}

// Addr returns the control API address once it is listening.
func (a *App) Addr() net.Addr { return a.manager.Addr() }

// Ready is closed once the control API is listening.
func (a *App) Ready() <-chan struct{} { return a.manager.Ready() }

// Run starts the launch and serves until ctx is cancelled or a component
// fails. It returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.logger.Info().
		Str(log.FieldEvent, "daemon.starting").
		Str("version", a.cfg.Version).
		Str("cache", a.cfg.Cache.Backend).
		Msg("starting launch sequencer")

	g.Go(func() error {
		if err := a.seq.Launch(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("launch sequencer: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.session.WatchFile(gctx, a.cfg.Session.WatchDebounce)
	})

	g.Go(func() error {
		return a.manager.Start(gctx)
	})

	if purger, ok := a.cache.(*cache.SQLiteCache); ok {
		g.Go(func() error {
			a.purgeLoop(gctx, purger)
			return nil
		})
	}

	err := g.Wait()

	// The manager runs the hooks itself once it has served. This covers a
	// listener that never came up.
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.manager.cfg.ShutdownTimeout)
	defer cancel()
	if serr := a.manager.Shutdown(sctx); serr != nil && !errors.Is(serr, ErrManagerNotStarted) {
		err = errors.Join(err, serr)
	}
	return err
}

func (a *App) purgeLoop(ctx context.Context, c *cache.SQLiteCache) {
	interval := a.cfg.Cache.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.PurgeExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					a.logger.Warn().Err(err).Msg("cache purge failed")
				}
				continue
			}
			if n > 0 {
				a.logger.Debug().Int("purged", n).Msg("expired cache entries removed")
			}
		}
	}
}
