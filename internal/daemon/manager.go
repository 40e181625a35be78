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
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/society/internal/log"
)

// ShutdownHook performs cleanup during graceful shutdown.
type ShutdownHook func(ctx context.Context) error

// ServerConfig configures the control API listener.
type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// Manager runs the HTTP server and the shutdown sequence.
type Manager struct {
	cfg     ServerConfig
	handler http.Handler
	logger  zerolog.Logger

	mu       sync.Mutex
	server   *http.Server
	addr     net.Addr
	ready    chan struct{}
	hooks    []namedHook
	started  bool
	stopping bool
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager validates its inputs and returns an idle manager.
func NewManager(cfg ServerConfig, handler http.Handler) (*Manager, error) {
	if handler == nil {
		return nil, ErrMissingAPIHandler
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:     cfg,
		handler: handler,
		logger:  log.WithComponent("manager"),
		ready:   make(chan struct{}),
	}, nil
}

// Start listens and serves until ctx is cancelled or the server fails, then
// runs Shutdown.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", m.cfg.ListenAddr, err)
	}

	srv := &http.Server{
		Handler:           m.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
		// Request contexts end with ctx so open event streams let Shutdown finish.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	m.mu.Lock()
	m.server = srv
	m.addr = ln.Addr()
	m.mu.Unlock()
	close(m.ready)

	m.logger.Info().
		Str(log.FieldEvent, "api.server.listening").
		Str("addr", ln.Addr().String()).
		Msg("control API listening")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("API server: %w", err)
		}
		close(errCh)
	}()

	shutdown := func() error {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
		defer cancel()
		return m.Shutdown(sctx)
	}

	select {
	case err := <-errCh:
		m.logger.Error().Err(err).Str(log.FieldEvent, "api.server.failed").Msg("server error, initiating shutdown")
		if shutdownErr := shutdown(); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str(log.FieldEvent, "daemon.stopping").Msg("shutdown signal received")
		return shutdown()
	}
}

// Addr returns the bound address once the listener is up, or nil.
func (m *Manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Ready is closed once the listener is bound.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// Shutdown stops the HTTP server and runs hooks in reverse registration
// order. It is idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	srv := m.server
	hooks := append([]namedHook(nil), m.hooks...)
	m.mu.Unlock()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			m.logger.Error().Err(err).Str("hook", h.name).Dur(log.FieldDuration, time.Since(start)).Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		m.logger.Debug().Str("hook", h.name).Dur(log.FieldDuration, time.Since(start)).Msg("shutdown hook completed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	m.logger.Info().Str(log.FieldEvent, "daemon.stopped").Msg("daemon stopped cleanly")
	return nil
}

// RegisterShutdownHook adds a cleanup step. Hooks run last-in first-out.
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}
