// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api serves the local control API: launch state, session control
// and the operator dashboard data.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/society/internal/admin"
	"github.com/ManuGH/society/internal/api/middleware"
	"github.com/ManuGH/society/internal/cache"
	"github.com/ManuGH/society/internal/domain/launch/model"
)

const defaultKeepAlive = 15 * time.Second

// Launcher is the launch sequencer as seen by the API.
type Launcher interface {
	State() model.State
	Subscribe() (<-chan model.State, func())
	Retry()
	ValidateAccountStatus(ctx context.Context)
	HandleOnboardingCompleted(ctx context.Context)
}

// Sessions controls the signed-in user.
type Sessions interface {
	CurrentSession(ctx context.Context) (*model.Session, error)
	AccessToken(ctx context.Context) (string, error)
	SignIn(ctx context.Context, email, password string) (uuid.UUID, error)
	SignOut(ctx context.Context) error
}

// Dashboard reads operator data with the signed-in user's token.
type Dashboard interface {
	Stats(ctx context.Context, token string) (*admin.Stats, error)
	Users(ctx context.Context, token string, page admin.Page) ([]admin.User, error)
	Events(ctx context.Context, token string, page admin.Page) ([]admin.Event, error)
}

// Prefetched exposes the warmed per-user cache.
type Prefetched interface {
	Cached(ctx context.Context, userID uuid.UUID, resource string) ([]byte, bool)
	WarmedAt(userID uuid.UUID) (time.Time, bool)
}

// Deps are the collaborators behind the routes. Dashboard, Prefetched and
// Cache are optional; their routes answer 404 when nil. Without Readiness,
// /readyz always answers ready.
type Deps struct {
	Launcher   Launcher
	Sessions   Sessions
	Dashboard  Dashboard
	Prefetched Prefetched
	Cache      cache.Cache
	Readiness  http.Handler
}

// Config tunes the HTTP surface.
type Config struct {
	Version string
	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int
	// TracingService enables otelhttp server spans when set.
	TracingService string
	// KeepAlive is the comment interval on idle event streams.
	KeepAlive time.Duration
}

// Server implements the control API.
type Server struct {
	deps    Deps
	cfg     Config
	started time.Time
	router  chi.Router
}

// New builds the router.
func New(deps Deps, cfg Config) *Server {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = defaultKeepAlive
	}
	s := &Server{deps: deps, cfg: cfg, started: time.Now()}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	middleware.ApplyStack(r, middleware.StackConfig{
		RateLimit:      s.cfg.RateLimit,
		RateWindow:     time.Minute,
		TracingService: s.cfg.TracingService,
		EnableMetrics:  true,
		EnableLogging:  true,
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/launch", func(r chi.Router) {
			r.Get("/", s.handleLaunchState)
			r.Get("/stream", s.handleLaunchStream)
			r.Post("/retry", s.handleLaunchRetry)
			r.Post("/validate", s.handleLaunchValidate)
			r.Post("/onboarding/complete", s.handleOnboardingComplete)
		})
		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleSession)
			r.Post("/sign-in", s.handleSignIn)
			r.Post("/sign-out", s.handleSignOut)
		})
		r.Get("/prefetch/{resource}", s.handlePrefetched)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/stats", s.handleAdminStats)
			r.Get("/users", s.handleAdminUsers)
			r.Get("/events", s.handleAdminEvents)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, http.StatusNotFound, codeNotFound, "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeProblem(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})
	return r
}
