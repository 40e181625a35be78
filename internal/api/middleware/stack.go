// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"time"

	"github.com/go-chi/chi/v5"
)

// StackConfig selects the cross-cutting middleware of the control API.
type StackConfig struct {
	// RateLimit is requests per RateWindow per client IP. Zero disables it.
	RateLimit  int
	RateWindow time.Duration
	// TracingService names the server spans. Empty disables tracing.
	TracingService string
	EnableMetrics  bool
	EnableLogging  bool
}

// ApplyStack installs the middleware in a fixed order: recovery first so it
// sees every panic, rate limiting last so rejected requests are still logged.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics)
	}
	if cfg.EnableLogging {
		r.Use(AccessLog)
	}
	if cfg.RateLimit > 0 {
		r.Use(RateLimit(RateLimitConfig{RequestLimit: cfg.RateLimit, WindowSize: cfg.RateWindow}))
	}
}
