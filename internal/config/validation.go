// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	cacheBackends = []string{"memory", "redis", "sqlite"}
	otelExporters = []string{"grpc", "http"}
)

type validator struct {
	fields []FieldError
}

func (v *validator) add(field, msg string, value any) {
	v.fields = append(v.fields, FieldError{Field: field, Value: value, Message: msg})
}

func (v *validator) positive(field string, d time.Duration) {
	if d <= 0 {
		v.add(field, fmt.Sprintf("must be positive, got %s", d), d)
	}
}

func (v *validator) atLeast(field string, n, minVal int) {
	if n < minVal {
		v.add(field, fmt.Sprintf("must be at least %d, got %d", minVal, n), n)
	}
}

func (v *validator) oneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		v.add(field, fmt.Sprintf("unsupported value %q (allowed: %s)", value, strings.Join(allowed, ", ")), value)
	}
}

func (v *validator) httpURL(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.add(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		v.add(field, "must be an absolute http(s) URL", value)
	}
}

func (v *validator) err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: slices.Clone(v.fields)}
}

// Validate checks the resolved configuration. All failures are reported
// together.
func Validate(cfg AppConfig) error {
	v := &validator{}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		v.add("logLevel", "unknown log level", cfg.LogLevel)
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		v.add("dataDir", "is required", cfg.DataDir)
	}

	// The sequencer reads a zero floor as "use the default", so zero is
	// rejected here rather than silently becoming 600ms.
	if cfg.Launch.MinSplash <= 0 {
		v.add("launch.minSplash", fmt.Sprintf("must be positive, got %s (use 1ms for an effectively instant launch)", cfg.Launch.MinSplash), cfg.Launch.MinSplash)
	}
	v.positive("launch.maxPrefetchWait", cfg.Launch.MaxPrefetchWait)

	v.httpURL("supabase.url", cfg.Supabase.URL)
	if strings.TrimSpace(cfg.Supabase.AnonKey) == "" {
		v.add("supabase.anonKey", "is required", "")
	}
	v.positive("supabase.timeout", cfg.Supabase.Timeout)
	if cfg.Supabase.RequestsPerSecond <= 0 {
		v.add("supabase.requestsPerSecond", "must be positive", cfg.Supabase.RequestsPerSecond)
	}
	v.atLeast("supabase.burst", cfg.Supabase.Burst, 1)

	v.positive("session.expirySkew", cfg.Session.ExpirySkew)
	v.positive("session.watchDebounce", cfg.Session.WatchDebounce)

	v.oneOf("cache.backend", cfg.Cache.Backend, cacheBackends)
	v.positive("cache.ttl", cfg.Cache.TTL)
	v.positive("cache.cleanupInterval", cfg.Cache.CleanupInterval)
	if cfg.Cache.Backend == "redis" && strings.TrimSpace(cfg.Cache.Redis.Addr) == "" {
		v.add("cache.redis.addr", "is required for the redis backend", "")
	}
	if cfg.Cache.Redis.DB < 0 {
		v.add("cache.redis.db", "must not be negative", cfg.Cache.Redis.DB)
	}

	v.atLeast("prefetch.eventsLimit", cfg.Prefetch.EventsLimit, 1)

	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddr); err != nil {
		v.add("server.listenAddr", fmt.Sprintf("invalid address: %v", err), cfg.Server.ListenAddr)
	}
	v.atLeast("server.rateLimit", cfg.Server.RateLimit, 1)
	v.positive("server.shutdownTimeout", cfg.Server.ShutdownTimeout)

	if cfg.Telemetry.Enabled {
		v.oneOf("telemetry.exporter", cfg.Telemetry.Exporter, otelExporters)
		if cfg.Telemetry.Endpoint == "" {
			v.add("telemetry.endpoint", "is required when telemetry is enabled", "")
		}
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.add("telemetry.samplingRate", "must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	return v.err()
}
