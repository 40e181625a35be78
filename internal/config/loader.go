// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/society/internal/log"
	"gopkg.in/yaml.v3"
)

// Defaults applied before the file and environment layers.
const (
	DefaultLogLevel        = "info"
	DefaultDataDir         = "/tmp/society"
	DefaultMinSplash       = 600 * time.Millisecond
	DefaultMaxPrefetchWait = 2500 * time.Millisecond
	DefaultSupabaseTimeout = 10 * time.Second
	DefaultRPS             = 20.0
	DefaultBurst           = 40
	DefaultExpirySkew      = 30 * time.Second
	DefaultWatchDebounce   = 200 * time.Millisecond
	DefaultCacheBackend    = "memory"
	DefaultCacheTTL        = 15 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultEventsLimit     = 50
	DefaultListenAddr      = "127.0.0.1:8787"
	DefaultRateLimit       = 120
	DefaultShutdownTimeout = 10 * time.Second
	DefaultOTelExporter    = "grpc"
	DefaultOTelEndpoint    = "localhost:4317"
	DefaultSamplingRate    = 1.0
)

// Loader resolves configuration with precedence ENV > file > defaults.
type Loader struct {
	configPath string
	version    string
	lookup     func(string) (string, bool)
	environ    func() []string

	// ConsumedEnvKeys records every environment key the last Load read.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader reading the process environment. An empty
// configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		lookup:          os.LookupEnv,
		environ:         osEnviron,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Load builds the final configuration: defaults, strict file parse,
// environment overrides, then validation.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	logger := log.WithComponent("config")
	env := &envSource{lookup: l.lookup, logger: logger, seen: l.ConsumedEnvKeys}
	mergeEnv(&cfg, env)
	for _, key := range UnknownEnvKeys(l.environ(), l.ConsumedEnvKeys) {
		logger.Warn().Str("key", key).Msg("unknown environment variable ignored")
	}

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: DefaultLogLevel,
		DataDir:  DefaultDataDir,
		Launch: LaunchConfig{
			MinSplash:       DefaultMinSplash,
			MaxPrefetchWait: DefaultMaxPrefetchWait,
		},
		Supabase: SupabaseConfig{
			Timeout:           DefaultSupabaseTimeout,
			RequestsPerSecond: DefaultRPS,
			Burst:             DefaultBurst,
		},
		Session: SessionConfig{
			ExpirySkew:    DefaultExpirySkew,
			WatchDebounce: DefaultWatchDebounce,
		},
		Cache: CacheConfig{
			Backend:         DefaultCacheBackend,
			TTL:             DefaultCacheTTL,
			CleanupInterval: DefaultCleanupInterval,
		},
		Prefetch: PrefetchConfig{EventsLimit: DefaultEventsLimit},
		Server: ServerConfig{
			ListenAddr:      DefaultListenAddr,
			RateLimit:       DefaultRateLimit,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultOTelExporter,
			Endpoint:     DefaultOTelEndpoint,
			Environment:  "development",
			SamplingRate: DefaultSamplingRate,
		},
	}
}

// loadFile parses a YAML file strictly: unknown keys and multiple documents
// are rejected.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- the path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errors.New("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFile(dst *AppConfig, src *FileConfig) {
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.DataDir != "" {
		dst.DataDir = os.ExpandEnv(src.DataDir)
	}
	if l := src.Launch; l != nil {
		setDur(&dst.Launch.MinSplash, l.MinSplash)
		setDur(&dst.Launch.MaxPrefetchWait, l.MaxPrefetchWait)
	}
	if s := src.Supabase; s != nil {
		setStr(&dst.Supabase.URL, s.URL)
		setStr(&dst.Supabase.AnonKey, os.ExpandEnv(s.AnonKey))
		setDur(&dst.Supabase.Timeout, s.Timeout)
		if s.RequestsPerSecond != nil {
			dst.Supabase.RequestsPerSecond = *s.RequestsPerSecond
		}
		setInt(&dst.Supabase.Burst, s.Burst)
	}
	if s := src.Session; s != nil {
		setDur(&dst.Session.ExpirySkew, s.ExpirySkew)
		setDur(&dst.Session.WatchDebounce, s.WatchDebounce)
	}
	if c := src.Cache; c != nil {
		setStr(&dst.Cache.Backend, c.Backend)
		setDur(&dst.Cache.TTL, c.TTL)
		setDur(&dst.Cache.CleanupInterval, c.CleanupInterval)
		if r := c.Redis; r != nil {
			setStr(&dst.Cache.Redis.Addr, r.Addr)
			setStr(&dst.Cache.Redis.Password, os.ExpandEnv(r.Password))
			setInt(&dst.Cache.Redis.DB, r.DB)
		}
	}
	if p := src.Prefetch; p != nil {
		setInt(&dst.Prefetch.EventsLimit, p.EventsLimit)
	}
	if s := src.Server; s != nil {
		setStr(&dst.Server.ListenAddr, s.ListenAddr)
		setInt(&dst.Server.RateLimit, s.RateLimit)
		setDur(&dst.Server.ShutdownTimeout, s.ShutdownTimeout)
	}
	if t := src.Telemetry; t != nil {
		if t.Enabled != nil {
			dst.Telemetry.Enabled = *t.Enabled
		}
		setStr(&dst.Telemetry.Exporter, t.Exporter)
		setStr(&dst.Telemetry.Endpoint, t.Endpoint)
		setStr(&dst.Telemetry.Environment, t.Environment)
		if t.SamplingRate != nil {
			dst.Telemetry.SamplingRate = *t.SamplingRate
		}
	}
}

func mergeEnv(dst *AppConfig, env *envSource) {
	dst.LogLevel = env.String(EnvPrefix+"LOG_LEVEL", dst.LogLevel)
	dst.DataDir = env.String(EnvPrefix+"DATA", dst.DataDir)

	dst.Launch.MinSplash = env.Duration(EnvPrefix+"LAUNCH_MIN_SPLASH", dst.Launch.MinSplash)
	dst.Launch.MaxPrefetchWait = env.Duration(EnvPrefix+"LAUNCH_MAX_PREFETCH_WAIT", dst.Launch.MaxPrefetchWait)

	dst.Supabase.URL = env.String(EnvPrefix+"SUPABASE_URL", dst.Supabase.URL)
	dst.Supabase.AnonKey = env.String(EnvPrefix+"SUPABASE_ANON_KEY", dst.Supabase.AnonKey)
	dst.Supabase.Timeout = env.Duration(EnvPrefix+"SUPABASE_TIMEOUT", dst.Supabase.Timeout)
	dst.Supabase.RequestsPerSecond = env.Float(EnvPrefix+"SUPABASE_RPS", dst.Supabase.RequestsPerSecond)
	dst.Supabase.Burst = env.Int(EnvPrefix+"SUPABASE_BURST", dst.Supabase.Burst)

	dst.Session.ExpirySkew = env.Duration(EnvPrefix+"SESSION_EXPIRY_SKEW", dst.Session.ExpirySkew)
	dst.Session.WatchDebounce = env.Duration(EnvPrefix+"SESSION_WATCH_DEBOUNCE", dst.Session.WatchDebounce)

	dst.Cache.Backend = env.String(EnvPrefix+"CACHE_BACKEND", dst.Cache.Backend)
	dst.Cache.TTL = env.Duration(EnvPrefix+"CACHE_TTL", dst.Cache.TTL)
	dst.Cache.CleanupInterval = env.Duration(EnvPrefix+"CACHE_CLEANUP_INTERVAL", dst.Cache.CleanupInterval)
	dst.Cache.Redis.Addr = env.String(EnvPrefix+"REDIS_ADDR", dst.Cache.Redis.Addr)
	dst.Cache.Redis.Password = env.String(EnvPrefix+"REDIS_PASSWORD", dst.Cache.Redis.Password)
	dst.Cache.Redis.DB = env.Int(EnvPrefix+"REDIS_DB", dst.Cache.Redis.DB)

	dst.Prefetch.EventsLimit = env.Int(EnvPrefix+"PREFETCH_EVENTS_LIMIT", dst.Prefetch.EventsLimit)

	dst.Server.ListenAddr = env.String(EnvPrefix+"LISTEN", dst.Server.ListenAddr)
	dst.Server.RateLimit = env.Int(EnvPrefix+"RATE_LIMIT", dst.Server.RateLimit)
	dst.Server.ShutdownTimeout = env.Duration(EnvPrefix+"SHUTDOWN_TIMEOUT", dst.Server.ShutdownTimeout)

	dst.Telemetry.Enabled = env.Bool(EnvPrefix+"OTEL_ENABLED", dst.Telemetry.Enabled)
	dst.Telemetry.Exporter = env.String(EnvPrefix+"OTEL_EXPORTER", dst.Telemetry.Exporter)
	dst.Telemetry.Endpoint = env.String(EnvPrefix+"OTEL_ENDPOINT", dst.Telemetry.Endpoint)
	dst.Telemetry.Environment = env.String(EnvPrefix+"OTEL_ENVIRONMENT", dst.Telemetry.Environment)
	dst.Telemetry.SamplingRate = env.Float(EnvPrefix+"OTEL_SAMPLING_RATE", dst.Telemetry.SamplingRate)
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDur(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
