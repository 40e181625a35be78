// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the daemon configuration from defaults, an optional
// YAML file and SOCIETY_* environment variables.
package config

import "time"

// AppConfig is the resolved runtime configuration.
type AppConfig struct {
	Version  string
	LogLevel string
	DataDir  string

	Launch    LaunchConfig
	Supabase  SupabaseConfig
	Session   SessionConfig
	Cache     CacheConfig
	Prefetch  PrefetchConfig
	Server    ServerConfig
	Telemetry TelemetryConfig
}

// LaunchConfig holds the sequencer timings.
type LaunchConfig struct {
	// MinSplash must be positive; the sequencer treats zero as its default.
	MinSplash       time.Duration
	MaxPrefetchWait time.Duration
}

// SupabaseConfig describes the backend project.
type SupabaseConfig struct {
	URL               string
	AnonKey           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

type SessionConfig struct {
	ExpirySkew time.Duration
	// WatchDebounce coalesces bursts of writes to the token file.
	WatchDebounce time.Duration
}

// CacheConfig selects and tunes the prefetch cache backend.
type CacheConfig struct {
	Backend         string
	TTL             time.Duration
	CleanupInterval time.Duration
	Redis           RedisConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PrefetchConfig struct {
	EventsLimit int
}

// ServerConfig configures the local control API.
type ServerConfig struct {
	ListenAddr      string
	RateLimit       int // requests per minute per client IP
	ShutdownTimeout time.Duration
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	Environment  string
	SamplingRate float64
}

// FileConfig mirrors the YAML layout. Pointer fields distinguish an explicit
// zero from an omitted key.
type FileConfig struct {
	LogLevel string `yaml:"logLevel,omitempty"`
	DataDir  string `yaml:"dataDir,omitempty"`

	Launch    *LaunchFileConfig    `yaml:"launch,omitempty"`
	Supabase  *SupabaseFileConfig  `yaml:"supabase,omitempty"`
	Session   *SessionFileConfig   `yaml:"session,omitempty"`
	Cache     *CacheFileConfig     `yaml:"cache,omitempty"`
	Prefetch  *PrefetchFileConfig  `yaml:"prefetch,omitempty"`
	Server    *ServerFileConfig    `yaml:"server,omitempty"`
	Telemetry *TelemetryFileConfig `yaml:"telemetry,omitempty"`
}

type LaunchFileConfig struct {
	MinSplash       *time.Duration `yaml:"minSplash,omitempty"`
	MaxPrefetchWait *time.Duration `yaml:"maxPrefetchWait,omitempty"`
}

type SupabaseFileConfig struct {
	URL               string         `yaml:"url,omitempty"`
	AnonKey           string         `yaml:"anonKey,omitempty"`
	Timeout           *time.Duration `yaml:"timeout,omitempty"`
	RequestsPerSecond *float64       `yaml:"requestsPerSecond,omitempty"`
	Burst             *int           `yaml:"burst,omitempty"`
}

type SessionFileConfig struct {
	ExpirySkew    *time.Duration `yaml:"expirySkew,omitempty"`
	WatchDebounce *time.Duration `yaml:"watchDebounce,omitempty"`
}

type CacheFileConfig struct {
	Backend         string           `yaml:"backend,omitempty"`
	TTL             *time.Duration   `yaml:"ttl,omitempty"`
	CleanupInterval *time.Duration   `yaml:"cleanupInterval,omitempty"`
	Redis           *RedisFileConfig `yaml:"redis,omitempty"`
}

type RedisFileConfig struct {
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       *int   `yaml:"db,omitempty"`
}

type PrefetchFileConfig struct {
	EventsLimit *int `yaml:"eventsLimit,omitempty"`
}

type ServerFileConfig struct {
	ListenAddr      string         `yaml:"listenAddr,omitempty"`
	RateLimit       *int           `yaml:"rateLimit,omitempty"`
	ShutdownTimeout *time.Duration `yaml:"shutdownTimeout,omitempty"`
}

type TelemetryFileConfig struct {
	Enabled      *bool    `yaml:"enabled,omitempty"`
	Exporter     string   `yaml:"exporter,omitempty"`
	Endpoint     string   `yaml:"endpoint,omitempty"`
	Environment  string   `yaml:"environment,omitempty"`
	SamplingRate *float64 `yaml:"samplingRate,omitempty"`
}
