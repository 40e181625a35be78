// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvPrefix is shared by every environment key the loader reads.
const EnvPrefix = "SOCIETY_"

// envSource reads environment values and logs where each setting came from.
// Invalid values fall back to the current setting with a warning.
type envSource struct {
	lookup func(string) (string, bool)
	logger zerolog.Logger
	seen   map[string]struct{}
}

func (e *envSource) raw(key string) (string, bool) {
	e.seen[key] = struct{}{}
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envSource) String(key, current string) string {
	v, ok := e.raw(key)
	if !ok {
		return current
	}
	ev := e.logger.Debug().Str("key", key).Str("source", "environment")
	if isSensitiveKey(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

func (e *envSource) Int(key string, current int) int {
	v, ok := e.raw(key)
	if !ok {
		return current
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.logger.Warn().Str("key", key).Str("value", v).Int("current", current).
			Msg("invalid integer in environment variable, ignoring")
		return current
	}
	e.logger.Debug().Str("key", key).Int("value", i).Str("source", "environment").Msg("using environment variable")
	return i
}

func (e *envSource) Float(key string, current float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return current
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.logger.Warn().Str("key", key).Str("value", v).Float64("current", current).
			Msg("invalid float in environment variable, ignoring")
		return current
	}
	e.logger.Debug().Str("key", key).Float64("value", f).Str("source", "environment").Msg("using environment variable")
	return f
}

func (e *envSource) Duration(key string, current time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return current
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.logger.Warn().Str("key", key).Str("value", v).Dur("current", current).
			Msg("invalid duration in environment variable, ignoring")
		return current
	}
	e.logger.Debug().Str("key", key).Dur("value", d).Str("source", "environment").Msg("using environment variable")
	return d
}

// Bool accepts true/false, 1/0 and yes/no in any case.
func (e *envSource) Bool(key string, current bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return current
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	e.logger.Warn().Str("key", key).Str("value", v).Bool("current", current).
		Msg("invalid boolean in environment variable, ignoring")
	return current
}

// UnknownEnvKeys lists SOCIETY_* variables present in environ that no
// setting consumed. Typos would otherwise be silently ignored.
func UnknownEnvKeys(environ []string, consumed map[string]struct{}) []string {
	var unknown []string
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := consumed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown
}

func osEnviron() []string { return os.Environ() }
