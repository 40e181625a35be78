// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "time"

const (
	DefaultMinSplashDuration = 600 * time.Millisecond
	DefaultMaxPrefetchWait   = 2500 * time.Millisecond
)

// Config holds the sequencer timing constants. It is fixed for the lifetime
// of a sequencer.
type Config struct {
	// MinSplashDuration is the floor on how long Splash stays visible.
	MinSplashDuration time.Duration
	// MaxPrefetchWait bounds how long the pipeline waits for the prefetch job.
	MaxPrefetchWait time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		MinSplashDuration: DefaultMinSplashDuration,
		MaxPrefetchWait:   DefaultMaxPrefetchWait,
	}
}

// WithDefaults fills zero fields, so a zero MinSplashDuration means the
// 600ms default. A negative value is clamped to zero and disables the floor.
func (c Config) WithDefaults() Config {
	if c.MinSplashDuration == 0 {
		c.MinSplashDuration = DefaultMinSplashDuration
	}
	if c.MaxPrefetchWait == 0 {
		c.MaxPrefetchWait = DefaultMaxPrefetchWait
	}
	if c.MinSplashDuration < 0 {
		c.MinSplashDuration = 0
	}
	if c.MaxPrefetchWait < 0 {
		c.MaxPrefetchWait = 0
	}
	return c
}
