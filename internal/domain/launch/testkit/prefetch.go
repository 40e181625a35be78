// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// StepperPrefetch is a ports.PrefetchJob that blocks until released, its
// delay elapses, or its context is cancelled.
type StepperPrefetch struct {
	delay time.Duration
	err   error

	started     chan struct{}
	release     chan struct{}
	finished    chan error
	startOnce   sync.Once
	releaseOnce sync.Once
	calls       atomic.Int32
	cancelled   atomic.Bool
}

// NewStepperPrefetch returns a job that waits for delay (0 means wait for
// Release) and then returns err.
func NewStepperPrefetch(delay time.Duration, err error) *StepperPrefetch {
	return &StepperPrefetch{
		delay:    delay,
		err:      err,
		started:  make(chan struct{}),
		release:  make(chan struct{}),
		finished: make(chan error, 64),
	}
}

// Instant returns a job that completes immediately with err.
func Instant(err error) *StepperPrefetch {
	p := NewStepperPrefetch(0, err)
	p.Release()
	return p
}

func (p *StepperPrefetch) Run(ctx context.Context, userID uuid.UUID) error {
	p.calls.Add(1)
	p.startOnce.Do(func() { close(p.started) })

	var timer <-chan time.Time
	if p.delay > 0 {
		t := time.NewTimer(p.delay)
		defer t.Stop()
		timer = t.C
	}

	var err error
	select {
	case <-p.release:
		err = p.err
	case <-timer:
		err = p.err
	case <-ctx.Done():
		p.cancelled.Store(true)
		err = ctx.Err()
	}
	p.finished <- err
	return err
}

// Release lets blocked and future runs complete.
func (p *StepperPrefetch) Release() {
	p.releaseOnce.Do(func() { close(p.release) })
}

// Started is closed when the first run begins.
func (p *StepperPrefetch) Started() <-chan struct{} { return p.started }

// Finished receives the result of every completed run.
func (p *StepperPrefetch) Finished() <-chan error { return p.finished }

// Calls returns the number of runs.
func (p *StepperPrefetch) Calls() int { return int(p.calls.Load()) }

// Cancelled reports whether any run observed context cancellation.
func (p *StepperPrefetch) Cancelled() bool { return p.cancelled.Load() }

// CountingClearer is a ports.StateClearer that counts calls.
type CountingClearer struct {
	calls atomic.Int32
	err   error
}

// NewCountingClearer returns a clearer that returns err.
func NewCountingClearer(err error) *CountingClearer {
	return &CountingClearer{err: err}
}

func (c *CountingClearer) ClearUserState(ctx context.Context) error {
	c.calls.Add(1)
	return c.err
}

// Calls returns the number of ClearUserState calls.
func (c *CountingClearer) Calls() int { return int(c.calls.Load()) }
