// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockClock struct {
	now time.Time
}

func (m *mockClock) Now() time.Time { return m.now }

var errBackend = errors.New("503 service unavailable")

func fail(context.Context) error    { return errBackend }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 3, 10*time.Second, WithClock(clock))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Do(ctx, fail), errBackend)
	}
	assert.Equal(t, StateClosed, cb.State())

	assert.ErrorIs(t, cb.Do(ctx, fail), errBackend)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsStreak(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Second)
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	require.NoError(t, cb.Do(ctx, succeed))
	_ = cb.Do(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.now = clock.now.Add(11 * time.Second)

	// While the probe is in flight, other callers are rejected.
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Do(ctx, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	assert.Equal(t, StateHalfOpen, cb.State())
	assert.ErrorIs(t, cb.Do(ctx, succeed), ErrCircuitOpen)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	clock := &mockClock{now: time.Now()}
	cb := NewCircuitBreaker("test", 1, 10*time.Second, WithClock(clock))
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	clock.now = clock.now.Add(11 * time.Second)
	_ = cb.Do(ctx, fail)
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Do(ctx, succeed), ErrCircuitOpen)
}

func TestCircuitBreaker_FailurePredicate(t *testing.T) {
	errClient := errors.New("400 bad request")
	cb := NewCircuitBreaker("test", 1, time.Second, WithFailurePredicate(func(err error) bool {
		return !errors.Is(err, errClient)
	}))

	err := cb.Do(context.Background(), func(context.Context) error { return errClient })
	assert.ErrorIs(t, err, errClient)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CallerCancellationIgnored(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}
