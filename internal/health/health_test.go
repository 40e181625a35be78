// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/resilience"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func fixed(name string, s Status) Checker {
	return NewCheckFunc(name, func(context.Context) CheckResult { return CheckResult{Status: s} })
}

func TestReadyNoCheckers(t *testing.T) {
	resp := NewManager("v1").Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Nil(t, resp.Checks)
}

func TestReadyAggregation(t *testing.T) {
	tests := []struct {
		name      string
		checks    []Status
		wantReady bool
		want      Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, true, StatusHealthy},
		{"degraded stays ready", []Status{StatusHealthy, StatusDegraded}, true, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1")
			for i, s := range tt.checks {
				m.Register(fixed(string(rune('a'+i)), s))
			}
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestReadyBoundsSlowChecks(t *testing.T) {
	m := NewManager("v1")
	m.timeout = 20 * time.Millisecond
	m.Register(PingCheck("redis", pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	start := time.Now()
	resp := m.Ready(context.Background())
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, resp.Ready)
	assert.Contains(t, resp.Checks["redis"].Error, "deadline exceeded")
}

func TestServeReady(t *testing.T) {
	m := NewManager("v1")
	m.Register(fixed("supabase", StatusUnhealthy))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Ready)
	assert.Nil(t, body.Checks, "details only when verbose")

	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz?verbose=true", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, StatusUnhealthy, body.Checks["supabase"].Status)
}

func TestLaunchCheck(t *testing.T) {
	tests := []struct {
		state model.State
		want  Status
	}{
		{model.Splash(), StatusDegraded},
		{model.Failed("offline"), StatusDegraded},
		{model.Unauthenticated(), StatusHealthy},
		{model.AuthenticatedReady(), StatusHealthy},
		{model.AccountDisabled(model.DisabledReason), StatusHealthy},
	}
	for _, tt := range tests {
		c := LaunchCheck(func() model.State { return tt.state })
		assert.Equal(t, tt.want, c.Check(context.Background()).Status, tt.state.String())
	}
}

func TestBreakerCheck(t *testing.T) {
	for state, want := range map[resilience.State]Status{
		resilience.StateClosed:   StatusHealthy,
		resilience.StateHalfOpen: StatusDegraded,
		resilience.StateOpen:     StatusUnhealthy,
	} {
		c := BreakerCheck("supabase", func() resilience.State { return state })
		assert.Equal(t, want, c.Check(context.Background()).Status, string(state))
	}
}

func TestPingCheck(t *testing.T) {
	ok := PingCheck("cache", pingFunc(func(context.Context) error { return nil }))
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	down := PingCheck("cache", pingFunc(func(context.Context) error { return errors.New("connection refused") }))
	res := down.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "connection refused", res.Error)
}

func TestDirCheckAndStartup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, PerformStartupChecks(dir))
	assert.Equal(t, StatusHealthy, DirCheck("data_dir", dir).Check(context.Background()).Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write probe cleans up")

	file := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Equal(t, StatusUnhealthy, DirCheck("data_dir", file).Check(context.Background()).Status)
	assert.Error(t, PerformStartupChecks(file))
}
