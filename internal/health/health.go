// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package health implements the daemon's readiness probe.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/society/internal/log"
)

// Status is the outcome of one check or of the probe as a whole.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const defaultCheckTimeout = 2 * time.Second

// CheckResult is what a single check reports.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadinessResponse is the body of the readiness probe.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one readiness component.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version string
	timeout time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: defaultCheckTimeout, now: time.Now}
}

// Register adds checkers. Names should be unique; a later one with the same
// name overwrites the earlier result.
func (m *Manager) Register(c ...Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c...)
}

// Ready runs every checker concurrently, each bounded by the check timeout.
// Any unhealthy check makes the daemon not ready; degraded ones do not.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: m.now().UTC(),
	}
	if len(checkers) == 0 {
		return resp
	}

	results := make([]CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			results[i] = c.Check(cctx)
		}()
	}
	wg.Wait()

	resp.Checks = make(map[string]CheckResult, len(checkers))
	for i, c := range checkers {
		r := results[i]
		resp.Checks[c.Name()] = r
		switch r.Status {
		case StatusUnhealthy:
			resp.Ready = false
			resp.Status = StatusUnhealthy
		case StatusDegraded:
			if resp.Status == StatusHealthy {
				resp.Status = StatusDegraded
			}
		}
	}
	return resp
}

// ServeReady answers 200 when ready and 503 otherwise. Check details are
// only included with ?verbose=true.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	resp := m.Ready(r.Context())

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
		logger.Warn().
			Str(log.FieldEvent, "readiness.failed").
			Interface("checks", resp.Checks).
			Msg("daemon not ready")
	}
	if r.URL.Query().Get("verbose") != "true" {
		resp.Checks = nil
	}
	writeJSON(w, status, resp)
}
