// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/resilience"
)

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func NewCheckFunc(name string, fn func(ctx context.Context) CheckResult) CheckFunc {
	return CheckFunc{name: name, fn: fn}
}

func (c CheckFunc) Name() string                          { return c.name }
func (c CheckFunc) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// LaunchCheck reports the launch sequencer. Splash means a resolution is
// still running; the error state means the last one failed and is waiting
// for a retry. Neither makes the daemon unready.
func LaunchCheck(state func() model.State) Checker {
	return NewCheckFunc("launch", func(context.Context) CheckResult {
		st := state()
		switch st.Kind {
		case model.KindSplash:
			return CheckResult{Status: StatusDegraded, Message: "resolving"}
		case model.KindError:
			return CheckResult{Status: StatusDegraded, Message: st.String()}
		}
		return CheckResult{Status: StatusHealthy, Message: st.String()}
	})
}

// BreakerCheck reports a circuit breaker. An open breaker means the backend
// is treated as down.
func BreakerCheck(name string, state func() resilience.State) Checker {
	return NewCheckFunc(name, func(context.Context) CheckResult {
		switch s := state(); s {
		case resilience.StateOpen:
			return CheckResult{Status: StatusUnhealthy, Message: "circuit " + string(s)}
		case resilience.StateHalfOpen:
			return CheckResult{Status: StatusDegraded, Message: "circuit " + string(s)}
		default:
			return CheckResult{Status: StatusHealthy, Message: "circuit " + string(s)}
		}
	})
}

// Pinger is a backend that can verify its connection.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingCheck reports whether p answers.
func PingCheck(name string, p Pinger) Checker {
	return NewCheckFunc(name, func(ctx context.Context) CheckResult {
		if err := p.HealthCheck(ctx); err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}
		return CheckResult{Status: StatusHealthy}
	})
}

// DirCheck reports whether path is a writable directory.
func DirCheck(name, path string) Checker {
	return NewCheckFunc(name, func(context.Context) CheckResult {
		if err := checkWritableDir(path); err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
		}
		return CheckResult{Status: StatusHealthy, Message: path}
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
