// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Breakers guard calls to the hosted backend (auth, profiles, prefetch
// reads). "backend" is the breaker name passed to resilience.NewCircuitBreaker.
var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "society_backend_breaker_state",
		Help: "Backend breaker state; the active state reads 1. Open means backend calls fail fast without a network round trip.",
	}, []string{"backend", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "society_backend_breaker_trips_total",
		Help: "Backend breaker openings by reason (threshold_exceeded, half_open_failure).",
	}, []string{"backend", "reason"})
)

var breakerStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState marks state as the active one for the named backend
// and zeroes the others, so a single series per backend reads 1.
func SetCircuitBreakerState(backend, state string) {
	for _, s := range breakerStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(backend, s).Set(value)
	}
}

func RecordCircuitBreakerTrip(backend, reason string) {
	circuitBreakerTrips.WithLabelValues(backend, reason).Inc()
}
