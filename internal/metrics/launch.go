// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	launchTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "society_launch_transitions_total",
		Help: "Published launch state transitions",
	}, []string{"from", "to"})

	launchResolutionSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "society_launch_resolution_seconds",
		Help:    "Time from Splash to the published final state, including the splash floor",
		Buckets: []float64{0.1, 0.25, 0.5, 0.6, 0.75, 1, 1.5, 2, 2.5, 3, 5, 10},
	}, []string{"outcome"})

	launchPrefetch = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "society_launch_prefetch_total",
		Help: "Prefetch race outcomes",
	}, []string{"result"}) // result=ok|failed|timeout|abandoned

	launchSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "society_launch_superseded_total",
		Help: "Resolutions abandoned because a newer one started",
	})

	launchState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "society_launch_state",
		Help: "Current launch state (1 for the active kind, 0 otherwise)",
	}, []string{"kind"})
)

var launchKinds = []string{
	"splash",
	"unauthenticated",
	"onboarding_required",
	"authenticated_ready",
	"account_deleted",
	"account_disabled",
	"error",
}

// RecordLaunchTransition counts a published transition and updates the state gauge.
func RecordLaunchTransition(from, to string) {
	launchTransitions.WithLabelValues(from, to).Inc()
	for _, k := range launchKinds {
		v := 0.0
		if k == to {
			v = 1.0
		}
		launchState.WithLabelValues(k).Set(v)
	}
}

// ObserveLaunchResolution records how long a resolution took to publish its outcome.
func ObserveLaunchResolution(outcome string, d time.Duration) {
	launchResolutionSeconds.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordLaunchPrefetch counts a prefetch race outcome.
func RecordLaunchPrefetch(result string) {
	launchPrefetch.WithLabelValues(result).Inc()
}

// RecordLaunchSuperseded counts a resolution that was abandoned.
func RecordLaunchSuperseded() {
	launchSuperseded.Inc()
}
