// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prefetchResources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "society_prefetch_resources_total",
		Help: "Prefetched resources by name and outcome",
	}, []string{"resource", "outcome"}) // outcome=ok|failed|cache_failed|discarded

	cacheClears = promauto.NewCounter(prometheus.CounterOpts{
		Name: "society_cache_user_clears_total",
		Help: "Per-user cache clears triggered by sign-out",
	})
)

// RecordPrefetchResource counts one prefetched resource outcome.
func RecordPrefetchResource(resource, outcome string) {
	prefetchResources.WithLabelValues(resource, outcome).Inc()
}

// RecordCacheUserClear counts a per-user cache clear.
func RecordCacheUserClear() {
	cacheClears.Inc()
}
