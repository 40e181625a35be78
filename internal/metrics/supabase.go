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
	supabaseRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "society_supabase_requests_total",
		Help: "Supabase REST requests by API surface and status class",
	}, []string{"api", "status"}) // api=auth|rest|rpc, status=2xx|4xx|5xx|error|circuit_open

	supabaseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "society_supabase_request_seconds",
		Help:    "Supabase REST request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"api"})
)

// RecordSupabaseRequest records one request outcome and its latency.
func RecordSupabaseRequest(api, status string, d time.Duration) {
	supabaseRequests.WithLabelValues(api, status).Inc()
	if d > 0 {
		supabaseLatency.WithLabelValues(api).Observe(d.Seconds())
	}
}
