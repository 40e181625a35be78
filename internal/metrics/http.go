// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "society_http_request_duration_seconds",
		Help:    "Control API request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "society_http_requests_in_flight",
		Help: "Control API requests currently being served",
	})

	launchStreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "society_launch_stream_subscribers",
		Help: "Open launch state event streams",
	})
)

// ObserveHTTPRequest records one finished control API request. route is the
// chi route pattern, never the raw path.
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// TrackHTTPInFlight increments the in-flight gauge and returns the matching
// decrement.
func TrackHTTPInFlight() func() {
	httpRequestsInFlight.Inc()
	return httpRequestsInFlight.Dec
}

// TrackLaunchStream counts an open event stream until the returned func runs.
func TrackLaunchStream() func() {
	launchStreamSubscribers.Inc()
	return launchStreamSubscribers.Dec
}
