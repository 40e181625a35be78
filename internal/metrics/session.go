// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionRefresh = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "society_session_refresh_total",
		Help: "Session token refresh attempts by outcome",
	}, []string{"outcome"}) // outcome=refreshed|skipped|rejected|failed

	sessionIdentityChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "society_session_identity_changes_total",
		Help: "Identity change notifications emitted by the session provider",
	}, []string{"kind"}) // kind=signed_in|signed_out|switched
)

// RecordSessionRefresh counts a refresh attempt.
func RecordSessionRefresh(outcome string) {
	sessionRefresh.WithLabelValues(outcome).Inc()
}

// RecordIdentityChange counts an emitted identity change.
func RecordIdentityChange(kind string) {
	sessionIdentityChanges.WithLabelValues(kind).Inc()
}
