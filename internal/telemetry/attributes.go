// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by every span the daemon emits.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	LaunchGenerationKey      = "launch.generation"
	LaunchStateKey           = "launch.state"
	LaunchAbandonedKey       = "launch.abandoned"
	LaunchPrefetchTimeoutKey = "launch.prefetch_timeout"

	SupabaseAPIKey = "supabase.api"

	PrefetchResourceKey = "prefetch.resource"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes describes an outgoing or incoming request. A zero status
// is omitted.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
	if statusCode != 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, statusCode))
	}
	return attrs
}

// LaunchAttributes tags a resolution span with its generation and, once
// known, the state it produced.
func LaunchAttributes(generation uint64, state string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int64(LaunchGenerationKey, int64(generation))}
	if state != "" {
		attrs = append(attrs, attribute.String(LaunchStateKey, state))
	}
	return attrs
}

// SupabaseAttributes tags a backend call.
func SupabaseAttributes(api, method, path string) []attribute.KeyValue {
	return append([]attribute.KeyValue{attribute.String(SupabaseAPIKey, api)}, HTTPAttributes(method, path, 0)...)
}

// ErrorAttributes classifies a failure. errorType is usually "unauthorized"
// or "transient".
func ErrorAttributes(err error, errorType string) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(ErrorKey, err.Error()),
		attribute.String(ErrorTypeKey, errorType),
	}
}
