// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/society/internal/log"
)

// AccessLog logs one line per request after it completes. Server errors log
// at warn and client errors at info.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrap(w)
		next.ServeHTTP(sw, r)

		logger := log.WithComponentFromContext(r.Context(), "api")
		var ev *zerolog.Event
		switch status := sw.code(); {
		case status >= 500:
			ev = logger.Warn()
		case status >= 400:
			ev = logger.Info()
		default:
			ev = logger.Debug()
		}
		traceID, _ := TraceIDs(r)
		ev.Str(log.FieldEvent, "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int(log.FieldStatus, sw.code()).
			Int("bytes", sw.bytes).
			Dur(log.FieldDuration, time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Str("trace_id", traceID).
			Msg("request completed")
	})
}
