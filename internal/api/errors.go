// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/society/internal/admin"
	"github.com/ManuGH/society/internal/domain/launch/ports"
	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/resilience"
	"github.com/ManuGH/society/internal/session"
	"github.com/ManuGH/society/internal/supabase"
)

// Error codes returned in the "error" field.
const (
	codeBadRequest         = "bad_request"
	codeInvalidCredentials = "invalid_credentials"
	codeUnauthorized       = "unauthorized"
	codeForbidden          = "forbidden"
	codeNotFound           = "not_found"
	codeUnavailable        = "upstream_unavailable"
	codeUpstream           = "upstream_error"
	codeInternal           = "internal_error"
)

type problem struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, problem{Error: code, Detail: detail})
}

// writeUpstreamError maps adapter failures to a status and code. Unexpected
// errors are logged with the request context.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *supabase.Error
	switch {
	case errors.Is(err, session.ErrNoSession), ports.IsUnauthorized(err):
		writeProblem(w, http.StatusUnauthorized, codeUnauthorized, "sign in required")
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden:
		writeProblem(w, http.StatusForbidden, codeForbidden, apiErr.Message)
	case errors.Is(err, resilience.ErrCircuitOpen):
		writeProblem(w, http.StatusServiceUnavailable, codeUnavailable, "backend temporarily unavailable")
	case errors.Is(err, admin.ErrMalformed):
		writeProblem(w, http.StatusBadGateway, codeUpstream, err.Error())
	case errors.As(err, &apiErr):
		writeProblem(w, http.StatusBadGateway, codeUpstream, apiErr.Error())
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.upstream_error").
			Str("path", r.URL.Path).
			Msg("request failed")
		writeProblem(w, http.StatusBadGateway, codeUpstream, "backend request failed")
	}
}
