// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/supabase"
)

const maxCredentialsBody = 8 << 10

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	SignedIn bool   `json:"signed_in"`
	UserID   string `json:"user_id,omitempty"`
	Expired  bool   `json:"expired,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.CurrentSession(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if sess == nil {
		writeJSON(w, http.StatusOK, sessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: true, UserID: sess.UserID.String(), Expired: sess.Expired})
}

// handleSignIn exchanges email and password for a session. The sequencer
// picks the new identity up through its session watch.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCredentialsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeProblem(w, http.StatusBadRequest, codeBadRequest, "email and password are required")
		return
	}

	userID, err := s.deps.Sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		var apiErr *supabase.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Info().
				Str(log.FieldEvent, "api.sign_in_rejected").
				Int(log.FieldStatus, apiErr.StatusCode).
				Msg("sign-in rejected")
			writeProblem(w, http.StatusUnauthorized, codeInvalidCredentials, apiErr.Message)
			return
		}
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SignedIn: true, UserID: userID.String()})
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Sessions.SignOut(r.Context()); err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
