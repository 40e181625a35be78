// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"strconv"

	"github.com/ManuGH/society/internal/admin"
)

// dashboardToken returns the access token for a dashboard call, writing the
// error response itself when there is none.
func (s *Server) dashboardToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.deps.Dashboard == nil {
		writeProblem(w, http.StatusNotFound, codeNotFound, "dashboard is not configured")
		return "", false
	}
	token, err := s.deps.Sessions.AccessToken(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return "", false
	}
	return token, true
}

func parsePage(r *http.Request) (admin.Page, error) {
	var page admin.Page
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, errBadParam("limit")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, errBadParam("offset")
		}
		page.Offset = n
	}
	return page, nil
}

type errBadParam string

func (e errBadParam) Error() string { return "invalid " + string(e) + " parameter" }

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	token, ok := s.dashboardToken(w, r)
	if !ok {
		return
	}
	stats, err := s.deps.Dashboard.Stats(r.Context(), token)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	token, ok := s.dashboardToken(w, r)
	if !ok {
		return
	}
	users, err := s.deps.Dashboard.Users(r.Context(), token, page)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleAdminEvents(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	token, ok := s.dashboardToken(w, r)
	if !ok {
		return
	}
	events, err := s.deps.Dashboard.Events(r.Context(), token, page)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
