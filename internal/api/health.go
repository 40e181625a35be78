// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ManuGH/society/internal/cache"
	"github.com/ManuGH/society/internal/prefetch"
)

type healthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Uptime  string       `json:"uptime"`
	Launch  string       `json:"launch"`
	Cache   *cache.Stats `json:"cache,omitempty"`
}

// handleHealth reports liveness. The launch state is informational; any
// state, including errors, is a healthy daemon.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Launch:  s.deps.Launcher.State().String(),
	}
	if s.deps.Cache != nil {
		st := s.deps.Cache.Stats(r.Context())
		resp.Cache = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Readiness == nil {
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
		return
	}
	s.deps.Readiness.ServeHTTP(w, r)
}

var prefetchResources = []string{prefetch.ResourceEvents, prefetch.ResourceCategories, prefetch.ResourceRSVPs}

// handlePrefetched serves a warmed resource for the signed-in user straight
// from the cache. A miss answers 404; callers fall back to the backend.
func (s *Server) handlePrefetched(w http.ResponseWriter, r *http.Request) {
	resource := chi.URLParam(r, "resource")
	if s.deps.Prefetched == nil || !slices.Contains(prefetchResources, resource) {
		writeProblem(w, http.StatusNotFound, codeNotFound, "unknown resource")
		return
	}
	sess, err := s.deps.Sessions.CurrentSession(r.Context())
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}
	if sess == nil || sess.UserID == uuid.Nil {
		writeProblem(w, http.StatusUnauthorized, codeUnauthorized, "sign in required")
		return
	}

	body, ok := s.deps.Prefetched.Cached(r.Context(), sess.UserID, resource)
	if !ok {
		writeProblem(w, http.StatusNotFound, codeNotFound, "resource not prefetched")
		return
	}
	if at, ok := s.deps.Prefetched.WarmedAt(sess.UserID); ok {
		w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
