// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/metrics"
)

type launchResponse struct {
	model.State
	Terminal bool `json:"terminal"`
}

func launchBody(st model.State) launchResponse {
	return launchResponse{State: st, Terminal: st.IsTerminal()}
}

func (s *Server) handleLaunchState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, launchBody(s.deps.Launcher.State()))
}

// handleLaunchRetry starts a new resolution and answers immediately with the
// Splash state it published.
func (s *Server) handleLaunchRetry(w http.ResponseWriter, _ *http.Request) {
	s.deps.Launcher.Retry()
	writeJSON(w, http.StatusAccepted, launchBody(s.deps.Launcher.State()))
}

// handleLaunchValidate re-checks a ready account and returns the state
// afterwards.
func (s *Server) handleLaunchValidate(w http.ResponseWriter, r *http.Request) {
	s.deps.Launcher.ValidateAccountStatus(r.Context())
	writeJSON(w, http.StatusOK, launchBody(s.deps.Launcher.State()))
}

// handleOnboardingComplete blocks until the post-onboarding prefetch race
// settles, bounded by the sequencer's prefetch deadline.
func (s *Server) handleOnboardingComplete(w http.ResponseWriter, r *http.Request) {
	s.deps.Launcher.HandleOnboardingCompleted(r.Context())
	writeJSON(w, http.StatusOK, launchBody(s.deps.Launcher.State()))
}

// handleLaunchStream sends every published state as a Server-Sent Event. The
// first event is the current state. Idle streams get a comment line every
// KeepAlive so proxies keep the connection open.
func (s *Server) handleLaunchStream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	states, unsubscribe := s.deps.Launcher.Subscribe()
	defer unsubscribe()
	defer metrics.TrackLaunchStream()()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "api.stream_unsupported").
			Msg("response writer cannot flush, closing stream")
		return
	}

	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	var id uint64
	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-states:
			if !ok {
				_, _ = fmt.Fprint(w, "event: close\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			id++
			if err := writeEvent(w, id, st); err != nil {
				return
			}
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, id uint64, st model.State) error {
	data, err := json.Marshal(launchBody(st))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", id, data)
	return err
}
