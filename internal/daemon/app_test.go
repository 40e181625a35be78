// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/society/internal/config"
)

// fakeSupabase answers the auth and PostgREST calls the daemon makes.
type fakeSupabase struct {
	userID  uuid.UUID
	logouts atomic.Int32
}

func (f *fakeSupabase) accessToken(t *testing.T) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   f.userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func (f *fakeSupabase) handler(t *testing.T) http.Handler {
	token := f.accessToken(t)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter2" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  token,
			"token_type":    "bearer",
			"expires_in":    3600,
			"expires_at":    time.Now().Add(time.Hour).Unix(),
			"refresh_token": "refresh-1",
			"user":          map[string]any{"id": f.userID.String(), "email": "ada@example.com", "role": "authenticated"},
		})
	})
	mux.HandleFunc("POST /auth/v1/logout", func(w http.ResponseWriter, _ *http.Request) {
		f.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /rest/v1/profiles", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"is_active":true,"deleted_at":null,"onboarding_completed":true}]`)
	})
	for _, table := range []string{"events", "categories", "rsvps"} {
		mux.HandleFunc("GET /rest/v1/"+table, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `[]`)
		})
	}
	return mux
}

func testConfig(t *testing.T, supabaseURL string) config.AppConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.Version = "test"
	cfg.LogLevel = "error"
	cfg.DataDir = t.TempDir()
	cfg.Supabase.URL = supabaseURL
	cfg.Supabase.AnonKey = "anon"
	cfg.Launch.MinSplash = 10 * time.Millisecond
	cfg.Launch.MaxPrefetchWait = 500 * time.Millisecond
	cfg.Server.ListenAddr = "127.0.0.1:0"
	cfg.Server.RateLimit = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second
	return cfg
}

// launchKind runs inside Eventually, so it reports failures as "".
func launchKind(base string) string {
	resp, err := http.Get(base + "/api/v1/launch")
	if err != nil {
		return ""
	}
	defer func() { _ = resp.Body.Close() }()
	var body struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return ""
	}
	return body.Kind
}

func TestAppSignInReachesReady(t *testing.T) {
	fake := &fakeSupabase{userID: uuid.New()}
	upstream := httptest.NewServer(fake.handler(t))
	t.Cleanup(upstream.Close)

	app, err := New(context.Background(), testConfig(t, upstream.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("app did not stop")
		}
	})

	select {
	case <-app.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("control API never came up")
	}
	base := "http://" + app.Addr().String()

	require.Eventually(t, func() bool { return launchKind(base) == "unauthenticated" },
		3*time.Second, 20*time.Millisecond)

	resp, err := http.Post(base+"/api/v1/session/sign-in", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"wrong"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(base+"/api/v1/session/sign-in", "application/json",
		strings.NewReader(`{"email":"ada@example.com","password":"hunter2"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool { return launchKind(base) == "authenticated_ready" },
		3*time.Second, 20*time.Millisecond)

	resp, err = http.Get(base + "/api/v1/prefetch/events")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body))

	resp, err = http.Post(base+"/api/v1/session/sign-out", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.Eventually(t, func() bool { return launchKind(base) == "unauthenticated" },
		3*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(1), fake.logouts.Load())
}

func TestNewRejectsUnknownCacheBackend(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Cache.Backend = "memcached"
	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "unknown cache backend")
}

func TestAppStopsWhenListenFails(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.Server.ListenAddr = "127.0.0.1:notaport"
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()
	select {
	case err := <-done:
		require.ErrorContains(t, err, "listen")
	case <-time.After(5 * time.Second):
		t.Fatal("app kept running without a listener")
	}
}

func TestAppReadiness(t *testing.T) {
	fake := &fakeSupabase{userID: uuid.New()}
	upstream := httptest.NewServer(fake.handler(t))
	t.Cleanup(upstream.Close)

	app, err := New(context.Background(), testConfig(t, upstream.URL))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	<-app.Ready()

	resp, err := http.Get("http://" + app.Addr().String() + "/readyz?verbose=true")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Ready  bool                      `json:"ready"`
		Checks map[string]map[string]any `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Ready)
	assert.Contains(t, body.Checks, "launch")
	assert.Contains(t, body.Checks, "supabase")
	assert.Contains(t, body.Checks, "data_dir")
}
