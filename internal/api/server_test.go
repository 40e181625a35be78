// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/society/internal/admin"
	"github.com/ManuGH/society/internal/cache"
	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/domain/launch/sequencer"
	"github.com/ManuGH/society/internal/domain/launch/testkit"
	"github.com/ManuGH/society/internal/resilience"
	"github.com/ManuGH/society/internal/session"
	"github.com/ManuGH/society/internal/supabase"
)

type fakeLauncher struct {
	mu          sync.Mutex
	state       model.State
	retries     int
	validations int
	onboarded   int
}

func (f *fakeLauncher) State() model.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeLauncher) Subscribe() (<-chan model.State, func()) {
	ch := make(chan model.State, 1)
	ch <- f.State()
	return ch, func() {}
}

func (f *fakeLauncher) Retry() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retries++
	f.state = model.Splash()
}

func (f *fakeLauncher) ValidateAccountStatus(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validations++
	f.state = model.AccountDisabled(model.DisabledReason)
}

func (f *fakeLauncher) HandleOnboardingCompleted(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onboarded++
	f.state = model.AuthenticatedReady()
}

type fakeSessions struct {
	session   *model.Session
	token     string
	signInErr error
	signedIn  uuid.UUID
	gotEmail  string
	signOuts  int
}

func (f *fakeSessions) CurrentSession(context.Context) (*model.Session, error) {
	return f.session, nil
}

func (f *fakeSessions) AccessToken(context.Context) (string, error) {
	if f.token == "" {
		return "", session.ErrNoSession
	}
	return f.token, nil
}

func (f *fakeSessions) SignIn(_ context.Context, email, _ string) (uuid.UUID, error) {
	f.gotEmail = email
	if f.signInErr != nil {
		return uuid.Nil, f.signInErr
	}
	return f.signedIn, nil
}

func (f *fakeSessions) SignOut(context.Context) error {
	f.signOuts++
	return nil
}

type fakeDashboard struct {
	err      error
	gotToken string
	gotPage  admin.Page
}

func (f *fakeDashboard) Stats(_ context.Context, token string) (*admin.Stats, error) {
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return &admin.Stats{TotalUsers: 10, ActiveUsers: 8, DisabledUsers: 2}, nil
}

func (f *fakeDashboard) Users(_ context.Context, token string, page admin.Page) ([]admin.User, error) {
	f.gotToken, f.gotPage = token, page
	return []admin.User{{ID: "u1", IsActive: true}}, f.err
}

func (f *fakeDashboard) Events(_ context.Context, token string, page admin.Page) ([]admin.Event, error) {
	f.gotToken, f.gotPage = token, page
	return []admin.Event{{ID: "e1", Title: "Picnic"}}, f.err
}

type fakePrefetched struct {
	data map[string][]byte
	at   time.Time
}

func (f *fakePrefetched) Cached(_ context.Context, userID uuid.UUID, resource string) ([]byte, bool) {
	b, ok := f.data[userID.String()+"/"+resource]
	return b, ok
}

func (f *fakePrefetched) WarmedAt(uuid.UUID) (time.Time, bool) { return f.at, !f.at.IsZero() }

func serve(t *testing.T, deps Deps) http.Handler {
	t.Helper()
	if deps.Launcher == nil {
		deps.Launcher = &fakeLauncher{state: model.Splash()}
	}
	if deps.Sessions == nil {
		deps.Sessions = &fakeSessions{}
	}
	return New(deps, Config{Version: "test", KeepAlive: 20 * time.Millisecond}).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, rdr))

	var decoded any
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), "body: %s", w.Body.String())
	}
	out, _ := decoded.(map[string]any)
	return w, out
}

func stream(t *testing.T, h http.Handler) io.ReadCloser {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/launch/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	return resp.Body
}

func TestHealth(t *testing.T) {
	mem := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })
	srv := serve(t, Deps{
		Launcher: &fakeLauncher{state: model.Failed("offline")},
		Cache:    mem,
	})

	resp, body := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, "error(offline)", body["launch"])
	assert.Equal(t, "memory", body["cache"].(map[string]any)["backend"])
	assert.NotEmpty(t, resp.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	srv := serve(t, Deps{Launcher: &fakeLauncher{state: model.Splash()}})
	resp, body := do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, true, body["ready"])

	srv = serve(t, Deps{
		Launcher: &fakeLauncher{state: model.Splash()},
		Readiness: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}),
	})
	resp, _ = do(t, srv, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestLaunchEndpoints(t *testing.T) {
	launcher := &fakeLauncher{state: model.OnboardingRequired()}
	srv := serve(t, Deps{Launcher: launcher})

	resp, body := do(t, srv, http.MethodGet, "/api/v1/launch", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "onboarding_required", body["kind"])
	assert.Equal(t, false, body["terminal"])

	resp, body = do(t, srv, http.MethodPost, "/api/v1/launch/onboarding/complete", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "authenticated_ready", body["kind"])
	assert.Equal(t, 1, launcher.onboarded)

	resp, body = do(t, srv, http.MethodPost, "/api/v1/launch/validate", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "account_disabled", body["kind"])
	assert.Equal(t, model.DisabledReason, body["reason"])
	assert.Equal(t, true, body["terminal"])

	resp, body = do(t, srv, http.MethodPost, "/api/v1/launch/retry", "")
	assert.Equal(t, http.StatusAccepted, resp.Code)
	assert.Equal(t, "splash", body["kind"])
	assert.Equal(t, 1, launcher.retries)

	resp, body = do(t, srv, http.MethodGet, "/api/v1/launch/retry", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
	assert.Equal(t, codeBadRequest, body["error"])
}

func readEvents(t *testing.T, r io.Reader, until model.Kind) []string {
	t.Helper()
	var kinds []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var st model.State
		require.NoError(t, json.Unmarshal([]byte(data), &st))
		kinds = append(kinds, string(st.Kind))
		if st.Kind == until {
			return kinds
		}
	}
	t.Fatalf("stream ended after %v", kinds)
	return nil
}

func TestLaunchStream(t *testing.T) {
	seq := sequencer.New(testkit.NewFakeSession(), testkit.NewFakeProfiles(nil), nil,
		model.Config{MinSplashDuration: 30 * time.Millisecond, MaxPrefetchWait: 30 * time.Millisecond},
		sequencer.WithLogger(zerolog.Nop()))
	t.Cleanup(seq.Close)
	body := stream(t, serve(t, Deps{Launcher: seq}))

	seq.Start()
	kinds := readEvents(t, body, model.KindUnauthenticated)
	assert.Equal(t, "splash", kinds[0])
	assert.Equal(t, "unauthenticated", kinds[len(kinds)-1])
}

func TestLaunchStreamKeepAlive(t *testing.T) {
	sc := bufio.NewScanner(stream(t, serve(t, Deps{})))
	for sc.Scan() {
		if sc.Text() == ": keep-alive" {
			return
		}
	}
	t.Fatal("no keep-alive comment before the stream ended")
}

func TestSessionEndpoints(t *testing.T) {
	userID := uuid.New()

	t.Run("status signed out", func(t *testing.T) {
		srv := serve(t, Deps{})
		_, body := do(t, srv, http.MethodGet, "/api/v1/session", "")
		assert.Equal(t, false, body["signed_in"])
	})

	t.Run("status signed in", func(t *testing.T) {
		srv := serve(t, Deps{Sessions: &fakeSessions{session: &model.Session{UserID: userID, Expired: true}}})
		_, body := do(t, srv, http.MethodGet, "/api/v1/session", "")
		assert.Equal(t, true, body["signed_in"])
		assert.Equal(t, userID.String(), body["user_id"])
		assert.Equal(t, true, body["expired"])
	})

	t.Run("sign in", func(t *testing.T) {
		sessions := &fakeSessions{signedIn: userID}
		srv := serve(t, Deps{Sessions: sessions})
		resp, body := do(t, srv, http.MethodPost, "/api/v1/session/sign-in", `{"email":" a@b.c ","password":"pw"}`)
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, userID.String(), body["user_id"])
		assert.Equal(t, "a@b.c", sessions.gotEmail)
	})

	t.Run("sign in rejected", func(t *testing.T) {
		sessions := &fakeSessions{signInErr: fmt.Errorf("sign in: %w", &supabase.Error{
			StatusCode: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials",
		})}
		srv := serve(t, Deps{Sessions: sessions})
		resp, body := do(t, srv, http.MethodPost, "/api/v1/session/sign-in", `{"email":"a@b.c","password":"bad"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, codeInvalidCredentials, body["error"])
		assert.Equal(t, "Invalid login credentials", body["detail"])
	})

	t.Run("sign in backend down", func(t *testing.T) {
		sessions := &fakeSessions{signInErr: fmt.Errorf("sign in: %w", resilience.ErrCircuitOpen)}
		srv := serve(t, Deps{Sessions: sessions})
		resp, body := do(t, srv, http.MethodPost, "/api/v1/session/sign-in", `{"email":"a@b.c","password":"pw"}`)
		assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
		assert.Equal(t, codeUnavailable, body["error"])
	})

	for name, payload := range map[string]string{
		"malformed":      `{"email":`,
		"unknown field":  `{"email":"a@b.c","password":"pw","remember":true}`,
		"missing fields": `{"email":"a@b.c"}`,
	} {
		t.Run("bad request "+name, func(t *testing.T) {
			srv := serve(t, Deps{})
			resp, body := do(t, srv, http.MethodPost, "/api/v1/session/sign-in", payload)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, codeBadRequest, body["error"])
		})
	}

	t.Run("sign out", func(t *testing.T) {
		sessions := &fakeSessions{}
		srv := serve(t, Deps{Sessions: sessions})
		resp, _ := do(t, srv, http.MethodPost, "/api/v1/session/sign-out", "")
		assert.Equal(t, http.StatusNoContent, resp.Code)
		assert.Equal(t, 1, sessions.signOuts)
	})
}

func TestAdminEndpoints(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		srv := serve(t, Deps{Sessions: &fakeSessions{token: "tok"}})
		resp, _ := do(t, srv, http.MethodGet, "/api/v1/admin/stats", "")
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("signed out", func(t *testing.T) {
		srv := serve(t, Deps{Dashboard: &fakeDashboard{}})
		resp, body := do(t, srv, http.MethodGet, "/api/v1/admin/stats", "")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
		assert.Equal(t, codeUnauthorized, body["error"])
	})

	t.Run("stats", func(t *testing.T) {
		dash := &fakeDashboard{}
		srv := serve(t, Deps{Sessions: &fakeSessions{token: "tok"}, Dashboard: dash})
		resp, body := do(t, srv, http.MethodGet, "/api/v1/admin/stats", "")
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.EqualValues(t, 10, body["total_users"])
		assert.EqualValues(t, 2, body["disabled_users"])
		assert.Equal(t, "tok", dash.gotToken)
	})

	t.Run("users paging", func(t *testing.T) {
		dash := &fakeDashboard{}
		srv := serve(t, Deps{Sessions: &fakeSessions{token: "tok"}, Dashboard: dash})
		resp, body := do(t, srv, http.MethodGet, "/api/v1/admin/users?limit=20&offset=40", "")
		assert.Equal(t, http.StatusOK, resp.Code)
		assert.Len(t, body["users"], 1)
		assert.Equal(t, admin.Page{Limit: 20, Offset: 40}, dash.gotPage)

		resp, body = do(t, srv, http.MethodGet, "/api/v1/admin/events?limit=-1", "")
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Equal(t, "invalid limit parameter", body["detail"])
	})

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthorized", &supabase.Error{StatusCode: http.StatusUnauthorized, Code: supabase.CodeJWTInvalid, Message: "JWT expired"}, http.StatusUnauthorized, codeUnauthorized},
		{"forbidden", &supabase.Error{StatusCode: http.StatusForbidden, Message: "not an admin"}, http.StatusForbidden, codeForbidden},
		{"breaker open", resilience.ErrCircuitOpen, http.StatusServiceUnavailable, codeUnavailable},
		{"malformed", admin.ErrMalformed, http.StatusBadGateway, codeUpstream},
		{"server error", &supabase.Error{StatusCode: http.StatusInternalServerError, Message: "oops"}, http.StatusBadGateway, codeUpstream},
		{"transport", errors.New("dial tcp: refused"), http.StatusBadGateway, codeUpstream},
	}
	for _, tt := range tests {
		t.Run("error "+tt.name, func(t *testing.T) {
			dash := &fakeDashboard{err: fmt.Errorf("get_admin_events: %w", tt.err)}
			srv := serve(t, Deps{Sessions: &fakeSessions{token: "tok"}, Dashboard: dash})
			resp, body := do(t, srv, http.MethodGet, "/api/v1/admin/events", "")
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestPrefetchedResource(t *testing.T) {
	userID := uuid.New()
	warmed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pre := &fakePrefetched{
		data: map[string][]byte{userID.String() + "/events": []byte(`[{"id":"e1"}]`)},
		at:   warmed,
	}
	srv := serve(t, Deps{
		Sessions:   &fakeSessions{session: &model.Session{UserID: userID}},
		Prefetched: pre,
	})

	resp, _ := do(t, srv, http.MethodGet, "/api/v1/prefetch/events", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `[{"id":"e1"}]`, resp.Body.String())
	assert.Equal(t, warmed.Format(http.TimeFormat), resp.Header().Get("Last-Modified"))

	r, body := do(t, srv, http.MethodGet, "/api/v1/prefetch/rsvps", "")
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "resource not prefetched", body["detail"])

	r, _ = do(t, srv, http.MethodGet, "/api/v1/prefetch/passwords", "")
	assert.Equal(t, http.StatusNotFound, r.Code)

	signedOut := serve(t, Deps{Prefetched: pre})
	r, _ = do(t, signedOut, http.MethodGet, "/api/v1/prefetch/events", "")
	assert.Equal(t, http.StatusUnauthorized, r.Code)
}

func TestUnknownRouteAndMetrics(t *testing.T) {
	srv := serve(t, Deps{})

	resp, body := do(t, srv, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, codeNotFound, body["error"])

	do(t, srv, http.MethodGet, "/api/v1/launch", "")
	resp, _ = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), `society_http_request_duration_seconds_count{method="GET",route="/api/v1/launch`)
}
