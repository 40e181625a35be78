// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package prefetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/society/internal/cache"
	"github.com/ManuGH/society/internal/supabase"
)

type staticToken string

func (s staticToken) AccessToken(context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no active session")
	}
	return string(s), nil
}

type backend struct {
	mu      sync.Mutex
	hits    map[string]int
	queries map[string]string
	fail    string
	gate    chan struct{}
	total   atomic.Int32
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.total.Add(1)
	if b.gate != nil {
		<-b.gate
	}
	table := r.URL.Path[len("/rest/v1/"):]
	b.mu.Lock()
	b.hits[table]++
	b.queries[table] = r.URL.RawQuery
	b.mu.Unlock()

	if table == b.fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
		return
	}
	_, _ = w.Write([]byte(`[{"table":"` + table + `"}]`))
}

func newJob(t *testing.T, b *backend) (*Job, cache.Cache) {
	t.Helper()
	b.hits = map[string]int{}
	b.queries = map[string]string{}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	client, err := supabase.New(supabase.Config{URL: srv.URL, AnonKey: "anon", RequestsPerSecond: 1000, Burst: 1000})
	require.NoError(t, err)
	c := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = c.Close() })

	j := New(client, staticToken("tok"), c, Config{EventsLimit: 10, TTL: time.Minute})
	j.now = func() time.Time { return time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC) }
	return j, c
}

func TestRun_WarmsEveryResource(t *testing.T) {
	b := &backend{}
	j, _ := newJob(t, b)
	uid := uuid.New()
	ctx := context.Background()

	require.NoError(t, j.Run(ctx, uid))

	for _, r := range []string{ResourceEvents, ResourceCategories, ResourceRSVPs} {
		raw, ok := j.Cached(ctx, uid, r)
		require.True(t, ok, r)
		assert.JSONEq(t, `[{"table":"`+r+`"}]`, string(raw))
	}
	_, ok := j.WarmedAt(uid)
	assert.True(t, ok)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Contains(t, b.queries["events"], "starts_at=gte.2025-06-01T18%3A00%3A00Z")
	assert.Contains(t, b.queries["events"], "limit=10")
	assert.Contains(t, b.queries["rsvps"], "user_id=eq."+uid.String())
}

func TestRun_FailureIsReported(t *testing.T) {
	b := &backend{fail: "categories"}
	j, _ := newJob(t, b)
	uid := uuid.New()

	err := j.Run(context.Background(), uid)
	var apiErr *supabase.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	_, ok := j.WarmedAt(uid)
	assert.False(t, ok)
}

func TestRun_NoSession(t *testing.T) {
	j, _ := newJob(t, &backend{})
	j.tokens = staticToken("")
	assert.Error(t, j.Run(context.Background(), uuid.New()))
}

func TestRun_ConcurrentCallsShareOneLoad(t *testing.T) {
	b := &backend{gate: make(chan struct{})}
	j, _ := newJob(t, b)
	uid := uuid.New()

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- j.Run(context.Background(), uid)
		}()
	}
	require.Eventually(t, func() bool { return b.total.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	close(b.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(3), b.total.Load())
}

func TestRun_CallerCancelReturnsPromptly(t *testing.T) {
	b := &backend{gate: make(chan struct{})}
	j, _ := newJob(t, b)
	defer close(b.gate)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx, uuid.New()) }()
	require.Eventually(t, func() bool { return b.total.Load() > 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClearUserState(t *testing.T) {
	j, c := newJob(t, &backend{})
	ctx := context.Background()
	uid := uuid.New()

	require.NoError(t, j.Run(ctx, uid))
	require.NoError(t, c.Set(ctx, "app:config", []byte("keep"), 0))

	require.NoError(t, j.ClearUserState(ctx))

	_, ok := j.Cached(ctx, uid, ResourceEvents)
	assert.False(t, ok)
	_, ok = j.WarmedAt(uid)
	assert.False(t, ok)
	_, ok = c.Get(ctx, "app:config")
	assert.True(t, ok)
}

func TestRun_ClearDuringLoadDropsResults(t *testing.T) {
	b := &backend{gate: make(chan struct{})}
	j, c := newJob(t, b)
	ctx := context.Background()
	uid := uuid.New()

	done := make(chan error, 1)
	go func() { done <- j.Run(ctx, uid) }()
	require.Eventually(t, func() bool { return b.total.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, j.ClearUserState(ctx))
	close(b.gate)
	require.NoError(t, <-done)

	for _, r := range []string{ResourceEvents, ResourceCategories, ResourceRSVPs} {
		_, ok := j.Cached(ctx, uid, r)
		assert.False(t, ok, r)
	}
	_, ok := j.WarmedAt(uid)
	assert.False(t, ok)
	assert.Equal(t, 0, c.Stats(ctx).CurrentSize)

	// A load started after the clear writes again.
	require.NoError(t, j.Run(ctx, uid))
	_, ok = j.Cached(ctx, uid, ResourceRSVPs)
	assert.True(t, ok)
}
