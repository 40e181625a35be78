// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package supabase is a small client for the Supabase auth and PostgREST
// endpoints the app talks to.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/society/internal/metrics"
	"github.com/ManuGH/society/internal/resilience"
	"github.com/ManuGH/society/internal/telemetry"
)

const (
	defaultTimeout          = 10 * time.Second
	defaultRequestsPerSec   = 20
	defaultBurst            = 40
	defaultBreakerThreshold = 5
	defaultBreakerReset     = 30 * time.Second
	maxResponseBytes        = 8 << 20
)

// Config configures a Client.
type Config struct {
	URL               string
	AnonKey           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	BreakerThreshold  int
	BreakerReset      time.Duration
	UserAgent         string
}

func (c Config) normalize() Config {
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = defaultRequestsPerSec
	}
	if c.Burst <= 0 {
		c.Burst = defaultBurst
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = defaultBreakerThreshold
	}
	if c.BreakerReset <= 0 {
		c.BreakerReset = defaultBreakerReset
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "societyd"
	}
	return c
}

// Client talks to one Supabase project.
type Client struct {
	cfg     Config
	baseURL *url.URL
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	tracer  trace.Tracer
}

// New validates cfg and returns a client. The HTTP transport is instrumented
// with otelhttp so spans propagate to Supabase.
func New(cfg Config) (*Client, error) {
	cfg = cfg.normalize()
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("supabase: url is required")
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, errors.New("supabase: anon key is required")
	}
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.URL), "/"))
	if err != nil {
		return nil, fmt.Errorf("supabase: invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("supabase: unsupported url scheme %q", u.Scheme)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	return &Client{
		cfg:     cfg,
		baseURL: u,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		breaker: resilience.NewCircuitBreaker("supabase", cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailurePredicate(countsAsOutage)),
		tracer: telemetry.Tracer("society.supabase"),
	}, nil
}

// BaseURL returns the project URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// BreakerState reports the circuit guarding the project.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

// countsAsOutage reports whether err says something about backend health.
// 4xx answers are the caller's problem and never trip the breaker.
func countsAsOutage(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

type request struct {
	api     string // metrics label: auth, rest, rpc
	method  string
	path    string
	query   url.Values
	body    any
	token   string
	headers map[string]string
}

// do sends req and returns the raw response body for 2xx answers. Other
// answers are decoded into *Error.
func (c *Client) do(ctx context.Context, req request) ([]byte, http.Header, error) {
	ctx, span := c.tracer.Start(ctx, "supabase."+req.api, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(telemetry.SupabaseAttributes(req.api, req.method, req.path)...)

	var (
		body    []byte
		header  http.Header
		status  int
		started = time.Now()
	)
	err := c.breaker.Do(ctx, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		body, header, status, err = c.roundTrip(ctx, req)
		return err
	})

	statusLabel := strconv.Itoa(status)
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		statusLabel = "circuit_open"
	case status == 0 && err != nil:
		statusLabel = "transport_error"
	}
	metrics.RecordSupabaseRequest(req.api, statusLabel, time.Since(started))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.HTTPStatusCodeKey, status))
	return body, header, nil
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, http.Header, int, error) {
	u := *c.baseURL
	u.Path = u.Path + req.path
	u.RawQuery = req.query.Encode()

	var rdr io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), rdr)
	if err != nil {
		return nil, nil, 0, err
	}
	token := req.token
	if token == "" {
		token = c.cfg.AnonKey
	}
	httpReq.Header.Set("apikey", c.cfg.AnonKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	if rdr != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("supabase %s %s: %w", req.method, req.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, resp.Header, resp.StatusCode, parseError(raw, resp.StatusCode)
	}
	return raw, resp.Header, resp.StatusCode, nil
}
