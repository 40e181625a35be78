// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package admin calls the dashboard RPCs. Their result shapes have drifted
// across schema versions, so fields are read leniently.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/ManuGH/society/internal/supabase"
)

const (
	rpcStats  = "get_admin_stats"
	rpcUsers  = "get_admin_users"
	rpcEvents = "get_admin_events"

	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrMalformed is returned when an RPC answers with something that is not
// JSON of the expected shape.
var ErrMalformed = errors.New("malformed admin rpc result")

// Caller is the part of the Supabase client the dashboard needs.
type Caller interface {
	RPC(ctx context.Context, fn string, params any, token string) ([]byte, error)
}

// Stats are the dashboard headline numbers.
type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	ActiveUsers    int64 `json:"active_users"`
	DisabledUsers  int64 `json:"disabled_users"`
	TotalEvents    int64 `json:"total_events"`
	UpcomingEvents int64 `json:"upcoming_events"`
	TotalRSVPs     int64 `json:"total_rsvps"`
}

// User is one row of the user list.
type User struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email,omitempty"`
	FullName            string     `json:"full_name,omitempty"`
	IsActive            bool       `json:"is_active"`
	OnboardingCompleted bool       `json:"onboarding_completed"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty"`
	CreatedAt           *time.Time `json:"created_at,omitempty"`
}

// Event is one row of the event list.
type Event struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Category  string     `json:"category,omitempty"`
	StartsAt  *time.Time `json:"starts_at,omitempty"`
	RSVPCount int64      `json:"rsvp_count"`
}

// Page selects a slice of a list.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) params() map[string]any {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return map[string]any{"p_limit": p.Limit, "p_offset": p.Offset}
}

// Client reads dashboard data with the operator's access token.
type Client struct {
	rpc Caller
}

func NewClient(rpc Caller) *Client {
	return &Client{rpc: rpc}
}

// Stats returns the headline numbers. Some deployments wrap the object in a
// single-element array; both shapes are accepted.
func (c *Client) Stats(ctx context.Context, token string) (*Stats, error) {
	res, err := c.call(ctx, rpcStats, nil, token)
	if err != nil {
		return nil, err
	}
	if res.IsArray() {
		res = res.Get("0")
	}
	if !res.IsObject() {
		return nil, fmt.Errorf("%s: %w", rpcStats, ErrMalformed)
	}

	s := &Stats{
		TotalUsers:     res.Get("total_users").Int(),
		ActiveUsers:    res.Get("active_users").Int(),
		TotalEvents:    res.Get("total_events").Int(),
		UpcomingEvents: res.Get("upcoming_events").Int(),
		TotalRSVPs:     firstOf(res, "total_rsvps", "rsvp_count").Int(),
	}
	if d := res.Get("disabled_users"); d.Exists() {
		s.DisabledUsers = d.Int()
	} else if s.TotalUsers >= s.ActiveUsers {
		s.DisabledUsers = s.TotalUsers - s.ActiveUsers
	}
	return s, nil
}

// Users lists accounts. Rows without an id are skipped.
func (c *Client) Users(ctx context.Context, token string, page Page) ([]User, error) {
	res, err := c.call(ctx, rpcUsers, page.params(), token)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%s: %w", rpcUsers, ErrMalformed)
	}

	users := make([]User, 0, len(res.Array()))
	res.ForEach(func(_, row gjson.Result) bool {
		id := row.Get("id").String()
		if id == "" {
			return true
		}
		active := row.Get("is_active")
		users = append(users, User{
			ID:                  id,
			Email:               row.Get("email").String(),
			FullName:            firstOf(row, "full_name", "display_name", "name").String(),
			IsActive:            !active.Exists() || active.Type == gjson.Null || active.Bool(),
			OnboardingCompleted: row.Get("onboarding_completed").Bool(),
			DeletedAt:           timeOf(row.Get("deleted_at")),
			CreatedAt:           timeOf(row.Get("created_at")),
		})
		return true
	})
	return users, nil
}

// Events lists events, newest first as returned by the RPC.
func (c *Client) Events(ctx context.Context, token string, page Page) ([]Event, error) {
	res, err := c.call(ctx, rpcEvents, page.params(), token)
	if err != nil {
		return nil, err
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%s: %w", rpcEvents, ErrMalformed)
	}

	events := make([]Event, 0, len(res.Array()))
	res.ForEach(func(_, row gjson.Result) bool {
		id := row.Get("id").String()
		if id == "" {
			return true
		}
		events = append(events, Event{
			ID:        id,
			Title:     row.Get("title").String(),
			Category:  firstOf(row, "category.name", "category_name", "category").String(),
			StartsAt:  timeOf(row.Get("starts_at")),
			RSVPCount: firstOf(row, "rsvp_count", "rsvps.0.count").Int(),
		})
		return true
	})
	return events, nil
}

func (c *Client) call(ctx context.Context, fn string, params any, token string) (gjson.Result, error) {
	raw, err := c.rpc.RPC(ctx, fn, params, token)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", fn, err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("%s: %w", fn, ErrMalformed)
	}
	return gjson.ParseBytes(raw), nil
}

// firstOf returns the first path that exists and is not a JSON object.
func firstOf(r gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.Type != gjson.Null && !v.IsObject() {
			return v
		}
	}
	return gjson.Result{}
}

func timeOf(r gjson.Result) *time.Time {
	if r.Type != gjson.String {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07"} {
		if t, err := time.Parse(layout, r.String()); err == nil {
			return &t
		}
	}
	return nil
}

var _ Caller = (*supabase.Client)(nil)
