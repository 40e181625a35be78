// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// User is the subset of the GoTrue user object the app reads.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	LastSignInAt *time.Time     `json:"last_sign_in_at,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Session is a GoTrue token response.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user,omitempty"`
}

// Expiry returns when the access token expires, preferring expires_at.
func (s *Session) Expiry(now time.Time) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	if s.ExpiresIn > 0 {
		return now.Add(time.Duration(s.ExpiresIn) * time.Second)
	}
	return time.Time{}
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", map[string]string{"email": email, "password": password})
}

// RefreshToken exchanges a refresh token for a new session.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

func (c *Client) token(ctx context.Context, grant string, body map[string]string) (*Session, error) {
	raw, _, err := c.do(ctx, request{
		api:    "auth",
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		body:   body,
	})
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

// GetUser returns the user an access token belongs to.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	raw, _, err := c.do(ctx, request{
		api:    "auth",
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  accessToken,
	})
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

// SignOut revokes the session the access token belongs to.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	_, _, err := c.do(ctx, request{
		api:    "auth",
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  accessToken,
	})
	return err
}
