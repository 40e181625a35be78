// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ManuGH/society/internal/supabase"
)

// Tokens is the persisted auth state of the signed-in user.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"`
	UserID       uuid.UUID `json:"user_id"`
}

// claims holds what we read from an access token. Signatures are checked by
// Supabase, not here.
type claims struct {
	Expiry  time.Time
	Subject string
}

func parseClaims(token string) (claims, bool) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &rc); err != nil {
		return claims{}, false
	}
	var c claims
	if rc.ExpiresAt != nil {
		c.Expiry = rc.ExpiresAt.Time
	}
	c.Subject = rc.Subject
	return c, true
}

// Expiry returns when the access token stops being accepted: the JWT exp
// claim when readable, otherwise the stored ExpiresAt.
func (t *Tokens) Expiry() time.Time {
	if c, ok := parseClaims(t.AccessToken); ok && !c.Expiry.IsZero() {
		return c.Expiry
	}
	return t.ExpiresAt
}

// ExpiredAt reports whether the token is expired at now, treating tokens that
// expire within skew as already expired. Tokens with no known expiry never
// expire.
func (t *Tokens) ExpiredAt(now time.Time, skew time.Duration) bool {
	exp := t.Expiry()
	if exp.IsZero() {
		return false
	}
	return !now.Add(skew).Before(exp)
}

func (t *Tokens) equal(o *Tokens) bool {
	return t.AccessToken == o.AccessToken &&
		t.RefreshToken == o.RefreshToken &&
		t.UserID == o.UserID &&
		t.ExpiresAt.Equal(o.ExpiresAt)
}

// tokensFrom builds Tokens from a GoTrue answer. The user ID comes from the
// embedded user object, falling back to the JWT subject.
func tokensFrom(s *supabase.Session, now time.Time) (*Tokens, error) {
	t := &Tokens{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.Expiry(now),
	}
	id := ""
	if s.User != nil {
		id = s.User.ID
	}
	if id == "" {
		if c, ok := parseClaims(s.AccessToken); ok {
			id = c.Subject
		}
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, errMissingUser
	}
	t.UserID = uid
	return t, nil
}
