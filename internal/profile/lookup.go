// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package profile reads account status from the profiles table.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/domain/launch/ports"
	"github.com/ManuGH/society/internal/supabase"
)

const (
	table   = "profiles"
	columns = "is_active,deleted_at,onboarding_completed"
)

// TokenSource yields the access token requests are made with.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Lookup implements ports.ProfileLookup over PostgREST.
type Lookup struct {
	client *supabase.Client
	tokens TokenSource
}

var _ ports.ProfileLookup = (*Lookup)(nil)

func NewLookup(client *supabase.Client, tokens TokenSource) *Lookup {
	return &Lookup{client: client, tokens: tokens}
}

// FetchStatus returns the user's profile status, or nil if the row does not
// exist. Missing columns keep their nil value; model.ProfileStatus applies
// the defaults.
func (l *Lookup) FetchStatus(ctx context.Context, userID uuid.UUID) (*model.ProfileStatus, error) {
	token, err := l.tokens.AccessToken(ctx)
	if err != nil {
		return nil, errors.Join(ports.ErrUnauthorized, err)
	}

	var rows []model.ProfileStatus
	err = l.client.From(table).
		Select(columns).
		Eq("id", userID).
		Limit(1).
		ExecuteInto(ctx, token, &rows)
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", userID, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
