// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"time"

	"github.com/google/uuid"
)

// Session is the read-only view of the current auth session.
type Session struct {
	UserID  uuid.UUID
	Expired bool
}

// Identity is emitted by the session provider whenever the signed-in user
// changes. uuid.Nil means nobody is signed in.
type Identity struct {
	UserID uuid.UUID
}

// Present reports whether the identity names a user.
func (i Identity) Present() bool {
	return i.UserID != uuid.Nil
}

// ProfileStatus is the projection of a profile row the launch flow needs.
// Nil fields mean the column was null or absent; use the accessors instead of
// dereferencing so the defaults stay in one place.
type ProfileStatus struct {
	IsActive            *bool      `json:"is_active"`
	DeletedAt           *time.Time `json:"deleted_at"`
	OnboardingCompleted *bool      `json:"onboarding_completed"`
}

// Active defaults to true when the flag is absent.
func (p ProfileStatus) Active() bool {
	return p.IsActive == nil || *p.IsActive
}

// Onboarded defaults to false when the flag is absent.
func (p ProfileStatus) Onboarded() bool {
	return p.OnboardingCompleted != nil && *p.OnboardingCompleted
}

// Disabled reports an inactive or soft-deleted account.
func (p ProfileStatus) Disabled() bool {
	return !p.Active() || p.DeletedAt != nil
}
