// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ports defines the collaborators the launch sequencer drives.
// Adapters (Supabase auth, PostgREST, cache warmers) implement them; the
// sequencer never learns how.
package ports

import (
	"context"

	"github.com/google/uuid"

	"github.com/ManuGH/society/internal/domain/launch/model"
)

// SessionProvider owns the auth session.
type SessionProvider interface {
	// Refresh is best-effort and the session is re-read regardless. An
	// error satisfying IsUnauthorized means the refresh token was rejected.
	Refresh(ctx context.Context) error

	// CurrentSession returns nil, nil when nobody is signed in.
	CurrentSession(ctx context.Context) (*model.Session, error)

	// Watch delivers identity changes until ctx is done, then closes the channel.
	Watch(ctx context.Context) <-chan model.Identity
}

// ProfileLookup reads account status flags for a user.
type ProfileLookup interface {
	// FetchStatus returns nil, nil when no profile row exists.
	FetchStatus(ctx context.Context, userID uuid.UUID) (*model.ProfileStatus, error)
}

// PrefetchJob warms caches for a user. It must be idempotent and honour ctx.
type PrefetchJob interface {
	Run(ctx context.Context, userID uuid.UUID) error
}

// StateClearer drops per-user state when the session goes away.
type StateClearer interface {
	ClearUserState(ctx context.Context) error
}
