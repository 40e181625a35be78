// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session keeps the signed-in user's Supabase tokens: it refreshes
// them, persists them to disk and reports identity changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/domain/launch/ports"
	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/metrics"
	"github.com/ManuGH/society/internal/supabase"
)

const (
	DefaultExpirySkew = 30 * time.Second
	watchBuffer       = 8
)

var (
	// ErrNoSession is returned when an operation needs a signed-in user.
	ErrNoSession   = errors.New("no active session")
	errMissingUser = errors.New("session has no user id")
)

// Authenticator is the part of the Supabase auth API the provider uses.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Provider implements ports.SessionProvider on top of Supabase auth.
type Provider struct {
	auth   Authenticator
	store  *FileStore
	skew   time.Duration
	now    func() time.Time
	logger zerolog.Logger

	refreshes singleflight.Group

	mu       sync.Mutex
	tokens   *Tokens
	current  uuid.UUID
	watchers map[uint64]chan model.Identity
	nextID   uint64
}

var _ ports.SessionProvider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithExpirySkew treats tokens expiring within d as expired.
func WithExpirySkew(d time.Duration) Option {
	return func(p *Provider) {
		if d >= 0 {
			p.skew = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// NewProvider loads any persisted session from store. An unreadable token
// file is logged and treated as signed out.
func NewProvider(auth Authenticator, store *FileStore, opts ...Option) *Provider {
	p := &Provider{
		auth:     auth,
		store:    store,
		skew:     DefaultExpirySkew,
		now:      time.Now,
		logger:   log.WithComponent("session"),
		watchers: make(map[uint64]chan model.Identity),
	}
	for _, opt := range opts {
		opt(p)
	}

	t, err := store.Load()
	if err != nil {
		p.logger.Warn().Err(err).
			Str(log.FieldEvent, "session.load_failed").
			Str(log.FieldSessionFile, store.Path()).
			Msg("ignoring unreadable session file")
	}
	if t != nil {
		p.tokens = t
		p.current = t.UserID
	}
	return p
}

// CurrentSession returns the signed-in session, or nil when signed out.
func (p *Provider) CurrentSession(ctx context.Context) (*model.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokens == nil {
		return nil, nil
	}
	return &model.Session{
		UserID:  p.tokens.UserID,
		Expired: p.tokens.ExpiredAt(p.now(), p.skew),
	}, nil
}

// AccessToken returns the current access token.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tokens == nil {
		return "", ErrNoSession
	}
	return p.tokens.AccessToken, nil
}

// Refresh exchanges the refresh token when the access token is about to
// expire. A rejected refresh token signs the user out.
func (p *Provider) Refresh(ctx context.Context) error {
	p.mu.Lock()
	t := p.tokens
	p.mu.Unlock()
	if t == nil || !t.ExpiredAt(p.now(), p.skew) {
		return nil
	}

	_, err, _ := p.refreshes.Do(t.RefreshToken, func() (any, error) {
		return nil, p.refresh(ctx, t)
	})
	return err
}

func (p *Provider) refresh(ctx context.Context, old *Tokens) error {
	logger := log.WithContext(ctx, p.logger).With().Str(log.FieldUserID, old.UserID.String()).Logger()

	if old.RefreshToken == "" {
		metrics.RecordSessionRefresh("rejected")
		p.clearIf(old)
		return fmt.Errorf("%w: no refresh token", ports.ErrUnauthorized)
	}

	s, err := p.auth.RefreshToken(ctx, old.RefreshToken)
	if err != nil {
		if ctx.Err() == nil && refreshRejected(err) {
			metrics.RecordSessionRefresh("rejected")
			logger.Info().Err(err).Str(log.FieldEvent, "session.refresh_rejected").Msg("refresh token rejected, signing out")
			p.clearIf(old)
			return fmt.Errorf("%w: %v", ports.ErrUnauthorized, err)
		}
		metrics.RecordSessionRefresh("failed")
		logger.Warn().Err(err).Str(log.FieldEvent, "session.refresh_failed").Msg("token refresh failed")
		return fmt.Errorf("refresh session: %w", err)
	}

	t, err := tokensFrom(s, p.now())
	if err != nil {
		metrics.RecordSessionRefresh("failed")
		return fmt.Errorf("refresh session: %w", err)
	}

	p.mu.Lock()
	// A sign-out or sign-in during the exchange wins.
	if p.tokens != old {
		p.mu.Unlock()
		metrics.RecordSessionRefresh("discarded")
		return nil
	}
	p.tokens = t
	p.setIdentityLocked(t.UserID)
	p.mu.Unlock()

	if err := p.store.Save(t); err != nil {
		logger.Warn().Err(err).Str(log.FieldEvent, "session.persist_failed").Msg("refreshed session not persisted")
	}
	metrics.RecordSessionRefresh("ok")
	logger.Debug().Str(log.FieldEvent, "session.refreshed").Time("expires_at", t.Expiry()).Msg("session refreshed")
	return nil
}

// GoTrue answers a bad refresh token with 400 invalid_grant, not 401.
func refreshRejected(err error) bool {
	var apiErr *supabase.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 400 || apiErr.StatusCode == 403 {
			return true
		}
	}
	return ports.IsUnauthorized(err)
}

// SignIn authenticates with email and password and persists the session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (uuid.UUID, error) {
	s, err := p.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return uuid.Nil, fmt.Errorf("sign in: %w", err)
	}
	t, err := tokensFrom(s, p.now())
	if err != nil {
		return uuid.Nil, fmt.Errorf("sign in: %w", err)
	}
	if err := p.store.Save(t); err != nil {
		return uuid.Nil, err
	}

	p.mu.Lock()
	p.tokens = t
	p.setIdentityLocked(t.UserID)
	p.mu.Unlock()

	logger := log.WithContext(ctx, p.logger)
	logger.Info().
		Str(log.FieldEvent, "session.signed_in").
		Str(log.FieldUserID, t.UserID.String()).
		Msg("signed in")
	return t.UserID, nil
}

// SignOut drops the local session and then revokes it remotely. Remote
// failures are logged; the local sign-out always succeeds.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	t := p.tokens
	p.mu.Unlock()
	if t == nil {
		return nil
	}

	if err := p.clearIf(t); err != nil {
		return err
	}
	logger := log.WithContext(ctx, p.logger)
	if err := p.auth.SignOut(ctx, t.AccessToken); err != nil {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "session.revoke_failed").
			Msg("remote sign-out failed")
	}
	logger.Info().
		Str(log.FieldEvent, "session.signed_out").
		Str(log.FieldUserID, t.UserID.String()).
		Msg("signed out")
	return nil
}

// clearIf signs out locally if old is still the current session.
func (p *Provider) clearIf(old *Tokens) error {
	p.mu.Lock()
	if p.tokens != old {
		p.mu.Unlock()
		return nil
	}
	p.tokens = nil
	p.setIdentityLocked(uuid.Nil)
	p.mu.Unlock()
	return p.store.Remove()
}

// Reload re-reads the token file, picking up sign-ins and sign-outs made by
// another process.
func (p *Provider) Reload() error {
	t, err := p.store.Load()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case t == nil && p.tokens == nil:
		return nil
	case t != nil && p.tokens != nil && t.equal(p.tokens):
		return nil
	}
	p.tokens = t
	id := uuid.Nil
	if t != nil {
		id = t.UserID
	}
	p.setIdentityLocked(id)
	return nil
}

// Watch returns identity changes until ctx is done.
func (p *Provider) Watch(ctx context.Context) <-chan model.Identity {
	ch := make(chan model.Identity, watchBuffer)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.watchers[id] = ch
	p.mu.Unlock()

	context.AfterFunc(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.watchers, id)
		close(ch)
	})
	return ch
}

// setIdentityLocked notifies watchers when the signed-in user changes.
func (p *Provider) setIdentityLocked(id uuid.UUID) {
	if id == p.current {
		return
	}
	prev := p.current
	p.current = id

	switch {
	case id == uuid.Nil:
		metrics.RecordIdentityChange("signed_out")
	case prev == uuid.Nil:
		metrics.RecordIdentityChange("signed_in")
	default:
		metrics.RecordIdentityChange("switched")
	}

	change := model.Identity{UserID: id}
	for _, ch := range p.watchers {
		select {
		case ch <- change:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- change:
			default:
			}
		}
	}
}
