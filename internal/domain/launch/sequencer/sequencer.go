// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package sequencer resolves which launch state the app is in: splash, signed
// out, onboarding, ready, or one of the account failure states.
package sequencer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/society/internal/domain/launch/model"
	"github.com/ManuGH/society/internal/domain/launch/ports"
	"github.com/ManuGH/society/internal/log"
	"github.com/ManuGH/society/internal/metrics"
	"github.com/ManuGH/society/internal/telemetry"
)

const tracerName = "github.com/ManuGH/society/internal/domain/launch/sequencer"

// subscriberBuffer bounds each observer channel. When it is full the oldest
// pending state is dropped so the newest one is always delivered.
const subscriberBuffer = 16

// Sequencer publishes exactly one model.State at a time.
//
// Every Start claims a new generation and cancels the previous resolution.
// A state is only published while its generation is still current, and the
// check and the write happen under the same lock, so an older resolution can
// never overwrite a newer one.
type Sequencer struct {
	session  ports.SessionProvider
	profiles ports.ProfileLookup
	prefetch ports.PrefetchJob
	clearers []ports.StateClearer
	cfg      model.Config
	logger   zerolog.Logger
	tracer   trace.Tracer

	// lifetime bounds everything the sequencer starts, including background
	// prefetches that outlive the resolution which launched them.
	lifetime context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc // in-flight resolution, nil when idle
	state   model.State
	subs    map[uint64]chan model.State
	nextSub uint64
	closed  bool
	// user is the last identity seen by Run.
	user uuid.UUID
}

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger overrides the component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

// WithStateClearers registers collaborators whose per-user state is dropped
// when the session goes away.
func WithStateClearers(c ...ports.StateClearer) Option {
	return func(s *Sequencer) { s.clearers = append(s.clearers, c...) }
}

// WithTracer overrides the OpenTelemetry tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Sequencer) { s.tracer = t }
}

// New creates a sequencer in the Splash state. prefetch may be nil, in which
// case the prefetch race is skipped.
func New(session ports.SessionProvider, profiles ports.ProfileLookup, prefetch ports.PrefetchJob, cfg model.Config, opts ...Option) *Sequencer {
	lifetime, stop := context.WithCancel(context.Background())
	s := &Sequencer{
		session:  session,
		profiles: profiles,
		prefetch: prefetch,
		cfg:      cfg.WithDefaults(),
		logger:   log.WithComponent("launch"),
		tracer:   telemetry.Tracer(tracerName),
		lifetime: lifetime,
		stop:     stop,
		state:    model.Splash(),
		subs:     make(map[uint64]chan model.State),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current launch state.
func (s *Sequencer) State() model.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that first receives the current state and then
// every published state. A slow reader may miss intermediate states but is
// always handed the newest one. The returned func unsubscribes and closes
// the channel.
func (s *Sequencer) Subscribe() (<-chan model.State, func()) {
	ch := make(chan model.State, subscriberBuffer)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

// Start publishes Splash and resolves the launch state in the background.
// Any resolution still in flight is superseded.
func (s *Sequencer) Start() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	ctx, gen := s.claimLocked()
	s.publishLocked(model.Splash())
	started := time.Now()
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.release(gen)
		s.resolve(ctx, gen, started)
	}()
}

// Retry is Start under the name the error screen uses.
func (s *Sequencer) Retry() {
	s.Start()
}

// HandleOnboardingCompleted moves a freshly onboarded user to
// AuthenticatedReady once the prefetch race settles. Without a signed-in
// user it publishes Unauthenticated instead.
func (s *Sequencer) HandleOnboardingCompleted(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	rctx, gen := s.claimLocked()
	s.mu.Unlock()
	defer s.release(gen)

	stopAfter := context.AfterFunc(ctx, func() { s.release(gen) })
	defer stopAfter()

	rctx, span := s.tracer.Start(rctx, "launch.onboarding_completed")
	defer span.End()
	logger := log.WithContext(rctx, s.logger)

	sess, err := s.session.CurrentSession(rctx)
	if err != nil || sess == nil || sess.UserID == uuid.Nil {
		if err != nil {
			logger.Debug().Err(err).Str(log.FieldEvent, "launch.onboarding_no_session").Msg("session read failed after onboarding")
		}
		s.publishIfCurrent(gen, model.Unauthenticated())
		return
	}

	s.racePrefetch(rctx, sess.UserID)
	if rctx.Err() != nil {
		return
	}
	s.publishIfCurrent(gen, model.AuthenticatedReady())
}

// ValidateAccountStatus re-checks a ready account. It does nothing unless
// the current state is AuthenticatedReady. The session is refreshed first;
// transient refresh and profile errors are ignored so a flaky network does
// not bounce the user out of the app.
func (s *Sequencer) ValidateAccountStatus(ctx context.Context) {
	s.mu.Lock()
	if s.closed || s.state.Kind != model.KindAuthenticatedReady {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.mu.Unlock()

	ctx, span := s.tracer.Start(log.ContextWithGeneration(ctx, gen), "launch.validate")
	defer span.End()
	logger := log.WithContext(ctx, s.logger)

	// An access token lapsing is routine; only a refresh the backend
	// rejects ends the session.
	refreshErr := s.session.Refresh(ctx)
	sess, err := s.session.CurrentSession(ctx)
	switch {
	case err != nil:
		if ports.IsUnauthorized(err) {
			s.publishIfReady(ctx, gen, model.Unauthenticated())
		}
		return
	case sess == nil || sess.UserID == uuid.Nil:
		if ports.IsUnauthorized(refreshErr) {
			s.publishIfReady(ctx, gen, model.Unauthenticated())
		}
		return
	case sess.Expired:
		if refreshErr != nil && !ports.IsUnauthorized(refreshErr) {
			logger.Debug().Err(refreshErr).Str(log.FieldEvent, "launch.validate_refresh_failed").Msg("session refresh failed during validation, keeping session")
			return
		}
		s.publishIfReady(ctx, gen, model.Unauthenticated())
		return
	}

	status, err := s.profiles.FetchStatus(ctx, sess.UserID)
	if err != nil {
		if ports.IsUnauthorized(err) {
			s.publishIfReady(ctx, gen, model.Unauthenticated())
			return
		}
		logger.Debug().Err(err).Str(log.FieldEvent, "launch.validate_ignored").Msg("ignoring profile fetch failure during validation")
		return
	}
	switch {
	case status == nil:
		s.publishIfReady(ctx, gen, model.AccountDeleted())
	case status.Disabled():
		s.publishIfReady(ctx, gen, model.AccountDisabled(model.DisabledReason))
	}
}

// Run consumes identity changes from the session provider until ctx is done.
// Losing the identity supersedes any resolution, clears per-user state and
// publishes Unauthenticated. Gaining one while Unauthenticated starts a new
// resolution, and a different user replacing the current one clears the
// previous user's state before starting over.
func (s *Sequencer) Run(ctx context.Context) error {
	return s.consume(ctx, s.session.Watch(ctx))
}

// Launch is Run with the first Start issued once the identity watch is
// registered, so a sign-in or sign-out racing the initial resolution is
// still observed.
func (s *Sequencer) Launch(ctx context.Context) error {
	changes := s.session.Watch(ctx)
	s.Start()
	return s.consume(ctx, changes)
}

func (s *Sequencer) consume(ctx context.Context, changes <-chan model.Identity) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-changes:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				return errors.New("session watch closed")
			}
			s.handleIdentity(ctx, id)
		}
	}
}

// Close cancels everything the sequencer started and waits for it to stop.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stop()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Sequencer) handleIdentity(ctx context.Context, id model.Identity) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.user
	s.user = id.UserID

	if !id.Present() {
		s.supersedeLocked()
		gen := s.gen
		s.mu.Unlock()

		s.logger.Info().Str(log.FieldEvent, "launch.session_lost").Msg("session identity cleared")
		s.clearUserState(ctx)
		s.mu.Lock()
		if gen == s.gen && !s.closed && s.state.Kind != model.KindUnauthenticated {
			s.publishLocked(model.Unauthenticated())
		}
		s.mu.Unlock()
		return
	}

	switched := prev != uuid.Nil && prev != id.UserID
	unauthenticated := s.state.Kind == model.KindUnauthenticated
	if switched {
		s.supersedeLocked()
	}
	s.mu.Unlock()

	switch {
	case switched:
		s.logger.Info().
			Str(log.FieldEvent, "launch.session_switched").
			Str(log.FieldUserID, id.UserID.String()).
			Msg("signed-in user changed, restarting launch")
		s.clearUserState(ctx)
		s.Start()
	case unauthenticated:
		s.logger.Info().
			Str(log.FieldEvent, "launch.session_gained").
			Str(log.FieldUserID, id.UserID.String()).
			Msg("session identity appeared, starting launch")
		s.Start()
	}
}

func (s *Sequencer) clearUserState(ctx context.Context) {
	for _, c := range s.clearers {
		if err := c.ClearUserState(ctx); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldEvent, "launch.clear_failed").Msg("failed to clear per-user state")
		}
	}
}

func (s *Sequencer) resolve(ctx context.Context, gen uint64, started time.Time) {
	ctx, span := s.tracer.Start(ctx, "launch.resolve", trace.WithAttributes(telemetry.LaunchAttributes(gen, "")...))
	defer span.End()

	st := s.evaluate(ctx)
	if ctx.Err() != nil {
		span.SetAttributes(attribute.Bool(telemetry.LaunchAbandonedKey, true))
		return
	}
	if s.finalize(ctx, gen, started, st) {
		span.SetAttributes(attribute.String(telemetry.LaunchStateKey, string(st.Kind)))
		if st.Kind == model.KindError {
			span.SetStatus(codes.Error, st.Message)
		}
	} else {
		span.SetAttributes(attribute.Bool(telemetry.LaunchAbandonedKey, true))
	}
}

// evaluate walks session → profile → prefetch and returns the state to
// publish. The caller discards the result if ctx was cancelled meanwhile.
func (s *Sequencer) evaluate(ctx context.Context) model.State {
	logger := log.WithContext(ctx, s.logger)

	sess, err := s.readSession(ctx)
	if err != nil {
		logger.Info().Err(err).Str(log.FieldEvent, "launch.session_error").Msg("session check failed, treating as signed out")
		return model.Unauthenticated()
	}
	if sess == nil || sess.Expired || sess.UserID == uuid.Nil {
		return model.Unauthenticated()
	}
	if ctx.Err() != nil {
		return model.Splash()
	}

	ctx = log.ContextWithUserID(ctx, sess.UserID.String())
	logger = log.WithContext(ctx, s.logger)

	pctx, span := s.tracer.Start(ctx, "launch.profile")
	status, err := s.profiles.FetchStatus(pctx, sess.UserID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "profile fetch failed")
	}
	span.End()

	if err != nil {
		if ctx.Err() != nil {
			return model.Splash()
		}
		if ports.IsUnauthorized(err) {
			span.SetAttributes(telemetry.ErrorAttributes(err, "unauthorized")...)
			logger.Info().Err(err).Str(log.FieldEvent, "launch.profile_unauthorized").Msg("profile fetch rejected credentials")
			return model.Unauthenticated()
		}
		logger.Warn().Err(err).Str(log.FieldEvent, "launch.profile_error").Msg("profile fetch failed")
		return model.Failed(err.Error())
	}

	switch {
	case status == nil:
		return model.AccountDeleted()
	case status.Disabled():
		return model.AccountDisabled(model.DisabledReason)
	case !status.Onboarded():
		return model.OnboardingRequired()
	}

	s.racePrefetch(ctx, sess.UserID)
	return model.AuthenticatedReady()
}

func (s *Sequencer) readSession(ctx context.Context) (*model.Session, error) {
	ctx, span := s.tracer.Start(ctx, "launch.session")
	defer span.End()

	if err := s.session.Refresh(ctx); err != nil {
		logger := log.WithContext(ctx, s.logger)
		logger.Debug().Err(err).Str(log.FieldEvent, "launch.refresh_failed").Msg("session refresh failed, reading current session anyway")
	}
	sess, err := s.session.CurrentSession(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return sess, nil
}

// finalize publishes st once MinSplashDuration has passed since started.
// It returns false if the resolution was superseded before publishing.
func (s *Sequencer) finalize(ctx context.Context, gen uint64, started time.Time, st model.State) bool {
	if wait := s.cfg.MinSplashDuration - time.Since(started); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
	if ctx.Err() != nil {
		return false
	}
	if !s.publishIfCurrent(gen, st) {
		return false
	}
	metrics.ObserveLaunchResolution(string(st.Kind), time.Since(started))
	return true
}

// racePrefetch waits for the prefetch job or MaxPrefetchWait, whichever comes
// first. The job keeps running after the deadline; its only effect is a warm
// cache. Failures are logged and otherwise ignored.
func (s *Sequencer) racePrefetch(ctx context.Context, userID uuid.UUID) {
	if s.prefetch == nil {
		return
	}
	ctx, span := s.tracer.Start(ctx, "launch.prefetch")
	defer span.End()
	logger := log.WithContext(ctx, s.logger)

	done := make(chan error, 1)
	jobCtx := log.ContextWithUserID(s.lifetime, userID.String())
	if !s.spawn(func() { done <- s.prefetch.Run(jobCtx, userID) }) {
		return
	}

	timer := time.NewTimer(s.cfg.MaxPrefetchWait)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			metrics.RecordLaunchPrefetch("failed")
			span.RecordError(err)
			logger.Warn().Err(err).Str(log.FieldEvent, "launch.prefetch_failed").Msg("prefetch failed, continuing launch")
			return
		}
		metrics.RecordLaunchPrefetch("ok")
	case <-timer.C:
		metrics.RecordLaunchPrefetch("timeout")
		span.SetAttributes(attribute.Bool(telemetry.LaunchPrefetchTimeoutKey, true))
		logger.Info().
			Str(log.FieldEvent, "launch.prefetch_timeout").
			Dur(log.FieldDuration, s.cfg.MaxPrefetchWait).
			Msg("prefetch still running, continuing launch")
	case <-ctx.Done():
		metrics.RecordLaunchPrefetch("abandoned")
	}
}

// spawn runs fn on a tracked goroutine unless the sequencer is closed.
func (s *Sequencer) spawn(fn func()) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		fn()
	}()
	return true
}

// claimLocked supersedes the in-flight resolution and returns the context and
// generation for a new one. Callers must hold s.mu.
func (s *Sequencer) claimLocked() (context.Context, uint64) {
	s.supersedeLocked()
	ctx, cancel := context.WithCancel(s.lifetime)
	s.cancel = cancel
	return log.ContextWithGeneration(ctx, s.gen), s.gen
}

// supersedeLocked cancels the in-flight resolution and bumps the generation.
func (s *Sequencer) supersedeLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
		metrics.RecordLaunchSuperseded()
	}
	s.gen++
}

// release cancels the context of generation gen if it is still current.
func (s *Sequencer) release(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Sequencer) publishIfCurrent(gen uint64, st model.State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return false
	}
	s.publishLocked(st)
	return true
}

func (s *Sequencer) publishIfReady(ctx context.Context, gen uint64, st model.State) {
	if ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen || s.state.Kind != model.KindAuthenticatedReady {
		return
	}
	s.publishLocked(st)
}

func (s *Sequencer) publishLocked(st model.State) {
	prev := s.state
	s.state = st
	metrics.RecordLaunchTransition(string(prev.Kind), string(st.Kind))
	s.logger.Info().
		Str(log.FieldEvent, "launch.published").
		Str(log.FieldOldState, prev.String()).
		Str(log.FieldNewState, st.String()).
		Uint64(log.FieldGeneration, s.gen).
		Msg("launch state changed")

	for _, ch := range s.subs {
		select {
		case ch <- st:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- st:
			default:
			}
		}
	}
}
