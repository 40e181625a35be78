// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package testkit provides scriptable launch collaborators for tests.
package testkit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ManuGH/society/internal/domain/launch/model"
)

// FakeSession is a scriptable ports.SessionProvider.
type FakeSession struct {
	mu         sync.Mutex
	session    *model.Session
	err        error
	refreshErr error

	refreshCalls atomic.Int32
	readCalls    atomic.Int32
	changes      chan model.Identity
}

// NewFakeSession returns a provider with no signed-in user.
func NewFakeSession() *FakeSession {
	return &FakeSession{changes: make(chan model.Identity)}
}

// SignedIn sets a valid session for userID.
func (f *FakeSession) SignedIn(userID uuid.UUID) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &model.Session{UserID: userID}
	f.err = nil
	return f
}

// Expired sets an expired session for userID.
func (f *FakeSession) Expired(userID uuid.UUID) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &model.Session{UserID: userID, Expired: true}
	return f
}

// SignedOut clears the session.
func (f *FakeSession) SignedOut() *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	return f
}

// FailWith makes CurrentSession return err.
func (f *FakeSession) FailWith(err error) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
	return f
}

// FailRefreshWith makes Refresh return err.
func (f *FakeSession) FailRefreshWith(err error) *FakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshErr = err
	return f
}

func (f *FakeSession) Refresh(ctx context.Context) error {
	f.refreshCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshErr
}

func (f *FakeSession) CurrentSession(ctx context.Context) (*model.Session, error) {
	f.readCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.session == nil {
		return nil, nil
	}
	s := *f.session
	return &s, nil
}

func (f *FakeSession) Watch(ctx context.Context) <-chan model.Identity {
	out := make(chan model.Identity)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case id := <-f.changes:
				select {
				case out <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Emit delivers an identity change to the active watcher. It blocks until a
// watcher takes it or ctx is done.
func (f *FakeSession) Emit(ctx context.Context, id model.Identity) bool {
	select {
	case f.changes <- id:
		return true
	case <-ctx.Done():
		return false
	}
}

// Calls returns how many times Refresh and CurrentSession were called.
func (f *FakeSession) Calls() (refresh, read int32) {
	return f.refreshCalls.Load(), f.readCalls.Load()
}
