// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package testkit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ManuGH/society/internal/domain/launch/model"
)

// ProfileFunc scripts one FetchStatus call. call starts at 1.
type ProfileFunc func(ctx context.Context, call int, userID uuid.UUID) (*model.ProfileStatus, error)

// FakeProfiles is a scriptable ports.ProfileLookup.
type FakeProfiles struct {
	mu    sync.Mutex
	fn    ProfileFunc
	calls atomic.Int32
}

// NewFakeProfiles returns a lookup that answers every call with status.
func NewFakeProfiles(status *model.ProfileStatus) *FakeProfiles {
	f := &FakeProfiles{}
	f.Returns(status, nil)
	return f
}

// Returns answers every call with status and err.
func (f *FakeProfiles) Returns(status *model.ProfileStatus, err error) *FakeProfiles {
	return f.Script(func(context.Context, int, uuid.UUID) (*model.ProfileStatus, error) {
		if status == nil {
			return nil, err
		}
		s := *status
		return &s, err
	})
}

// Script replaces the behaviour with fn.
func (f *FakeProfiles) Script(fn ProfileFunc) *FakeProfiles {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = fn
	return f
}

func (f *FakeProfiles) FetchStatus(ctx context.Context, userID uuid.UUID) (*model.ProfileStatus, error) {
	call := int(f.calls.Add(1))
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, call, userID)
}

// Calls returns the number of FetchStatus calls.
func (f *FakeProfiles) Calls() int {
	return int(f.calls.Load())
}

// Active returns an active, onboarded profile.
func Active() *model.ProfileStatus {
	t := true
	return &model.ProfileStatus{IsActive: &t, OnboardingCompleted: &t}
}

// NotOnboarded returns an active profile that has not finished onboarding.
func NotOnboarded() *model.ProfileStatus {
	t, f := true, false
	return &model.ProfileStatus{IsActive: &t, OnboardingCompleted: &f}
}

// Inactive returns a profile flagged inactive.
func Inactive() *model.ProfileStatus {
	f := false
	return &model.ProfileStatus{IsActive: &f}
}
