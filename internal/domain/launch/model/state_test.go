// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestProfileStatusDefaults(t *testing.T) {
	deletedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		status    ProfileStatus
		active    bool
		onboarded bool
		disabled  bool
	}{
		{name: "all absent", status: ProfileStatus{}, active: true, onboarded: false, disabled: false},
		{name: "inactive", status: ProfileStatus{IsActive: boolPtr(false)}, active: false, disabled: true},
		{name: "soft deleted", status: ProfileStatus{IsActive: boolPtr(true), DeletedAt: &deletedAt}, active: true, disabled: true},
		{name: "onboarded", status: ProfileStatus{OnboardingCompleted: boolPtr(true)}, active: true, onboarded: true},
		{name: "explicitly not onboarded", status: ProfileStatus{OnboardingCompleted: boolPtr(false)}, active: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.active, tt.status.Active())
			assert.Equal(t, tt.onboarded, tt.status.Onboarded())
			assert.Equal(t, tt.disabled, tt.status.Disabled())
		})
	}
}

func TestProfileStatusDecodesNulls(t *testing.T) {
	var st ProfileStatus
	require.NoError(t, json.Unmarshal([]byte(`{"is_active":null,"deleted_at":null,"onboarding_completed":null}`), &st))
	assert.True(t, st.Active())
	assert.False(t, st.Onboarded())
	assert.False(t, st.Disabled())
}

func TestStatePayloads(t *testing.T) {
	assert.Equal(t, State{Kind: KindAccountDisabled, Reason: DisabledReason}, AccountDisabled(DisabledReason))
	assert.Equal(t, State{Kind: KindError, Message: "boom"}, Failed("boom"))
	assert.Equal(t, "error(boom)", Failed("boom").String())
	assert.Equal(t, "splash", Splash().String())

	assert.True(t, AccountDeleted().IsTerminal())
	assert.True(t, Failed("x").IsTerminal())
	assert.False(t, AuthenticatedReady().IsTerminal())
	assert.False(t, Splash().IsTerminal())
}

func TestStateJSONOmitsEmptyPayload(t *testing.T) {
	b, err := json.Marshal(Unauthenticated())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"unauthenticated"}`, string(b))
}

func TestIdentityPresent(t *testing.T) {
	assert.False(t, Identity{}.Present())
	assert.True(t, Identity{UserID: uuid.New()}.Present())
}

func TestConfigWithDefaults(t *testing.T) {
	c := Config{}.WithDefaults()
	assert.Equal(t, DefaultMinSplashDuration, c.MinSplashDuration)
	assert.Equal(t, DefaultMaxPrefetchWait, c.MaxPrefetchWait)

	c = Config{MinSplashDuration: -time.Second, MaxPrefetchWait: time.Second}.WithDefaults()
	assert.Equal(t, time.Duration(0), c.MinSplashDuration)
	assert.Equal(t, time.Second, c.MaxPrefetchWait)
}
