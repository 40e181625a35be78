// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Kind discriminates the launch states the app can be in.
type Kind string

const (
	KindSplash             Kind = "splash"
	KindUnauthenticated    Kind = "unauthenticated"
	KindOnboardingRequired Kind = "onboarding_required"
	KindAuthenticatedReady Kind = "authenticated_ready"
	KindAccountDeleted     Kind = "account_deleted"
	KindAccountDisabled    Kind = "account_disabled"
	KindError              Kind = "error"
)

// DisabledReason is shown for inactive or soft-deleted accounts.
const DisabledReason = "Your account is disabled."

// State is the single externally observable output of the launch sequencer.
// Only AccountDisabled carries Reason and only Error carries Message.
type State struct {
	Kind    Kind   `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func Splash() State             { return State{Kind: KindSplash} }
func Unauthenticated() State    { return State{Kind: KindUnauthenticated} }
func OnboardingRequired() State { return State{Kind: KindOnboardingRequired} }
func AuthenticatedReady() State { return State{Kind: KindAuthenticatedReady} }
func AccountDeleted() State     { return State{Kind: KindAccountDeleted} }

// AccountDisabled returns the disabled state carrying a user-facing reason.
func AccountDisabled(reason string) State {
	return State{Kind: KindAccountDisabled, Reason: reason}
}

// Failed returns the error state carrying a user-facing message.
func Failed(message string) State {
	return State{Kind: KindError, Message: message}
}

// IsTerminal reports whether the state stays put until the next Start.
func (s State) IsTerminal() bool {
	switch s.Kind {
	case KindAccountDeleted, KindAccountDisabled, KindError:
		return true
	}
	return false
}

func (s State) String() string {
	switch s.Kind {
	case KindAccountDisabled:
		return string(s.Kind) + "(" + s.Reason + ")"
	case KindError:
		return string(s.Kind) + "(" + s.Message + ")"
	}
	return string(s.Kind)
}
