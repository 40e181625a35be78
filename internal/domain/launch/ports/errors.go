// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ports

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
)

// ErrUnauthorized marks an adapter failure caused by a missing, expired or
// rejected credential. The sequencer treats it as a sign-out.
var ErrUnauthorized = errors.New("unauthorized")

// Unauthorizer is implemented by typed adapter errors that know whether they
// were caused by an auth failure (e.g. HTTP 401).
type Unauthorizer interface {
	Unauthorized() bool
}

// unauthorizedTokens catch auth-shaped messages from adapters that do not
// return a typed error.
var unauthorizedTokens = []string{"unauthorized", "jwt", "401", "auth"}

// IsUnauthorized reports whether err means the credentials are gone, in which
// case the launch flow signs the user out instead of showing an error.
//
// Typed classification wins: ErrUnauthorized or an error implementing
// Unauthorizer decide on their own. Only unclassified errors fall back
// to a case-insensitive token match on the message.
func IsUnauthorized(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) {
		return true
	}
	var u Unauthorizer
	if errors.As(err, &u) {
		return u.Unauthorized()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// cases.Caser is stateful; one per call.
	msg := cases.Fold().String(err.Error())
	for _, tok := range unauthorizedTokens {
		if strings.Contains(msg, tok) {
			return true
		}
	}
	return false
}
