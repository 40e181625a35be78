// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// PostgREST codes for a missing, malformed or expired JWT.
const (
	CodeJWTInvalid = "PGRST301"
	CodeJWTMissing = "PGRST302"
	CodeJWTClaims  = "PGRST303"
)

// Error is a non-2xx answer from auth or PostgREST.
type Error struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Hint       string `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Code != "" {
		return fmt.Sprintf("supabase %d %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("supabase %d: %s", e.StatusCode, msg)
}

// Unauthorized reports whether the credentials were rejected.
func (e *Error) Unauthorized() bool {
	if e.StatusCode == http.StatusUnauthorized {
		return true
	}
	switch e.Code {
	case CodeJWTInvalid, CodeJWTMissing, CodeJWTClaims:
		return true
	}
	return false
}

// parseError understands both PostgREST ({code,message,details,hint}) and
// GoTrue ({error,error_description} or {msg}) bodies.
func parseError(body []byte, status int) error {
	var raw struct {
		Code             json.RawMessage `json:"code"`
		Message          string          `json:"message"`
		Msg              string          `json:"msg"`
		Details          string          `json:"details"`
		Hint             string          `json:"hint"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
		ErrorCode        string          `json:"error_code"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return &Error{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}

	e := &Error{StatusCode: status, Details: raw.Details, Hint: raw.Hint}
	// GoTrue sends a numeric code next to error_code; PostgREST a string.
	var code string
	if json.Unmarshal(raw.Code, &code) == nil {
		e.Code = code
	}
	if e.Code == "" {
		e.Code = raw.ErrorCode
	}
	for _, m := range []string{raw.Message, raw.Msg, raw.ErrorDescription, raw.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	return e
}
