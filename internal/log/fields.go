// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldUserID      = "user_id"
	FieldRequestID   = "request_id"
	FieldGeneration  = "launch_generation"
	FieldSessionFile = "session_file"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldDuration  = "duration"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldBaseURL = "base_url"
	FieldStatus  = "status"
	FieldTable   = "table"
)
