/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (

	// Caller errors, returned directly from sync/clear/run-now.

	ErrValidation = errors.New("validation error")
	ErrOwnership  = errors.New("caller does not own node")
	ErrNotFound   = errors.New("not found")

	// Fatal to the current operation.

	ErrEncryption      = errors.New("encryption error")
	ErrVersionConflict = errors.New("config version conflict")
	ErrNotConfigured   = errors.New("node has no server config")

	// Soft cycle errors, accumulated into PollResult.Errors.

	ErrSourceFetch      = errors.New("source fetch failed")
	ErrActionExecution  = errors.New("action execution failed")
	ErrCredentials      = errors.New("credentials unavailable")
	ErrSinkUnresolvable = errors.New("spreadsheet sink could not be resolved")

	// Single-flight.

	ErrCycleInProgress = errors.New("cycle already running for node")
	ErrLeaseHeld       = errors.New("lease held by another worker")
)

// ValidationError describes one malformed field of a sync request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (*ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationErrors aggregates field errors.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}

	return "validation failed: " + strings.Join(parts, "; ")
}

func (ValidationErrors) Unwrap() error {
	return ErrValidation
}

// Err returns nil for an empty list.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}

	return v
}

// ErrorClass maps an error to a short, content-free label for logs and
// audit fields.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrOwnership):
		return "ownership"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrEncryption):
		return "encryption"
	case errors.Is(err, ErrVersionConflict):
		return "version_conflict"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrCredentials):
		return "credentials"
	case errors.Is(err, ErrSourceFetch):
		return "source_fetch"
	case errors.Is(err, ErrSinkUnresolvable):
		return "sink_unresolvable"
	case errors.Is(err, ErrActionExecution):
		return "action_execution"
	case errors.Is(err, ErrCycleInProgress), errors.Is(err, ErrLeaseHeld):
		return "cycle_in_progress"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}
