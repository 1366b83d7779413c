// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import "fmt"

// ValidationKind classifies why a request was rejected before
// execution.
type ValidationKind string

const (
	// ValidationInvalidOperation means the operation is not one of
	// the recognized values.
	ValidationInvalidOperation ValidationKind = "invalid_operation"

	// ValidationNotAllowlisted means a populated target field is
	// absent from the corresponding allowlist set.
	ValidationNotAllowlisted ValidationKind = "not_allowlisted"

	// ValidationMissingTarget means the operation requires a target
	// field that the request did not populate.
	ValidationMissingTarget ValidationKind = "missing_target"

	// ValidationMalformed means the request body itself is unusable
	// (empty command, undecodable JSON).
	ValidationMalformed ValidationKind = "malformed"
)

// ValidationError rejects a request before any process is spawned.
// The HTTP layer maps ValidationNotAllowlisted to 403 and the other
// kinds to 400; validation failures are never retried.
type ValidationError struct {
	Kind  ValidationKind
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case ValidationInvalidOperation:
		return fmt.Sprintf("unknown operation %q", e.Value)
	case ValidationNotAllowlisted:
		return fmt.Sprintf("%s %q is not allowlisted", e.Field, e.Value)
	case ValidationMissingTarget:
		return fmt.Sprintf("operation %s requires target field %s", e.Value, e.Field)
	case ValidationMalformed:
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Value)
	default:
		return fmt.Sprintf("invalid request: %s %q", e.Field, e.Value)
	}
}

// BlockedError rejects a shell command that matched the destructive
// blocklist. The command was not executed.
type BlockedError struct {
	// Reason names the matched rule, e.g. "recursive root deletion".
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("command blocked: %s", e.Reason)
}

// APIError is returned by Client methods when the gateway responds
// with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}
