// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"errors"
	"fmt"
)

// ErrNoTokenAvailable is returned when every token tier is empty and
// no credentials are configured to mint a fresh one. This is a
// configuration fault, not a transient failure.
var ErrNoTokenAvailable = errors.New("portainer: no API token available from any source")

// ConfigError reports a missing piece of client configuration,
// discovered at the point an operation first needs it.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("portainer: %s is not configured", e.Missing)
}

// AuthError is the terminal authentication failure: the API rejected
// the request both with the cached token and with a freshly minted
// one. The client never retries past this point.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("portainer: authentication rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("portainer: authentication rejected (status %d): %s", e.StatusCode, e.Message)
}

// APIError is a non-auth failure response from the Portainer API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("portainer: API returned %d: %s", e.StatusCode, e.Message)
}
