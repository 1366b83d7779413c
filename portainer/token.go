// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

// defaultTokenValidity is assumed when the API's token does not carry
// a decodable exp claim. Portainer documents its JWTs as valid for
// eight hours.
const defaultTokenValidity = 8 * time.Hour

// Token is one container-API bearer token with its validity window.
// A zero ExpiresAt means the token never expires (static tokens).
type Token struct {
	Value     string
	ExpiresAt time.Time
	FetchedAt time.Time
}

// Expired reports whether the token is past its validity window at
// the given instant.
func (t *Token) Expired(now time.Time) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}

// TokenSource is one tier of the token resolution chain. Returning
// (nil, nil) means the tier has nothing to offer; resolution moves on
// to the next tier. Expiry is checked by the caller, not the source.
type TokenSource interface {
	Token(ctx context.Context) (*Token, error)
}

// StaticSource serves a fixed token, typically provided through the
// environment as a break-glass fallback. It never expires and is
// always the last tier consulted.
type StaticSource struct {
	token Token
}

// NewStaticSource wraps a literal token value. An empty value yields
// a source that always reports nothing.
func NewStaticSource(value string) *StaticSource {
	return &StaticSource{token: Token{Value: value}}
}

func (s *StaticSource) Token(ctx context.Context) (*Token, error) {
	if s.token.Value == "" {
		return nil, nil
	}
	token := s.token
	return &token, nil
}

// memorySource holds the token minted by the most recent successful
// refresh. It outranks the static fallback but not the durable store,
// and is cleared when the API rejects its token.
type memorySource struct {
	mu    sync.Mutex
	token *Token
}

func (s *memorySource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil {
		return nil, nil
	}
	token := *s.token
	return &token, nil
}

func (s *memorySource) set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.token = &copied
}

func (s *memorySource) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = nil
}

// tokenExpiry derives a token's expiry: the JWT exp claim when the
// value is a decodable JWT, otherwise fetchedAt plus the documented
// validity window. The claim is read without signature verification;
// this client is the token's consumer, not its verifier, and only
// needs to know when to refresh.
func tokenExpiry(value string, fetchedAt time.Time) time.Time {
	if exp, ok := jwtExpiry(value); ok {
		return exp
	}
	return fetchedAt.Add(defaultTokenValidity)
}

func jwtExpiry(value string) (time.Time, bool) {
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, false
	}
	var claims struct {
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, false
	}
	return time.Unix(claims.Exp, 0), true
}
