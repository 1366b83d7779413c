// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/codec"
	"github.com/bureau-foundation/dockhand/lib/sealed"
	"github.com/bureau-foundation/dockhand/lib/secret"
)

// storeReadInterval bounds how often the durable store is re-read
// from disk. Within the window the in-process copy is served; outside
// it the file is consulted again so a token written by another
// process (or a previous run) is picked up.
const storeReadInterval = 60 * time.Second

// storedToken is the sealed on-disk document.
type storedToken struct {
	Value     string `cbor:"1,keyasint"`
	ExpiresAt int64  `cbor:"2,keyasint"`
	FetchedAt int64  `cbor:"3,keyasint"`
}

// TokenStore persists the API token across restarts, sealed with age
// so a readable file does not leak a live credential. Absent or
// unreadable store content reads as "no token"; only a write fault is
// an error the caller sees.
type TokenStore struct {
	path      string
	identity  *secret.Buffer
	recipient string
	logger    *slog.Logger
}

// TokenStoreOptions configures a TokenStore.
type TokenStoreOptions struct {
	// Path of the sealed token file. Required.
	Path string

	// Identity is the age private key used to unseal. Required. The
	// store borrows the buffer; the owner closes it.
	Identity *secret.Buffer

	// Recipient is the age public key tokens are sealed to. Required.
	Recipient string

	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

// NewTokenStore validates the keys and returns the store.
func NewTokenStore(options TokenStoreOptions) (*TokenStore, error) {
	if options.Path == "" {
		return nil, fmt.Errorf("token store: path is required")
	}
	if options.Identity == nil {
		return nil, fmt.Errorf("token store: identity is required")
	}
	if err := sealed.ParsePrivateKey(options.Identity); err != nil {
		return nil, fmt.Errorf("token store: %w", err)
	}
	if err := sealed.ParsePublicKey(options.Recipient); err != nil {
		return nil, fmt.Errorf("token store: %w", err)
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TokenStore{
		path:      options.Path,
		identity:  options.Identity,
		recipient: options.Recipient,
		logger:    logger,
	}, nil
}

// Load reads and unseals the stored token. A missing file, a file
// sealed to a different key, or a corrupt document all return
// (nil, nil): the durable tier simply has nothing, and resolution
// falls through to the next tier.
func (s *TokenStore) Load() (*Token, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("token store unreadable", "path", s.path, "error", err)
		}
		return nil, nil
	}

	plaintext, err := sealed.Decrypt(string(data), s.identity)
	if err != nil {
		s.logger.Warn("token store cannot be unsealed", "path", s.path, "error", err)
		return nil, nil
	}
	defer plaintext.Close()

	var stored storedToken
	if err := codec.Unmarshal(plaintext.Bytes(), &stored); err != nil {
		s.logger.Warn("token store is corrupt", "path", s.path, "error", err)
		return nil, nil
	}
	if stored.Value == "" {
		return nil, nil
	}

	token := &Token{Value: stored.Value}
	if stored.ExpiresAt != 0 {
		token.ExpiresAt = time.Unix(stored.ExpiresAt, 0)
	}
	if stored.FetchedAt != 0 {
		token.FetchedAt = time.Unix(stored.FetchedAt, 0)
	}
	return token, nil
}

// Save seals the token and writes it atomically with mode 0600.
func (s *TokenStore) Save(token *Token) error {
	stored := storedToken{Value: token.Value}
	if !token.ExpiresAt.IsZero() {
		stored.ExpiresAt = token.ExpiresAt.Unix()
	}
	if !token.FetchedAt.IsZero() {
		stored.FetchedAt = token.FetchedAt.Unix()
	}

	plaintext, err := codec.Marshal(stored)
	if err != nil {
		return fmt.Errorf("token store: encoding token: %w", err)
	}
	ciphertext, err := sealed.Encrypt(plaintext, []string{s.recipient})
	secret.Zero(plaintext)
	if err != nil {
		return fmt.Errorf("token store: sealing token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("token store: creating directory: %w", err)
	}

	temporaryPath := s.path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("token store: creating temporary file: %w", err)
	}
	if _, err := file.WriteString(ciphertext); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("token store: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("token store: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("token store: closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, s.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("token store: renaming into place: %w", err)
	}
	return nil
}

// StoreSource adapts a TokenStore into the resolution chain, serving
// an in-process copy between disk reads.
type StoreSource struct {
	store *TokenStore
	clock clock.Clock

	mu     sync.Mutex
	cached *Token
	readAt time.Time
}

// NewStoreSource wraps a TokenStore.
func NewStoreSource(store *TokenStore, clk clock.Clock) *StoreSource {
	if clk == nil {
		clk = clock.Real()
	}
	return &StoreSource{store: store, clock: clk}
}

func (s *StoreSource) Token(ctx context.Context) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.cached != nil && now.Sub(s.readAt) < storeReadInterval {
		token := *s.cached
		return &token, nil
	}

	token, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	s.cached = token
	s.readAt = now
	if token == nil {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

// put persists a freshly minted token and installs it as the cached
// copy. Persist failure is logged and swallowed: losing durability
// costs one extra authentication after a restart, which is cheaper
// than failing the refresh that just succeeded.
func (s *StoreSource) put(token *Token) {
	if err := s.store.Save(token); err != nil {
		s.store.logger.Warn("token store write failed", "path", s.store.path, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *token
	s.cached = &copied
	s.readAt = s.clock.Now()
}

// dropCache forgets the in-window copy so the next read consults the
// disk again. Called when the API rejects the cached token.
func (s *StoreSource) dropCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = nil
	s.readAt = time.Time{}
}
