// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/sealed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newTestStore returns a store backed by a fresh keypair and a path
// in a test tempdir.
func newTestStore(t *testing.T) *TokenStore {
	t.Helper()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { keypair.Close() })

	store, err := NewTokenStore(TokenStoreOptions{
		Path:      filepath.Join(t.TempDir(), "token.sealed"),
		Identity:  keypair.PrivateKey,
		Recipient: keypair.PublicKey,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestTokenStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	saved := &Token{
		Value:     "jwt-value",
		ExpiresAt: time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC),
		FetchedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil for a just-saved token")
	}
	if loaded.Value != saved.Value {
		t.Errorf("Value = %q, want %q", loaded.Value, saved.Value)
	}
	if !loaded.ExpiresAt.Equal(saved.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", loaded.ExpiresAt, saved.ExpiresAt)
	}
	if !loaded.FetchedAt.Equal(saved.FetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", loaded.FetchedAt, saved.FetchedAt)
	}
}

func TestTokenStoreFileIsPrivateAndSealed(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := store.Save(&Token{Value: "super-secret-jwt"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(store.path)
	if err != nil {
		t.Fatal(err)
	}
	if mode := info.Mode().Perm(); mode != fs.FileMode(0o600) {
		t.Errorf("file mode = %o, want 600", mode)
	}

	raw, err := os.ReadFile(store.path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "super-secret-jwt") {
		t.Error("token value appears in plaintext in the store file")
	}
}

func TestTokenStoreMissingFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	token, err := store.Load()
	if err != nil || token != nil {
		t.Errorf("Load on missing file = (%v, %v), want (nil, nil)", token, err)
	}
}

func TestTokenStoreCorruptFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	if err := os.WriteFile(store.path, []byte("not a sealed document"), 0o600); err != nil {
		t.Fatal(err)
	}

	token, err := store.Load()
	if err != nil || token != nil {
		t.Errorf("Load on corrupt file = (%v, %v), want (nil, nil)", token, err)
	}
}

func TestTokenStoreWrongIdentity(t *testing.T) {
	t.Parallel()

	writer := newTestStore(t)
	if err := writer.Save(&Token{Value: "sealed-to-writer"}); err != nil {
		t.Fatal(err)
	}

	otherKeys, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer otherKeys.Close()

	reader, err := NewTokenStore(TokenStoreOptions{
		Path:      writer.path,
		Identity:  otherKeys.PrivateKey,
		Recipient: otherKeys.PublicKey,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	token, err := reader.Load()
	if err != nil || token != nil {
		t.Errorf("Load with wrong identity = (%v, %v), want (nil, nil)", token, err)
	}
}

func TestNewTokenStoreRejectsBadKeys(t *testing.T) {
	t.Parallel()

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	defer keypair.Close()

	_, err = NewTokenStore(TokenStoreOptions{
		Path:      filepath.Join(t.TempDir(), "token.sealed"),
		Identity:  keypair.PrivateKey,
		Recipient: "age1not-a-real-recipient",
	})
	if err == nil {
		t.Error("NewTokenStore accepted a malformed recipient key")
	}
}

func TestStoreSourceServesWithinWindow(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fakeClock := clock.Fake(start)
	source := NewStoreSource(store, fakeClock)

	first := &Token{Value: "v1", ExpiresAt: start.Add(8 * time.Hour)}
	if err := store.Save(first); err != nil {
		t.Fatal(err)
	}

	token, err := source.Token(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if token.Value != "v1" {
		t.Fatalf("Value = %q, want v1", token.Value)
	}

	// Replace the on-disk token. Within the read window the source
	// keeps serving its copy; after the window it picks up the new
	// content.
	second := &Token{Value: "v2", ExpiresAt: start.Add(8 * time.Hour)}
	if err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	fakeClock.Advance(30 * time.Second)
	token, err = source.Token(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if token.Value != "v1" {
		t.Errorf("Value inside window = %q, want the cached v1", token.Value)
	}

	fakeClock.Advance(31 * time.Second)
	token, err = source.Token(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if token.Value != "v2" {
		t.Errorf("Value after window = %q, want the re-read v2", token.Value)
	}
}

func TestStoreSourceDropCache(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	source := NewStoreSource(store, fakeClock)

	if err := store.Save(&Token{Value: "v1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := source.Token(t.Context()); err != nil {
		t.Fatal(err)
	}

	if err := store.Save(&Token{Value: "v2"}); err != nil {
		t.Fatal(err)
	}

	source.dropCache()
	token, err := source.Token(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if token.Value != "v2" {
		t.Errorf("Value after dropCache = %q, want immediate re-read v2", token.Value)
	}
}

func TestStoreSourcePut(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	fakeClock := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	source := NewStoreSource(store, fakeClock)

	minted := &Token{Value: "fresh", FetchedAt: fakeClock.Now()}
	source.put(minted)

	// Served from the window cache.
	token, err := source.Token(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if token.Value != "fresh" {
		t.Errorf("cached Value = %q, want fresh", token.Value)
	}

	// And durable: a brand-new source reading the same store file
	// sees it too.
	other := NewStoreSource(store, fakeClock)
	token, err = other.Token(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if token == nil || token.Value != "fresh" {
		t.Errorf("durable token = %v, want fresh", token)
	}
}
