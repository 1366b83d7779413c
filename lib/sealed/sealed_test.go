// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"bytes"
	"strings"
	"testing"

	"github.com/bureau-foundation/dockhand/lib/secret"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	t.Parallel()

	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	plaintext := []byte(`{"value":"jwt-abc","expires_at":1756100000}`)
	ciphertext, err := Encrypt(plaintext, []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if strings.Contains(ciphertext, "jwt-abc") {
		t.Fatal("ciphertext contains plaintext")
	}

	unsealed, err := Decrypt(ciphertext, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	defer unsealed.Close()

	if !bytes.Equal(unsealed.Bytes(), plaintext) {
		t.Errorf("round trip: got %q, want %q", unsealed.Bytes(), plaintext)
	}
}

func TestEncryptRequiresRecipient(t *testing.T) {
	t.Parallel()

	if _, err := Encrypt([]byte("x"), nil); err == nil {
		t.Fatal("expected error for empty recipient list")
	}
}

func TestEncryptRejectsBadRecipient(t *testing.T) {
	t.Parallel()

	if _, err := Encrypt([]byte("x"), []string{"not-an-age-key"}); err == nil {
		t.Fatal("expected error for malformed recipient key")
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	t.Parallel()

	sealer, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer sealer.Close()

	other, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer other.Close()

	ciphertext, err := Encrypt([]byte("payload"), []string{sealer.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	if _, err := Decrypt(ciphertext, other.PrivateKey); err == nil {
		t.Fatal("expected decryption with unrelated key to fail")
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	t.Parallel()

	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	if _, err := Decrypt("!!!not-base64!!!", keypair.PrivateKey); err == nil {
		t.Fatal("expected error for non-base64 ciphertext")
	}
}

func TestParseKeys(t *testing.T) {
	t.Parallel()

	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	defer keypair.Close()

	if err := ParsePublicKey(keypair.PublicKey); err != nil {
		t.Errorf("ParsePublicKey on generated key: %v", err)
	}
	if err := ParsePublicKey("age1garbage"); err == nil {
		t.Error("ParsePublicKey accepted garbage")
	}
	if err := ParsePrivateKey(keypair.PrivateKey); err != nil {
		t.Errorf("ParsePrivateKey on generated key: %v", err)
	}

	garbage, err := secret.NewFromBytes([]byte("AGE-SECRET-KEY-NOPE"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer garbage.Close()
	if err := ParsePrivateKey(garbage); err == nil {
		t.Error("ParsePrivateKey accepted garbage")
	}
}
