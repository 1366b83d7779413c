// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logarchive

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/bureau-foundation/dockhand/lib/secret"
)

// KeySize is the size in bytes of the archive encryption key.
const KeySize = 32

// blobVersion is the format version byte prepended to every sealed
// blob. Included in the AEAD's additional authenticated data, so
// tampering with the version byte causes authentication failure.
const blobVersion byte = 0x01

// blobOverhead is the total byte overhead per sealed blob:
// 1 (version) + 24 (XChaCha20-Poly1305 nonce) + 16 (Poly1305 tag).
const blobOverhead = 1 + chacha20poly1305.NonceSizeX + chacha20poly1305.Overhead

// frameHeaderSize is the header inside the AEAD: a 1-byte compression
// tag followed by the raw log size as a big-endian uint64.
const frameHeaderSize = 1 + 8

// MaxLogSize bounds both the log file Store will archive and the raw
// size a stored frame may declare on the way back out. Compose build
// output runs to tens of megabytes; anything past this bound is a
// runaway process, not a deploy log.
const MaxLogSize = 256 << 20

// Blob layout on disk:
//
//	[version: 1 byte (0x01)] [nonce: 24 bytes (random)] [ciphertext+tag]
//
// The ciphertext opens to a frame:
//
//	[compression tag: 1 byte] [raw size: 8 bytes big-endian] [payload]
//
// The AAD is the version byte followed by the hex digest, binding the
// ciphertext to its content address.

// encryptBlob seals a frame under the archive key using
// XChaCha20-Poly1305 with a random nonce. The key is borrowed and not
// closed.
func encryptBlob(framed []byte, key *secret.Buffer, digest string) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	// Allocate output: version + nonce + ciphertext + tag. Seal
	// appends the ciphertext and tag.
	sealedBlob := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(framed)+aead.Overhead())
	sealedBlob[0] = blobVersion
	copy(sealedBlob[1:], nonce[:])

	return aead.Seal(sealedBlob, nonce[:], framed, blobAAD(blobVersion, digest)), nil
}

// decryptBlob opens a sealed blob produced by encryptBlob. It fails
// when the blob is truncated, carries an unknown version byte, or does
// not authenticate (wrong key, tampered ciphertext, or a digest other
// than the one it was sealed under).
func decryptBlob(sealedBlob []byte, key *secret.Buffer, digest string) ([]byte, error) {
	if len(sealedBlob) < blobOverhead {
		return nil, fmt.Errorf("sealed blob is %d bytes, minimum is %d (version + nonce + tag)",
			len(sealedBlob), blobOverhead)
	}

	version := sealedBlob[0]
	if version != blobVersion {
		return nil, fmt.Errorf("sealed blob version %d is not supported (expected %d)", version, blobVersion)
	}

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := sealedBlob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := sealedBlob[1+chacha20poly1305.NonceSizeX:]

	framed, err := aead.Open(nil, nonce, ciphertext, blobAAD(version, digest))
	if err != nil {
		return nil, fmt.Errorf("authentication failed (wrong key, tampered blob, or mismatched digest): %w", err)
	}
	return framed, nil
}

// blobAAD builds the additional authenticated data for a blob: the
// version byte followed by the hex digest of the plaintext.
func blobAAD(version byte, digest string) []byte {
	aad := make([]byte, 1+len(digest))
	aad[0] = version
	copy(aad[1:], digest)
	return aad
}

// frameLog prefixes a compressed payload with its tag and raw size.
func frameLog(tag CompressionTag, rawSize int, payload []byte) []byte {
	framed := make([]byte, frameHeaderSize+len(payload))
	framed[0] = byte(tag)
	binary.BigEndian.PutUint64(framed[1:frameHeaderSize], uint64(rawSize))
	copy(framed[frameHeaderSize:], payload)
	return framed
}

// parseFrame splits a decrypted frame into its compression tag, raw
// size, and payload. The raw size is bounded by MaxLogSize so a
// corrupt frame cannot demand an absurd decompression allocation.
func parseFrame(framed []byte) (CompressionTag, int, []byte, error) {
	if len(framed) < frameHeaderSize {
		return 0, 0, nil, fmt.Errorf("frame is %d bytes, minimum is %d", len(framed), frameHeaderSize)
	}
	tag := CompressionTag(framed[0])
	rawSize := binary.BigEndian.Uint64(framed[1:frameHeaderSize])
	if rawSize > MaxLogSize {
		return 0, 0, nil, fmt.Errorf("frame declares %d raw bytes, limit is %d", rawSize, MaxLogSize)
	}
	return tag, int(rawSize), framed[frameHeaderSize:], nil
}

// computeDigest returns the lowercase hex BLAKE3 digest of the log
// plaintext. This is the archive's content address.
func computeDigest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// validDigest reports whether a string is a well-formed content
// address: exactly 64 lowercase hex characters. Digests arrive from
// URL paths and become file names, so anything else is rejected
// before it reaches the filesystem.
func validDigest(digest string) bool {
	if len(digest) != 64 {
		return false
	}
	for i := 0; i < len(digest); i++ {
		c := digest[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// LoadKey reads the archive encryption key from a file holding 64 hex
// characters (whitespace around them is ignored). The key is returned
// in guarded memory; the caller owns the buffer.
func LoadKey(path string) (*secret.Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("log archive: reading key file: %w", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	secret.Zero(raw)
	if err != nil {
		return nil, fmt.Errorf("log archive: key file %s is not hex: %w", path, err)
	}
	if len(decoded) != KeySize {
		secret.Zero(decoded)
		return nil, fmt.Errorf("log archive: key in %s is %d bytes, want %d", path, len(decoded), KeySize)
	}
	return secret.NewFromBytes(decoded)
}
