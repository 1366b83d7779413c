// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logarchive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/secret"
	"github.com/bureau-foundation/dockhand/lib/sqlitepool"
)

// tmpDir is the staging directory inside the archive root. Blobs are
// written there and renamed into their shard, so a crash mid-write
// never leaves a partial blob at a content address.
const tmpDir = "tmp"

// blobExtension is the suffix of archived deploy log files.
const blobExtension = ".dlog"

// DefaultListLimit is the number of records List returns when the
// caller does not ask for a specific limit.
const DefaultListLimit = 100

// ErrNotFound is returned by Open when the digest has no index entry.
var ErrNotFound = errors.New("log archive: digest not found")

// ErrBadDigest is returned when a digest is not 64 lowercase hex
// characters. Digests come from URL paths, so this is the malformed
// request case rather than a miss.
var ErrBadDigest = errors.New("log archive: digest must be 64 lowercase hex characters")

// CorruptBlobError reports that a blob failed integrity checks on the
// read path: the file is missing, fails AEAD authentication, carries
// a malformed frame, does not decompress, or decompresses to content
// whose digest differs from its address.
type CorruptBlobError struct {
	Digest string
	Reason string
}

func (e *CorruptBlobError) Error() string {
	return fmt.Sprintf("log archive: blob %s is corrupt: %s", e.Digest, e.Reason)
}

// ArchiveRecord is one row of the archive index: the metadata for a
// single archived deploy log.
type ArchiveRecord struct {
	// Digest is the lowercase hex BLAKE3 digest of the log plaintext,
	// the content address of the blob.
	Digest string `json:"digest"`

	// Project is the compose project the deploy belonged to.
	Project string `json:"project"`

	// LogFile is the path of the deploy log this blob was archived
	// from. Informational; the file is typically deleted or rotated
	// after archival.
	LogFile string `json:"log_file"`

	// RawSize is the plaintext size in bytes.
	RawSize int64 `json:"raw_size"`

	// StoredSize is the sealed blob size in bytes as written to disk.
	StoredSize int64 `json:"stored_size"`

	// Compression names the algorithm the plaintext was stored with
	// ("none", "lz4", or "zstd").
	Compression string `json:"compression"`

	// TimedOut records whether the deploy's log stream hit its poll
	// budget before the process exited.
	TimedOut bool `json:"timed_out"`

	// CreatedAt is when the log was archived, at second precision.
	CreatedAt time.Time `json:"created_at"`
}

// Options configures an Archive.
type Options struct {
	// Dir is the blob directory root. Created if it does not exist.
	Dir string

	// IndexPath is the SQLite index file. The parent directory must
	// exist.
	IndexPath string

	// Key is the 32-byte archive encryption key, typically from
	// [LoadKey]. The archive owns the buffer once Open succeeds and
	// closes it with Close.
	Key *secret.Buffer

	// PoolSize is the SQLite connection pool size. Defaults to 4.
	PoolSize int

	// Clock provides archival timestamps. Defaults to the real clock.
	Clock clock.Clock

	// Logger receives operational messages. Defaults to
	// [slog.Default].
	Logger *slog.Logger
}

// Archive is a content-addressed store of sealed deploy logs plus the
// SQLite index describing them. Safe for concurrent use.
type Archive struct {
	dir    string
	key    *secret.Buffer
	pool   *sqlitepool.Pool
	clock  clock.Clock
	logger *slog.Logger
}

// Open creates the archive directories if needed, opens the index,
// and ensures its schema. The caller must Close the archive when done.
func Open(options Options) (*Archive, error) {
	if options.Dir == "" {
		return nil, fmt.Errorf("log archive: Dir is required")
	}
	if options.IndexPath == "" {
		return nil, fmt.Errorf("log archive: IndexPath is required")
	}
	if options.Key == nil {
		return nil, fmt.Errorf("log archive: Key is required")
	}
	if options.Key.Len() != KeySize {
		return nil, fmt.Errorf("log archive: key must be %d bytes, got %d", KeySize, options.Key.Len())
	}

	for _, dir := range []string{options.Dir, filepath.Join(options.Dir, tmpDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("log archive: creating directory %s: %w", dir, err)
		}
	}

	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := openIndexPool(options.IndexPath, options.PoolSize, logger)
	if err != nil {
		return nil, err
	}

	return &Archive{
		dir:    options.Dir,
		key:    options.Key,
		pool:   pool,
		clock:  clk,
		logger: logger,
	}, nil
}

// Close releases the index pool and zeroes the archive key.
func (a *Archive) Close() error {
	return errors.Join(a.pool.Close(), a.key.Close())
}

// Store archives a completed deploy log. It reads the log file,
// compresses and seals it, writes the blob to its content address,
// and records it in the index. Re-archiving content that is already
// stored returns the existing record unchanged.
func (a *Archive) Store(ctx context.Context, project, logPath string, timedOut bool) (ArchiveRecord, error) {
	if project == "" {
		return ArchiveRecord{}, fmt.Errorf("log archive: project is required")
	}

	info, err := os.Stat(logPath)
	if err != nil {
		return ArchiveRecord{}, fmt.Errorf("log archive: reading deploy log: %w", err)
	}
	if info.Size() > MaxLogSize {
		return ArchiveRecord{}, fmt.Errorf("log archive: deploy log is %d bytes, limit is %d", info.Size(), MaxLogSize)
	}
	plaintext, err := os.ReadFile(logPath)
	if err != nil {
		return ArchiveRecord{}, fmt.Errorf("log archive: reading deploy log: %w", err)
	}

	digest := computeDigest(plaintext)

	// Identical content from an earlier deploy keeps its original
	// record; the blob at that address is already this log.
	existing, found, err := a.getRecord(ctx, digest)
	if err != nil {
		return ArchiveRecord{}, err
	}
	if found {
		return existing, nil
	}

	payload, tag := compressLog(plaintext)
	sealedBlob, err := encryptBlob(frameLog(tag, len(plaintext), payload), a.key, digest)
	if err != nil {
		return ArchiveRecord{}, fmt.Errorf("log archive: sealing blob: %w", err)
	}

	if err := a.writeBlobFile(digest, sealedBlob); err != nil {
		return ArchiveRecord{}, err
	}

	record := ArchiveRecord{
		Digest:      digest,
		Project:     project,
		LogFile:     logPath,
		RawSize:     int64(len(plaintext)),
		StoredSize:  int64(len(sealedBlob)),
		Compression: tag.String(),
		TimedOut:    timedOut,
		CreatedAt:   a.clock.Now().UTC().Truncate(time.Second),
	}
	if err := a.insertRecord(ctx, record); err != nil {
		return ArchiveRecord{}, err
	}

	a.logger.Info("deploy log archived",
		"digest", digest[:12],
		"project", project,
		"raw_size", record.RawSize,
		"stored_size", record.StoredSize,
		"compression", record.Compression,
	)
	return record, nil
}

// Open retrieves an archived log by digest. It decrypts and
// decompresses the blob, verifies the content still matches its
// address, and returns the plaintext alongside the index record.
func (a *Archive) Open(ctx context.Context, digest string) ([]byte, ArchiveRecord, error) {
	if !validDigest(digest) {
		return nil, ArchiveRecord{}, ErrBadDigest
	}

	record, found, err := a.getRecord(ctx, digest)
	if err != nil {
		return nil, ArchiveRecord{}, err
	}
	if !found {
		return nil, ArchiveRecord{}, ErrNotFound
	}

	sealedBlob, err := os.ReadFile(a.blobPath(digest))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ArchiveRecord{}, &CorruptBlobError{Digest: digest, Reason: "blob file is missing"}
		}
		return nil, ArchiveRecord{}, fmt.Errorf("log archive: reading blob: %w", err)
	}

	framed, err := decryptBlob(sealedBlob, a.key, digest)
	if err != nil {
		return nil, ArchiveRecord{}, &CorruptBlobError{Digest: digest, Reason: err.Error()}
	}
	tag, rawSize, payload, err := parseFrame(framed)
	if err != nil {
		return nil, ArchiveRecord{}, &CorruptBlobError{Digest: digest, Reason: err.Error()}
	}
	plaintext, err := decompressLog(payload, tag, rawSize)
	if err != nil {
		return nil, ArchiveRecord{}, &CorruptBlobError{Digest: digest, Reason: err.Error()}
	}
	if computeDigest(plaintext) != digest {
		return nil, ArchiveRecord{}, &CorruptBlobError{Digest: digest, Reason: "content does not match its digest"}
	}

	return plaintext, record, nil
}

// List returns the newest records first, up to limit (DefaultListLimit
// when limit is zero or negative).
func (a *Archive) List(ctx context.Context, limit int) ([]ArchiveRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return a.listRecords(ctx, limit)
}

// blobPath returns the content address of a digest on disk:
// <dir>/<digest[:2]>/<digest>.dlog.
func (a *Archive) blobPath(digest string) string {
	return filepath.Join(a.dir, digest[:2], digest+blobExtension)
}

// writeBlobFile writes a sealed blob to its content address via the
// staging directory and an atomic rename. If the address is already
// occupied the existing blob is kept: same digest, same plaintext.
func (a *Archive) writeBlobFile(digest string, sealedBlob []byte) error {
	stagingFile, err := os.CreateTemp(filepath.Join(a.dir, tmpDir), "blob-*"+blobExtension)
	if err != nil {
		return fmt.Errorf("log archive: creating staging file: %w", err)
	}
	stagingPath := stagingFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(stagingPath)
		}
	}()

	if _, err := stagingFile.Write(sealedBlob); err != nil {
		stagingFile.Close()
		return fmt.Errorf("log archive: writing staging file: %w", err)
	}
	if err := stagingFile.Sync(); err != nil {
		stagingFile.Close()
		return fmt.Errorf("log archive: syncing staging file: %w", err)
	}
	if err := stagingFile.Close(); err != nil {
		return fmt.Errorf("log archive: closing staging file: %w", err)
	}

	finalPath := a.blobPath(digest)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("log archive: creating shard directory: %w", err)
	}

	if _, err := os.Stat(finalPath); err == nil {
		os.Remove(stagingPath)
		success = true
		return nil
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		return fmt.Errorf("log archive: renaming blob into place: %w", err)
	}
	success = true
	return nil
}
