// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logarchive

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/secret"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestArchive(t *testing.T) (*Archive, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	dir := t.TempDir()

	archive, err := Open(Options{
		Dir:       filepath.Join(dir, "blobs"),
		IndexPath: filepath.Join(dir, "index.db"),
		Key:       testKey(t),
		Clock:     fakeClock,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	t.Cleanup(func() { archive.Close() })
	return archive, fakeClock
}

// writeLogFile drops a deploy log into a fresh temp dir and returns
// its path.
func writeLogFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploy-shop-1741600000.log")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing log file: %v", err)
	}
	return path
}

func TestArchiveStoreAndOpen(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	content := deployLogSample(400)
	logPath := writeLogFile(t, content)

	record, err := archive.Store(t.Context(), "shop", logPath, false)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	if !validDigest(record.Digest) {
		t.Errorf("record digest %q is not a valid content address", record.Digest)
	}
	if record.Project != "shop" {
		t.Errorf("record project = %q, want %q", record.Project, "shop")
	}
	if record.LogFile != logPath {
		t.Errorf("record log file = %q, want %q", record.LogFile, logPath)
	}
	if record.RawSize != int64(len(content)) {
		t.Errorf("record raw size = %d, want %d", record.RawSize, len(content))
	}
	if record.Compression != "lz4" {
		t.Errorf("record compression = %q, want lz4 for repetitive log text", record.Compression)
	}
	if record.StoredSize >= record.RawSize {
		t.Errorf("stored size %d is not smaller than raw size %d", record.StoredSize, record.RawSize)
	}
	if record.TimedOut {
		t.Error("record timed_out = true, want false")
	}

	plaintext, opened, err := archive.Open(t.Context(), record.Digest)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !bytes.Equal(plaintext, content) {
		t.Error("Open returned different content than was stored")
	}
	if opened != record {
		t.Errorf("Open record = %+v, want %+v", opened, record)
	}
}

func TestArchiveBlobLayout(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	content := []byte("secret-deploy-marker water-pump restarted\n")
	logPath := writeLogFile(t, content)

	record, err := archive.Store(t.Context(), "pump", logPath, false)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	blobPath := filepath.Join(archive.dir, record.Digest[:2], record.Digest+".dlog")
	raw, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("blob is not at its content address: %v", err)
	}
	if bytes.Contains(raw, []byte("secret-deploy-marker")) {
		t.Error("blob on disk contains the log plaintext")
	}
}

func TestArchiveStoreIdempotent(t *testing.T) {
	t.Parallel()

	archive, fakeClock := newTestArchive(t)
	content := deployLogSample(100)

	first, err := archive.Store(t.Context(), "shop", writeLogFile(t, content), false)
	if err != nil {
		t.Fatalf("first Store failed: %v", err)
	}

	// A later deploy produced byte-identical output.
	fakeClock.Advance(2 * time.Hour)
	second, err := archive.Store(t.Context(), "shop", writeLogFile(t, content), true)
	if err != nil {
		t.Fatalf("second Store failed: %v", err)
	}

	if second != first {
		t.Errorf("re-archiving identical content returned %+v, want the original record %+v", second, first)
	}

	records, err := archive.List(t.Context(), 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("index has %d records after re-archiving, want 1", len(records))
	}
}

func TestArchiveOpenUnknownDigest(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	_, _, err := archive.Open(t.Context(), computeDigest([]byte("never stored")))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Open(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestArchiveOpenMalformedDigest(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	for _, digest := range []string{"", "abc", "../escape", "ABCDEF"} {
		if _, _, err := archive.Open(t.Context(), digest); !errors.Is(err, ErrBadDigest) {
			t.Errorf("Open(%q) error = %v, want ErrBadDigest", digest, err)
		}
	}
}

func TestArchiveOpenTamperedBlob(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	record, err := archive.Store(t.Context(), "shop", writeLogFile(t, deployLogSample(50)), false)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	blobPath := archive.blobPath(record.Digest)
	raw, err := os.ReadFile(blobPath)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	raw[len(raw)/2] ^= 0x40
	if err := os.WriteFile(blobPath, raw, 0o644); err != nil {
		t.Fatalf("writing tampered blob: %v", err)
	}

	_, _, err = archive.Open(t.Context(), record.Digest)
	var corrupt *CorruptBlobError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Open(tampered) error = %v, want CorruptBlobError", err)
	}
	if corrupt.Digest != record.Digest {
		t.Errorf("CorruptBlobError digest = %q, want %q", corrupt.Digest, record.Digest)
	}
}

func TestArchiveOpenMissingBlobFile(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	record, err := archive.Store(t.Context(), "shop", writeLogFile(t, deployLogSample(50)), false)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := os.Remove(archive.blobPath(record.Digest)); err != nil {
		t.Fatalf("removing blob: %v", err)
	}

	_, _, err = archive.Open(t.Context(), record.Digest)
	var corrupt *CorruptBlobError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Open(missing blob) error = %v, want CorruptBlobError", err)
	}
}

func TestArchiveListNewestFirst(t *testing.T) {
	t.Parallel()

	archive, fakeClock := newTestArchive(t)

	projects := []string{"alpha", "beta", "gamma"}
	for i, project := range projects {
		content := append(deployLogSample(30), byte('0'+i))
		if _, err := archive.Store(t.Context(), project, writeLogFile(t, content), false); err != nil {
			t.Fatalf("Store(%s) failed: %v", project, err)
		}
		fakeClock.Advance(time.Minute)
	}

	records, err := archive.List(t.Context(), 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("List returned %d records, want 3", len(records))
	}
	for i, want := range []string{"gamma", "beta", "alpha"} {
		if records[i].Project != want {
			t.Errorf("records[%d].Project = %q, want %q", i, records[i].Project, want)
		}
	}
	if !records[0].CreatedAt.After(records[2].CreatedAt) {
		t.Error("List is not ordered newest first")
	}

	limited, err := archive.List(t.Context(), 2)
	if err != nil {
		t.Fatalf("List(limit=2) failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Project != "gamma" {
		t.Errorf("List(limit=2) = %d records starting with %q", len(limited), limited[0].Project)
	}
}

func TestArchiveTimedOutRecorded(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	record, err := archive.Store(t.Context(), "slow", writeLogFile(t, deployLogSample(20)), true)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if !record.TimedOut {
		t.Error("Store did not record the timeout flag")
	}

	_, opened, err := archive.Open(t.Context(), record.Digest)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !opened.TimedOut {
		t.Error("index lost the timeout flag")
	}
}

func TestArchiveEmptyLog(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	record, err := archive.Store(t.Context(), "quiet", writeLogFile(t, nil), false)
	if err != nil {
		t.Fatalf("Store(empty log) failed: %v", err)
	}
	if record.RawSize != 0 {
		t.Errorf("record raw size = %d, want 0", record.RawSize)
	}
	if record.Compression != "none" {
		t.Errorf("record compression = %q, want none", record.Compression)
	}

	plaintext, _, err := archive.Open(t.Context(), record.Digest)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(plaintext) != 0 {
		t.Errorf("Open returned %d bytes for an empty log", len(plaintext))
	}
}

func TestArchiveStoreMissingLogFile(t *testing.T) {
	t.Parallel()

	archive, _ := newTestArchive(t)
	_, err := archive.Store(t.Context(), "shop", filepath.Join(t.TempDir(), "absent.log"), false)
	if err == nil {
		t.Error("Store should fail when the log file does not exist")
	}
}

func TestOpenArchiveValidation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	shortKey, err := secret.NewFromBytes([]byte("too short"))
	if err != nil {
		t.Fatalf("creating short key: %v", err)
	}
	defer shortKey.Close()

	tests := []struct {
		name    string
		options Options
	}{
		{"missing_dir", Options{IndexPath: filepath.Join(dir, "i.db"), Key: testKey(t)}},
		{"missing_index_path", Options{Dir: filepath.Join(dir, "blobs"), Key: testKey(t)}},
		{"missing_key", Options{Dir: filepath.Join(dir, "blobs"), IndexPath: filepath.Join(dir, "i.db")}},
		{"short_key", Options{Dir: filepath.Join(dir, "blobs"), IndexPath: filepath.Join(dir, "i.db"), Key: shortKey}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(tt.options); err == nil {
				t.Errorf("Open(%s) should fail", tt.name)
			}
		})
	}
}
