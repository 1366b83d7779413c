// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logarchive stores completed deploy logs as compressed,
// encrypted, content-addressed blobs with a SQLite index.
//
// Each archived log is identified by the BLAKE3 digest of its
// plaintext. The blob on disk lives at <dir>/<digest[:2]>/<digest>.dlog
// and holds the log compressed (LZ4, zstd, or raw when incompressible)
// and sealed with XChaCha20-Poly1305 under the archive key. The digest
// is bound into the AEAD's additional authenticated data, so a blob
// moved to another digest's path fails authentication rather than
// decrypting to the wrong log.
//
// The index is authoritative for metadata ([ArchiveRecord]); the blob
// file is authoritative for content. [Archive.Open] re-verifies the
// digest after decryption and decompression, so a corrupt or tampered
// blob surfaces as a [CorruptBlobError] instead of wrong bytes.
package logarchive
