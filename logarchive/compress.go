// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logarchive

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm used for an
// archived log. The tag is stored in the blob frame (1 byte) and in
// the index. These values are format constants — changing them breaks
// existing archives.
type CompressionTag uint8

const (
	// CompressionNone indicates the log is stored raw. Chosen when
	// neither coder shrinks the data (already-compressed content
	// smuggled into a log, or very small logs).
	CompressionNone CompressionTag = 0

	// CompressionLZ4 indicates LZ4 block compression. The fast path:
	// accepted outright when it already achieves a good ratio, which
	// is the common case for repetitive compose output.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd indicates zstd compression at the default
	// level. The fallback coder for logs where LZ4's match-finding
	// alone does not pay — zstd's entropy stage usually still finds
	// savings in build output.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag. This
// is the form stored in the index and shown by the CLI.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses a compression tag from its string
// representation.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

// lz4AcceptRatio is the minimum plaintext-to-compressed ratio at
// which the LZ4 fast path is accepted without probing zstd.
const lz4AcceptRatio = 1.5

// compressLog compresses a deploy log, choosing the algorithm by
// probe: LZ4 first, and if its ratio is poor, zstd. Data neither
// coder can shrink is returned unchanged with CompressionNone.
func compressLog(data []byte) ([]byte, CompressionTag) {
	if len(data) == 0 {
		return data, CompressionNone
	}

	lz4Compressed, lz4Err := compressLZ4(data)
	if lz4Err == nil && float64(len(data)) >= lz4AcceptRatio*float64(len(lz4Compressed)) {
		return lz4Compressed, CompressionLZ4
	}

	zstdCompressed, zstdErr := compressZstd(data)
	switch {
	case zstdErr == nil && lz4Err == nil:
		// Both shrank the data but neither impressively. Keep the
		// smaller output.
		if len(lz4Compressed) <= len(zstdCompressed) {
			return lz4Compressed, CompressionLZ4
		}
		return zstdCompressed, CompressionZstd
	case zstdErr == nil:
		return zstdCompressed, CompressionZstd
	case lz4Err == nil:
		return lz4Compressed, CompressionLZ4
	default:
		return data, CompressionNone
	}
}

// decompressLog decompresses an archived log payload. The rawSize
// must match the original log length exactly — a mismatch returns an
// error.
func decompressLog(compressed []byte, tag CompressionTag, rawSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != rawSize {
			return nil, fmt.Errorf("raw payload is %d bytes, frame declares %d", len(compressed), rawSize)
		}
		return compressed, nil

	case CompressionLZ4:
		return decompressLZ4(compressed, rawSize)

	case CompressionZstd:
		return decompressZstd(compressed, rawSize)

	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	destination := make([]byte, bound)

	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	// CompressBlock returns 0 when it determines the data is
	// incompressible. Output at or above the input size is equally
	// not worth keeping.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}

	return destination[:written], nil
}

func decompressLZ4(compressed []byte, rawSize int) ([]byte, error) {
	destination := make([]byte, rawSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != rawSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, rawSize)
	}
	return destination, nil
}

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. zstd.Encoder and zstd.Decoder
// are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("logarchive: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("logarchive: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, rawSize int) ([]byte, error) {
	destination := make([]byte, 0, rawSize)
	result, err := zstdDecoder.DecodeAll(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != rawSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), rawSize)
	}
	return result, nil
}

// errIncompressible is returned by compression helpers when the
// compressed output would not be smaller than the input.
var errIncompressible = fmt.Errorf("data is incompressible")
