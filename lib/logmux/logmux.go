// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logmux parses Docker's multiplexed log stream format.
//
// A container started without a TTY interleaves stdout and stderr into
// one byte stream of framed records:
//
//	[type: 1 byte] [padding: 3 zero bytes] [length: 4 bytes BE] [payload: length bytes]
//
// where type 1 is stdout and 2 is stderr. A container started with a
// TTY produces plain unframed text on the same endpoint, so callers
// cannot know in advance which format they hold. Demux detects the
// format and returns clean text either way.
//
// Parsing is deliberately forgiving: log buffers arrive truncated when
// a tail cuts a frame in half, and a desynced read can make a length
// field read as garbage. Any frame whose declared length is zero,
// exceeds MaxFrameLength, or runs past the end of the buffer ends
// parsing at the last well-formed frame instead of failing the fetch.
package logmux

import "encoding/binary"

// Stream identifies which standard stream a frame carries.
type Stream byte

const (
	// Stdin is emitted on attach streams; the logs endpoint never
	// produces it, but a frame carrying it still parses.
	Stdin Stream = 0

	// Stdout frames carry the container's standard output.
	Stdout Stream = 1

	// Stderr frames carry the container's standard error.
	Stderr Stream = 2
)

// headerLength is the fixed frame header size: type byte, three
// padding bytes, big-endian uint32 payload length.
const headerLength = 8

// MaxFrameLength bounds a single frame's declared payload: 10 MB.
// Docker log frames are at most a few KB; a length beyond this bound
// means the parser lost frame alignment, and continuing would
// misinterpret payload bytes as headers.
const MaxFrameLength = 10 << 20

// Frame is one parsed record from a multiplexed buffer.
type Frame struct {
	Stream  Stream
	Payload []byte
}

// IsMultiplexed reports whether buffer starts with a well-formed frame
// header: room for the header, a stdout or stderr type byte, and zero
// padding. Plain text never matches (printable bytes in positions 1-3).
func IsMultiplexed(buffer []byte) bool {
	if len(buffer) < headerLength {
		return false
	}
	if buffer[0] != byte(Stdout) && buffer[0] != byte(Stderr) {
		return false
	}
	return buffer[1] == 0 && buffer[2] == 0 && buffer[3] == 0
}

// Frames parses a multiplexed buffer into its frames. Parsing stops
// without error at the first malformed frame (zero length, length past
// the buffer end, or length above MaxFrameLength); frames parsed up to
// that point are returned. If the buffer is not multiplexed, Frames
// returns nil.
func Frames(buffer []byte) []Frame {
	if !IsMultiplexed(buffer) {
		return nil
	}

	var frames []Frame
	cursor := 0
	for len(buffer)-cursor >= headerLength {
		header := buffer[cursor : cursor+headerLength]
		payloadLength := int(binary.BigEndian.Uint32(header[4:8]))

		if payloadLength == 0 || payloadLength > MaxFrameLength {
			break
		}
		payloadStart := cursor + headerLength
		payloadEnd := payloadStart + payloadLength
		if payloadEnd > len(buffer) {
			// Truncated mid-frame; everything before it is complete.
			break
		}

		frames = append(frames, Frame{
			Stream:  Stream(header[0]),
			Payload: buffer[payloadStart:payloadEnd],
		})
		cursor = payloadEnd
	}
	return frames
}

// Demux turns a container log buffer into text. Multiplexed input
// yields the ordered concatenation of frame payloads; plain-text input
// passes through unmodified. Invalid UTF-8 bytes are preserved as-is;
// callers that need printable output sanitize afterwards.
func Demux(buffer []byte) string {
	if !IsMultiplexed(buffer) {
		return string(buffer)
	}

	frames := Frames(buffer)
	total := 0
	for _, frame := range frames {
		total += len(frame.Payload)
	}

	text := make([]byte, 0, total)
	for _, frame := range frames {
		text = append(text, frame.Payload...)
	}
	return string(text)
}
