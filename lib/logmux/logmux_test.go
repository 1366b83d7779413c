// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logmux

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildFrame encodes one multiplexed frame.
func buildFrame(stream Stream, payload []byte) []byte {
	frame := make([]byte, headerLength+len(payload))
	frame[0] = byte(stream)
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[headerLength:], payload)
	return frame
}

// buildBuffer concatenates frames for the given (stream, payload) pairs.
func buildBuffer(frames []Frame) []byte {
	var buffer bytes.Buffer
	for _, frame := range frames {
		buffer.Write(buildFrame(frame.Stream, frame.Payload))
	}
	return buffer.Bytes()
}

func TestDemuxRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		frames []Frame
		want   string
	}{
		{
			name:   "single stdout frame",
			frames: []Frame{{Stdout, []byte("hello\n")}},
			want:   "hello\n",
		},
		{
			name: "interleaved stdout and stderr in order",
			frames: []Frame{
				{Stdout, []byte("building...\n")},
				{Stderr, []byte("warning: cache miss\n")},
				{Stdout, []byte("done\n")},
			},
			want: "building...\nwarning: cache miss\ndone\n",
		},
		{
			name:   "binary payload preserved byte for byte",
			frames: []Frame{{Stderr, []byte{0xff, 0xfe, 'o', 'k'}}},
			want:   string([]byte{0xff, 0xfe, 'o', 'k'}),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			buffer := buildBuffer(test.frames)
			if got := Demux(buffer); got != test.want {
				t.Errorf("Demux: got %q, want %q", got, test.want)
			}

			parsed := Frames(buffer)
			if len(parsed) != len(test.frames) {
				t.Fatalf("Frames: got %d frames, want %d", len(parsed), len(test.frames))
			}
			for i, frame := range parsed {
				if frame.Stream != test.frames[i].Stream {
					t.Errorf("frame %d stream: got %d, want %d", i, frame.Stream, test.frames[i].Stream)
				}
				if !bytes.Equal(frame.Payload, test.frames[i].Payload) {
					t.Errorf("frame %d payload: got %q, want %q", i, frame.Payload, test.frames[i].Payload)
				}
			}
		})
	}
}

func TestDemuxPlainTextPassthrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"ordinary log text", "2026-02-10 starting server\nlistening on :8080\n"},
		{"short input", "ok"},
		{"empty input", ""},
		{"text shorter than a header", "hi\n"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := Demux([]byte(test.input)); got != test.input {
				t.Errorf("Demux: got %q, want %q", got, test.input)
			}
		})
	}
}

func TestDemuxTruncatedMidFrame(t *testing.T) {
	t.Parallel()

	full := buildBuffer([]Frame{
		{Stdout, []byte("first")},
		{Stdout, []byte("second")},
	})

	// Cut into the second frame's payload: only "first" is complete.
	truncated := full[:len(full)-3]
	if got, want := Demux(truncated), "first"; got != want {
		t.Errorf("Demux of truncated buffer: got %q, want %q", got, want)
	}

	// Cut into the second frame's header.
	headerCut := full[:headerLength+len("first")+4]
	if got, want := Demux(headerCut), "first"; got != want {
		t.Errorf("Demux with partial trailing header: got %q, want %q", got, want)
	}
}

func TestDemuxStopsAtMalformedLength(t *testing.T) {
	t.Parallel()

	t.Run("zero length", func(t *testing.T) {
		t.Parallel()

		buffer := buildBuffer([]Frame{{Stdout, []byte("good")}})
		zero := make([]byte, headerLength)
		zero[0] = byte(Stdout)
		buffer = append(buffer, zero...)
		buffer = append(buffer, []byte("trailing garbage")...)

		if got, want := Demux(buffer), "good"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("length above ceiling", func(t *testing.T) {
		t.Parallel()

		buffer := buildBuffer([]Frame{{Stderr, []byte("kept")}})
		huge := make([]byte, headerLength)
		huge[0] = byte(Stdout)
		binary.BigEndian.PutUint32(huge[4:8], MaxFrameLength+1)
		buffer = append(buffer, huge...)

		if got, want := Demux(buffer), "kept"; got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("length past buffer end", func(t *testing.T) {
		t.Parallel()

		frame := make([]byte, headerLength)
		frame[0] = byte(Stdout)
		binary.BigEndian.PutUint32(frame[4:8], 100)
		frame = append(frame, []byte("only ten b")...)

		if got := Demux(frame); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}

func TestIsMultiplexed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
		want  bool
	}{
		{"stdout frame", buildFrame(Stdout, []byte("x")), true},
		{"stderr frame", buildFrame(Stderr, []byte("x")), true},
		{"plain text", []byte("plain text that is long enough"), false},
		{"too short", []byte{1, 0, 0}, false},
		{"nonzero padding", []byte{1, 1, 0, 0, 0, 0, 0, 1, 'x'}, false},
		{"unknown type byte", []byte{9, 0, 0, 0, 0, 0, 0, 1, 'x'}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := IsMultiplexed(test.input); got != test.want {
				t.Errorf("IsMultiplexed: got %v, want %v", got, test.want)
			}
		})
	}
}
