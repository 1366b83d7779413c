// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpx

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var decoded struct {
		Error string `json:"error"`
	}
	if err := DecodeJSON(strings.NewReader(`{"error":"nope"}`), &decoded); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if decoded.Error != "nope" {
		t.Errorf("got %q, want %q", decoded.Error, "nope")
	}
}

func TestDecodeJSONMalformed(t *testing.T) {
	t.Parallel()

	var decoded map[string]any
	if err := DecodeJSON(strings.NewReader(`{not json`), &decoded); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestReadBodyBounded(t *testing.T) {
	t.Parallel()

	// An endless reader must not hang or exhaust memory: the read
	// stops at MaxBodySize.
	endless := io.MultiReader(strings.NewReader("x"), neverEnding{})
	data, err := ReadBody(io.LimitReader(endless, MaxBodySize+1024))
	if err != nil {
		t.Fatalf("ReadBody: %v", err)
	}
	if int64(len(data)) != MaxBodySize {
		t.Errorf("read %d bytes, want exactly %d", len(data), MaxBodySize)
	}
}

type neverEnding struct{}

func (neverEnding) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 'y'
	}
	return len(p), nil
}

func TestErrorBodyIgnoresReadErrors(t *testing.T) {
	t.Parallel()

	partial := io.MultiReader(strings.NewReader("partial"), errReader{})
	if got := ErrorBody(partial); got != "partial" {
		t.Errorf("got %q, want %q", got, "partial")
	}
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("boom") }

func TestIsClientGone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"closed", net.ErrClosed, true},
		{"epipe", syscall.EPIPE, true},
		{"econnreset", syscall.ECONNRESET, true},
		{"wrapped epipe", &net.OpError{Op: "write", Err: syscall.EPIPE}, true},
		{"other", errors.New("boom"), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if got := IsClientGone(test.err); got != test.want {
				t.Errorf("IsClientGone(%v): got %v, want %v", test.err, got, test.want)
			}
		})
	}
}
