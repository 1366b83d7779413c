// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpx provides HTTP I/O helpers shared by Dockhand's API
// clients and servers.
//
// The response helpers (ReadBody, DecodeJSON, ErrorBody) bound every
// body read at MaxBodySize so a misbehaving server cannot exhaust
// memory. They are for JSON API responses, not for streaming bodies
// (SSE, chunked log tails), which are read incrementally.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// MaxBodySize bounds API response body reads: 16 MB. Gateway and
// container API responses are far smaller (the largest is a capped
// 5 MB shell output wrapped in JSON); the limit only exists to stop a
// pathological peer.
const MaxBodySize int64 = 16 << 20

// ReadBody reads a response body up to MaxBodySize bytes. Use instead
// of io.ReadAll on HTTP response bodies.
func ReadBody(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxBodySize))
}

// DecodeJSON reads a response body (bounded) and JSON-decodes it into
// v. Replaces the io.ReadAll + json.Unmarshal pair at call sites.
func DecodeJSON(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxBodySize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an error response body for inclusion in a diagnostic
// message. Read errors are ignored; a partial body is still useful.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxBodySize))
	return string(data)
}

// IsClientGone reports whether err is a normal client-side connection
// termination: EOF, closed connection, broken pipe, or connection
// reset. The SSE streaming loop treats these as "consumer left" rather
// than logging them as failures.
func IsClientGone(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
