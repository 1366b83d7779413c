// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package portainer is a typed client for the Portainer-proxied Docker
// API: container listing and inspection, lifecycle actions
// (start/stop/restart/kill/remove/recreate), one-shot stats, and log
// retrieval with multiplexed-stream decoding.
//
// Authentication is layered. A [Client] resolves its bearer token from
// an ordered list of [TokenSource] tiers: the durable sealed store
// ([TokenStore], re-read at most once per minute), the token minted by
// the most recent successful refresh, and finally a static
// environment-provided token. When a request comes back 401 the client
// refreshes once against POST /api/auth and retries the call once; a
// second 401 is surfaced as a terminal [AuthError]. Refreshes are
// single-flight: concurrent callers that observe a 401 share one
// upstream authentication call and all receive its result.
package portainer
