// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the privileged execution gateway: the one
// process in a dockhand deployment that is allowed to touch the host's
// git checkouts and Docker daemon. Everything else (the console, the
// CLI, the dashboard frontend) talks to it over a small authenticated
// HTTP API and never runs a command itself.
//
// The gateway exposes two execution surfaces. [Executor] dispatches a
// closed set of named operations ([OperationGitPull], [OperationComposeUp],
// and friends) to fixed command lines built as argument vectors, so a
// request can choose *which* repository to pull or *which* compose
// project to restart but never what program runs. [ShellRunner] executes
// operator-supplied shell commands under `sh -c`, guarded by a
// case-insensitive destructive-command blocklist that rejects obviously
// catastrophic input (recursive root deletion, mkfs, writes to block
// devices, account manipulation) before any process is spawned.
//
// Both surfaces run subprocesses in their own process group with a hard
// wall-clock timeout and a hard output cap; exceeding either kills the
// whole group and yields a synthetic exit code of -1 rather than a hang
// or an unbounded buffer.
//
// Which targets are reachable at all is governed by the [Allowlist]: three
// sets naming permitted repository paths, compose projects, and container
// names. The allowlist is a JSON document on disk (comments tolerated on
// read), loaded once at startup into an atomic pointer and replaced
// wholesale through the management endpoint. [Allowlist.Validate] runs
// before every named operation; a target absent from the allowlist is
// rejected without executing anything.
//
// [Server] wires the pieces behind Go 1.22 ServeMux routes. Callers must
// come from a loopback or private-range address and present the shared
// bearer token (compared in constant time); only /health and /status are
// token-exempt. [Client] is the typed counterpart used by the console
// and the CLI.
package gateway
