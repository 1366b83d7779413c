// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ops implements the gateway-facing CLI commands: health and
// status probes, allowlist management, the named operations (pull,
// restart, rebuild, up, logs, ps), and the raw shell escape hatch.
//
// Every command talks to the gateway's HTTP API through
// [gateway.Client]; nothing here touches docker or git directly. The
// gateway enforces the allowlist and the shell blocklist server-side,
// so these commands stay thin: build the request, render the result,
// map failure onto the process exit code.
package ops
