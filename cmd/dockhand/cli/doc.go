// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the dockhand CLI.
//
// The central type is [Command], which represents a named subcommand
// with optional nested [Command.Subcommands], a [pflag.FlagSet]
// factory, and a Run function. Commands are assembled into a tree in
// cmd/dockhand/main.go and dispatched via [Command.Execute], which
// handles flag parsing, subcommand routing, and structured help output
// with examples.
//
// When a user types an unknown subcommand or flag, the framework
// computes Levenshtein edit distance against all known names and
// suggests the closest match (threshold: distance <= 3).
//
// [ClientConfig] carries the connection flags shared by every command
// that talks to a dockhand service: --gateway, --console, and
// --token-file, with DOCKHAND_GATEWAY_URL / DOCKHAND_CONSOLE_URL /
// DOCKHAND_TOKEN_FILE environment fallbacks. When no token source is
// configured and stdin is a terminal, the token is prompted for
// interactively and held only in locked memory.
package cli
