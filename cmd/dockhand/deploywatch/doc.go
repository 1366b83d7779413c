// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package deploywatch is the interactive viewer for live deploy logs.
// It consumes the console's SSE stream and renders it in a scrollable
// viewport with a status bar (project, stream offset, build state) and
// an fzf-style fuzzy filter over the buffered lines.
//
// The package is deliberately separate from the command packages so
// the bubbletea dependency closure links only into the CLI binary,
// not the services.
package deploywatch
