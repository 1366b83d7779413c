// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package deploy implements the deploy command group: starting
// detached compose deploys through the console and following their
// log files, either as a raw text stream or in the interactive
// viewer.
package deploy
