// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package container implements the "dockhand container" command group:
// listing, lifecycle actions (start, stop, restart, kill, remove,
// recreate), resource stats, and log retrieval, all through the
// console's container endpoints backed by Portainer.
package container
