// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive implements the archive command group: listing and
// retrieving deploy logs the console has sealed into the blob store.
package archive
