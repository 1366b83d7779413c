// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package console implements the operator-facing dockhand-console
// service: container listing, lifecycle actions, stats, and log
// snapshots proxied through Portainer; detached compose deploys
// started through the gateway; a Server-Sent Events channel that
// tails deploy logs by polling the gateway; and read access to the
// encrypted deploy-log archive.
//
// The console holds the credentials for both upstreams. Clients
// authenticate to the console with a single bearer token and never
// see the gateway token or the Portainer credentials.
package console
