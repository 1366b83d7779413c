// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"time"

	"github.com/bureau-foundation/dockhand/logarchive"
	"github.com/bureau-foundation/dockhand/portainer"
)

// SSE event names emitted by the deploy-log stream.
const (
	eventLog      = "log"
	eventStatus   = "status"
	eventError    = "error"
	eventComplete = "complete"
)

// LogEvent carries newly read log bytes. Content holds exactly the
// bytes that arrived since the previous poll.
type LogEvent struct {
	Content string `json:"content"`
	Bytes   int    `json:"bytes"`
}

// StatusEvent reports build liveness and the stream offset after each
// poll.
type StatusEvent struct {
	Running bool  `json:"running"`
	Offset  int64 `json:"offset"`
}

// ErrorEvent reports a transient backend failure. The stream keeps
// polling after emitting one.
type ErrorEvent struct {
	Error string `json:"error"`
}

// CompleteEvent is the single terminal event of a stream. TimedOut is
// true when the poll bound was exhausted before the build finished.
type CompleteEvent struct {
	TotalBytes int64 `json:"total_bytes"`
	TimedOut   bool  `json:"timed_out"`
}

// DeployStartRequest is the body of POST /deploy/start.
type DeployStartRequest struct {
	ComposeProject string `json:"compose_project"`
	Build          bool   `json:"build,omitempty"`
}

// DeployStartResponse names the log file a freshly started deploy
// writes to. Clients pass LogFile to the streaming endpoint.
type DeployStartResponse struct {
	LogFile   string    `json:"log_file"`
	Project   string    `json:"project"`
	StartedAt time.Time `json:"started_at"`
}

// ContainerView is the console's list representation of one
// container, flattened from the Docker list shape.
type ContainerView struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Status  string `json:"status"`
	Project string `json:"project,omitempty"`
	Created int64  `json:"created"`
}

func containerView(c *portainer.Container) ContainerView {
	return ContainerView{
		ID:      c.ID,
		Name:    c.Name(),
		Image:   c.Image,
		State:   c.State,
		Status:  c.Status,
		Project: c.ComposeProject(),
		Created: c.Created,
	}
}

// ArchiveListResponse is the body of GET /archives.
type ArchiveListResponse struct {
	Archives []logarchive.ArchiveRecord `json:"archives"`
}

// ArchiveContentResponse is the body of GET /archives/{digest}: the
// record plus the decrypted log text.
type ArchiveContentResponse struct {
	logarchive.ArchiveRecord
	Content string `json:"content"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}
