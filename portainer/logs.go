// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/dockhand/lib/logmux"
)

// defaultLogTail is the line count fetched when the caller does not
// specify one.
const defaultLogTail = 100

// ContainerLogs is a sanitized log snapshot.
type ContainerLogs struct {
	Logs      string    `json:"logs"`
	Timestamp time.Time `json:"timestamp"`
}

// FetchContainerLogs retrieves the last tail lines of a container's
// combined stdout and stderr. The raw stream is demultiplexed when
// the container runs without a TTY, then stripped of ANSI escape
// sequences and control bytes so the result is safe to render in a
// browser or terminal.
func (c *Client) FetchContainerLogs(ctx context.Context, containerID string, tail int) (*ContainerLogs, error) {
	if containerID == "" {
		return nil, fmt.Errorf("portainer: container ID is required")
	}
	if tail < 1 {
		tail = defaultLogTail
	}

	query := url.Values{
		"stdout": {"1"},
		"stderr": {"1"},
		"tail":   {strconv.Itoa(tail)},
	}
	path := c.dockerPath("/containers/" + url.PathEscape(containerID) + "/logs")

	raw, err := c.requestRaw(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	return &ContainerLogs{
		Logs:      sanitizeLogText(logmux.Demux(raw)),
		Timestamp: c.clock.Now().UTC(),
	}, nil
}

// sanitizeLogText strips ANSI escape sequences, then drops remaining
// control bytes except newline and tab. Carriage returns go too:
// nothing downstream renders overstrike, so they would only smuggle
// spinner redraws into the payload.
func sanitizeLogText(text string) string {
	stripped := ansi.Strip(text)

	var builder strings.Builder
	builder.Grow(len(stripped))
	for _, r := range stripped {
		if r == '\n' || r == '\t' || (r >= 0x20 && r != 0x7f) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
