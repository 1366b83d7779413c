// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Action is a container lifecycle verb.
type Action string

const (
	ActionStart    Action = "start"
	ActionStop     Action = "stop"
	ActionRestart  Action = "restart"
	ActionKill     Action = "kill"
	ActionRemove   Action = "remove"
	ActionRecreate Action = "recreate"
)

// Actions lists every lifecycle verb.
var Actions = []Action{ActionStart, ActionStop, ActionRestart, ActionKill, ActionRemove, ActionRecreate}

// Known reports whether the action is a recognized verb.
func (a Action) Known() bool {
	for _, action := range Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Endpoint is one Docker environment registered in Portainer.
type Endpoint struct {
	ID     int    `json:"Id"`
	Name   string `json:"Name"`
	Status int    `json:"Status"`
}

// Container is the list view of one container.
type Container struct {
	ID      string            `json:"Id"`
	Names   []string          `json:"Names"`
	Image   string            `json:"Image"`
	State   string            `json:"State"`
	Status  string            `json:"Status"`
	Created int64             `json:"Created"`
	Labels  map[string]string `json:"Labels"`
}

// Name returns the primary container name without the leading slash
// the Docker API prefixes.
func (c *Container) Name() string {
	if len(c.Names) == 0 {
		return c.ID
	}
	return strings.TrimPrefix(c.Names[0], "/")
}

// ComposeProject returns the compose project label, empty for
// containers not managed by compose.
func (c *Container) ComposeProject() string {
	return c.Labels["com.docker.compose.project"]
}

// ContainerDetail is the inspect view of one container.
type ContainerDetail struct {
	ID    string `json:"Id"`
	Name  string `json:"Name"`
	Image string `json:"Image"`
	State struct {
		Status     string `json:"Status"`
		Running    bool   `json:"Running"`
		ExitCode   int    `json:"ExitCode"`
		StartedAt  string `json:"StartedAt"`
		FinishedAt string `json:"FinishedAt"`
	} `json:"State"`
	RestartCount int `json:"RestartCount"`
	Config       struct {
		Image  string            `json:"Image"`
		Labels map[string]string `json:"Labels"`
	} `json:"Config"`
}

// ActionResult is the outcome of a lifecycle action. Failures are
// carried in Message rather than as a Go error so callers render
// every outcome the same way.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListEndpoints returns the Docker environments Portainer manages.
func (c *Client) ListEndpoints(ctx context.Context) ([]Endpoint, error) {
	var endpoints []Endpoint
	if err := c.request(ctx, http.MethodGet, "/api/endpoints", nil, nil, &endpoints); err != nil {
		return nil, err
	}
	return endpoints, nil
}

// ListContainers returns every container on the configured endpoint,
// running or not.
func (c *Client) ListContainers(ctx context.Context) ([]Container, error) {
	query := url.Values{"all": {"true"}}
	var containers []Container
	if err := c.request(ctx, http.MethodGet, c.dockerPath("/containers/json"), query, nil, &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

// InspectContainer returns the detailed state of one container.
func (c *Client) InspectContainer(ctx context.Context, containerID string) (*ContainerDetail, error) {
	if containerID == "" {
		return nil, fmt.Errorf("portainer: container ID is required")
	}
	var detail ContainerDetail
	path := c.dockerPath("/containers/" + url.PathEscape(containerID) + "/json")
	if err := c.request(ctx, http.MethodGet, path, nil, nil, &detail); err != nil {
		return nil, err
	}
	detail.Name = strings.TrimPrefix(detail.Name, "/")
	return &detail, nil
}

// ContainerAction applies a lifecycle verb to a container. The result
// reports failure instead of returning an error: action call sites
// render outcomes, they do not branch on error types.
func (c *Client) ContainerAction(ctx context.Context, containerID string, action Action) ActionResult {
	if containerID == "" {
		return ActionResult{Message: "container ID is required"}
	}
	if !action.Known() {
		return ActionResult{Message: fmt.Sprintf("unknown container action %q", action)}
	}

	var err error
	escaped := url.PathEscape(containerID)
	switch action {
	case ActionRemove:
		// force=true so removal works on running containers, matching
		// what an operator pressing "remove" expects.
		query := url.Values{"force": {"true"}}
		err = c.request(ctx, http.MethodDelete, c.dockerPath("/containers/"+escaped), query, nil, nil)
	case ActionRecreate:
		// Recreate is Portainer's own endpoint, not a Docker verb.
		// pullImage makes it fetch the latest image first; a plain
		// restart would keep running the old one.
		path := fmt.Sprintf("/api/docker/%d/containers/%s/recreate", c.endpointID, escaped)
		body := map[string]bool{"pullImage": true}
		err = c.request(ctx, http.MethodPost, path, nil, body, nil)
	default:
		path := c.dockerPath(fmt.Sprintf("/containers/%s/%s", escaped, action))
		err = c.request(ctx, http.MethodPost, path, nil, nil, nil)
	}

	if err != nil {
		c.logger.Warn("container action failed",
			"container", containerID,
			"action", action,
			"error", err,
		)
		return ActionResult{Message: err.Error()}
	}

	c.logger.Info("container action applied", "container", containerID, "action", action)
	return ActionResult{Success: true, Message: fmt.Sprintf("%s %s", containerID, pastTense(action))}
}

func pastTense(action Action) string {
	switch action {
	case ActionStop:
		return "stopped"
	case ActionRemove:
		return "removed"
	case ActionRecreate:
		return "recreated"
	default:
		return string(action) + "ed"
	}
}
