// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"time"
)

// Operation names one of the recognized named operations. The set is
// closed: dispatch switches over every value, and anything else fails
// validation before reaching the executor.
type Operation string

const (
	// OperationGitPull updates an allowlisted repository checkout and
	// reports the resulting HEAD commit.
	OperationGitPull Operation = "git_pull"

	// OperationDockerRestart restarts a container, or every container
	// of a compose project when no container name is given.
	OperationDockerRestart Operation = "docker_restart"

	// OperationDockerRebuild rebuilds and recreates a compose project
	// (optionally a single service) with --build.
	OperationDockerRebuild Operation = "docker_rebuild"

	// OperationComposeUp brings a compose project up detached,
	// rebuilding first when Options.Build is set.
	OperationComposeUp Operation = "compose_up"

	// OperationDockerLogs fetches the last Options.Tail lines of logs
	// for a container or compose project.
	OperationDockerLogs Operation = "docker_logs"

	// OperationDockerStatus reports container status for a container
	// name or compose project prefix.
	OperationDockerStatus Operation = "docker_status"
)

// Operations lists every recognized operation. Used for validation
// messages and CLI help output.
var Operations = []Operation{
	OperationGitPull,
	OperationDockerRestart,
	OperationDockerRebuild,
	OperationComposeUp,
	OperationDockerLogs,
	OperationDockerStatus,
}

// Known reports whether op is one of the recognized operations.
func (op Operation) Known() bool {
	for _, known := range Operations {
		if op == known {
			return true
		}
	}
	return false
}

// Target identifies what an operation acts on. Only the fields the
// operation needs are consulted; every populated identifier field must
// be present in the current allowlist (ServiceName is scoped within a
// compose project and is not independently allowlisted).
type Target struct {
	RepoPath       string `json:"repo_path,omitempty"`
	ComposeProject string `json:"compose_project,omitempty"`
	ContainerName  string `json:"container_name,omitempty"`
	ServiceName    string `json:"service_name,omitempty"`
}

// Options carries per-operation tuning knobs.
type Options struct {
	// Tail is the number of log lines for OperationDockerLogs.
	// Zero means the default of 100.
	Tail int `json:"tail,omitempty"`

	// Build requests an image rebuild for OperationComposeUp.
	Build bool `json:"build,omitempty"`
}

// OperationRequest is the body of POST /execute.
type OperationRequest struct {
	Operation Operation `json:"operation"`
	Target    Target    `json:"target"`
	Options   Options   `json:"options"`
}

// ExecutionResult is the outcome of a named operation. Results are
// immutable once produced; a failed operation is reported here with
// Success=false and is never retried by the gateway.
type ExecutionResult struct {
	Success   bool      `json:"success"`
	Operation Operation `json:"operation"`

	// Output is the combined stdout and stderr of the dispatched
	// command, capped at the configured output limit.
	Output string `json:"output,omitempty"`

	// CommitSHA is the repository HEAD after a successful git_pull.
	CommitSHA string `json:"commit_sha,omitempty"`

	// Error describes why the operation failed. Empty on success.
	Error string `json:"error,omitempty"`

	// DurationMS is wall-clock time from dispatch to completion.
	DurationMS int64 `json:"duration_ms"`

	// Timestamp is the completion time in UTC.
	Timestamp time.Time `json:"timestamp"`
}

// ShellRequest is the body of POST /shell.
type ShellRequest struct {
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
}

// ShellResult is the outcome of a raw shell command. Timeouts and
// output-cap overruns yield ExitCode -1 with whatever output was
// captured before the process group was killed.
type ShellResult struct {
	Success    bool   `json:"success"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// AllowlistCounts summarizes the current allowlist for GET /status.
type AllowlistCounts struct {
	RepoPaths       int `json:"repo_paths"`
	ComposeProjects int `json:"compose_projects"`
	ContainerNames  int `json:"container_names"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Service       string          `json:"service"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Allowlist     AllowlistCounts `json:"allowlist"`
}
