// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
	"github.com/bureau-foundation/dockhand/lib/git"
)

// defaultLogTail is the docker_logs line count when the request does
// not specify one.
const defaultLogTail = 100

// Executor dispatches named operations to fixed command lines. The
// command is chosen by the operation, never by the request: targets
// are interpolated as single argv elements, so there is no shell
// parsing between the request and the process.
//
// Callers validate against the allowlist before dispatch; the executor
// itself only checks that the fields an operation needs are present.
type Executor struct {
	timeout      time.Duration
	maxOutput    int64
	clock        clock.Clock
	logger       *slog.Logger
	dockerBinary string
}

// ExecutorConfig configures an Executor. Zero values get the package
// defaults (60s timeout, 5 MB output cap).
type ExecutorConfig struct {
	Timeout   time.Duration
	MaxOutput int64
	Clock     clock.Clock
	Logger    *slog.Logger
}

// NewExecutor creates an executor with defaults applied.
func NewExecutor(config ExecutorConfig) *Executor {
	executor := &Executor{
		timeout:      config.Timeout,
		maxOutput:    config.MaxOutput,
		clock:        config.Clock,
		logger:       config.Logger,
		dockerBinary: "docker",
	}
	if executor.timeout <= 0 {
		executor.timeout = DefaultShellTimeout
	}
	if executor.maxOutput <= 0 {
		executor.maxOutput = DefaultMaxOutput
	}
	if executor.clock == nil {
		executor.clock = clock.Real()
	}
	if executor.logger == nil {
		executor.logger = slog.New(slog.DiscardHandler)
	}
	return executor
}

// Execute dispatches a validated request and wraps the outcome as an
// ExecutionResult. A request missing the target field its operation
// needs returns a *ValidationError and runs nothing. Execution
// failures (non-zero exit, timeout, spawn error) are reported in the
// result with Success=false; the gateway never retries them.
func (e *Executor) Execute(ctx context.Context, request *OperationRequest) (*ExecutionResult, error) {
	started := e.clock.Now()

	result, err := e.dispatch(ctx, request)
	if err != nil {
		return nil, err
	}

	result.Operation = request.Operation
	result.DurationMS = e.clock.Now().Sub(started).Milliseconds()
	result.Timestamp = e.clock.Now().UTC()

	e.logger.Info("operation finished",
		"operation", request.Operation,
		"success", result.Success,
		"duration_ms", result.DurationMS,
	)
	return result, nil
}

func (e *Executor) dispatch(ctx context.Context, request *OperationRequest) (*ExecutionResult, error) {
	if request.Operation == OperationGitPull {
		if request.Target.RepoPath == "" {
			return nil, missingTarget(request.Operation, "repo_path")
		}
		return e.gitPull(ctx, request.Target.RepoPath), nil
	}

	args, validationErr := operationCommand(request)
	if validationErr != nil {
		return nil, validationErr
	}
	return e.runDocker(ctx, args...), nil
}

// operationCommand maps a non-git operation onto docker CLI arguments.
// Pure: the full argument vector is determined by the request alone.
func operationCommand(request *OperationRequest) ([]string, *ValidationError) {
	target := request.Target

	// Operations that accept either identifier resolve the container
	// name first; a request naming both means the container.
	containerOrProject := target.ContainerName
	if containerOrProject == "" {
		containerOrProject = target.ComposeProject
	}

	switch request.Operation {
	case OperationDockerRestart:
		if containerOrProject == "" {
			return nil, missingTarget(request.Operation, "container_name or compose_project")
		}
		return []string{"restart", containerOrProject}, nil

	case OperationDockerRebuild:
		if target.ComposeProject == "" {
			return nil, missingTarget(request.Operation, "compose_project")
		}
		args := []string{"compose", "-p", target.ComposeProject, "up", "-d", "--build"}
		if target.ServiceName != "" {
			args = append(args, target.ServiceName)
		}
		return args, nil

	case OperationComposeUp:
		if target.ComposeProject == "" {
			return nil, missingTarget(request.Operation, "compose_project")
		}
		args := []string{"compose", "-p", target.ComposeProject, "up", "-d"}
		if request.Options.Build {
			args = append(args, "--build")
		}
		return args, nil

	case OperationDockerLogs:
		if containerOrProject == "" {
			return nil, missingTarget(request.Operation, "container_name or compose_project")
		}
		tail := request.Options.Tail
		if tail <= 0 {
			tail = defaultLogTail
		}
		return []string{"logs", "--tail", strconv.Itoa(tail), containerOrProject}, nil

	case OperationDockerStatus:
		if containerOrProject == "" {
			return nil, missingTarget(request.Operation, "container_name or compose_project")
		}
		return []string{"ps", "-a", "--filter", "name=" + containerOrProject, "--format", "{{.Status}}"}, nil
	}

	return nil, &ValidationError{
		Kind:  ValidationInvalidOperation,
		Field: "operation",
		Value: string(request.Operation),
	}
}

// gitPull updates the checkout and resolves the resulting HEAD. Pulls
// on the same repository serialize on a lock file inside .git, so
// concurrent deploy requests queue instead of corrupting the index.
func (e *Executor) gitPull(ctx context.Context, repoPath string) *ExecutionResult {
	pullCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	repository := git.NewRepository(repoPath)
	lockPath := filepath.Join(repoPath, ".git", "dockhand-pull.lock")

	output, err := repository.PullLocked(pullCtx, lockPath)
	if err != nil {
		return &ExecutionResult{Error: err.Error()}
	}

	head, err := repository.Head(pullCtx)
	if err != nil {
		return &ExecutionResult{
			Output: output,
			Error:  fmt.Sprintf("pull succeeded but HEAD could not be resolved: %v", err),
		}
	}

	return &ExecutionResult{Success: true, Output: output, CommitSHA: head}
}

// runDocker executes the docker CLI with the given arguments under the
// standard timeout and output cap, capturing combined stdout+stderr.
func (e *Executor) runDocker(ctx context.Context, args ...string) *ExecutionResult {
	outcome := runCommand(ctx, e.clock, commandRequest{
		argv:      append([]string{e.dockerBinary}, args...),
		timeout:   e.timeout,
		maxOutput: e.maxOutput,
		combine:   true,
	})

	result := &ExecutionResult{Output: outcome.stdout}
	switch {
	case outcome.spawnErr != nil:
		result.Error = outcome.spawnErr.Error()
	case outcome.timedOut:
		result.Error = fmt.Sprintf("command timed out after %s", e.timeout)
	case outcome.truncated:
		result.Error = fmt.Sprintf("output exceeded %d bytes and the command was killed", e.maxOutput)
	case outcome.exitCode != 0:
		result.Error = fmt.Sprintf("command exited with status %d", outcome.exitCode)
	default:
		result.Success = true
	}
	return result
}

func missingTarget(operation Operation, field string) *ValidationError {
	return &ValidationError{
		Kind:  ValidationMissingTarget,
		Field: field,
		Value: string(operation),
	}
}
