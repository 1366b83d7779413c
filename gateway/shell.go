// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bureau-foundation/dockhand/lib/clock"
)

const (
	// DefaultShellTimeout bounds a command's wall-clock runtime.
	DefaultShellTimeout = 60 * time.Second

	// DefaultMaxOutput bounds the bytes captured from a command,
	// shared across stdout and stderr.
	DefaultMaxOutput int64 = 5 << 20
)

// ShellRunner executes operator-supplied commands under sh -c after
// blocklist screening. One runner is shared by all requests; it holds
// no per-command state.
type ShellRunner struct {
	timeout   time.Duration
	maxOutput int64
	clock     clock.Clock
	logger    *slog.Logger
}

// ShellRunnerConfig configures a ShellRunner. Zero values get the
// package defaults.
type ShellRunnerConfig struct {
	Timeout   time.Duration
	MaxOutput int64
	Clock     clock.Clock
	Logger    *slog.Logger
}

// NewShellRunner creates a runner with defaults applied.
func NewShellRunner(config ShellRunnerConfig) *ShellRunner {
	runner := &ShellRunner{
		timeout:   config.Timeout,
		maxOutput: config.MaxOutput,
		clock:     config.Clock,
		logger:    config.Logger,
	}
	if runner.timeout <= 0 {
		runner.timeout = DefaultShellTimeout
	}
	if runner.maxOutput <= 0 {
		runner.maxOutput = DefaultMaxOutput
	}
	if runner.clock == nil {
		runner.clock = clock.Real()
	}
	if runner.logger == nil {
		runner.logger = slog.New(slog.DiscardHandler)
	}
	return runner
}

// Run executes the requested command. A blocklisted command returns a
// *BlockedError without spawning anything; an empty command returns a
// *ValidationError. Everything else produces a ShellResult, including
// failures: non-zero exits, timeouts, and output-cap overruns are
// reported in the result (synthetic exit code -1 for the latter two),
// never as a Go error.
func (r *ShellRunner) Run(ctx context.Context, request ShellRequest) (*ShellResult, error) {
	if strings.TrimSpace(request.Command) == "" {
		return nil, &ValidationError{
			Kind:  ValidationMalformed,
			Field: "command",
			Value: "must not be empty",
		}
	}
	if err := CheckCommand(request.Command); err != nil {
		r.logger.Warn("shell command blocked",
			"command", request.Command,
			"error", err,
		)
		return nil, err
	}

	outcome := runCommand(ctx, r.clock, commandRequest{
		argv:      []string{"sh", "-c", request.Command},
		dir:       request.Cwd,
		timeout:   r.timeout,
		maxOutput: r.maxOutput,
	})
	if outcome.spawnErr != nil {
		return &ShellResult{
			Success:    false,
			Stderr:     outcome.spawnErr.Error(),
			ExitCode:   -1,
			DurationMS: outcome.duration.Milliseconds(),
		}, nil
	}

	result := &ShellResult{
		Success:    outcome.exitCode == 0,
		Stdout:     outcome.stdout,
		Stderr:     outcome.stderr,
		ExitCode:   outcome.exitCode,
		DurationMS: outcome.duration.Milliseconds(),
	}
	if outcome.timedOut || outcome.truncated {
		// The overrun kill usually produces -1 already, but a
		// process can slip an exit in before the signal lands.
		// Force the synthetic code so callers see one consistent
		// signal for "the gateway cut this off".
		result.Success = false
		result.ExitCode = -1
	}

	r.logger.Info("shell command finished",
		"exit_code", result.ExitCode,
		"duration_ms", result.DurationMS,
		"timed_out", outcome.timedOut,
		"truncated", outcome.truncated,
	)
	return result, nil
}
