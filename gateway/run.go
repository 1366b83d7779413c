// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/dockhand/lib/clock"
)

// commandRequest describes one subprocess invocation. argv is passed
// to exec directly (no shell interpretation); callers that want a
// shell say so explicitly with argv ["sh", "-c", ...].
type commandRequest struct {
	argv    []string
	dir     string
	timeout time.Duration

	// maxOutput is the shared byte budget across stdout and stderr.
	maxOutput int64

	// combine merges stderr into the stdout sink, preserving the
	// order the process produced it in.
	combine bool
}

// commandResult is the raw outcome of a subprocess run. Callers map
// it onto their result shape (ShellResult, ExecutionResult).
type commandResult struct {
	stdout    string
	stderr    string // empty when combine was set
	exitCode  int
	timedOut  bool
	truncated bool
	spawnErr  error // non-nil when the process never started
	duration  time.Duration
}

// runCommand executes argv with a hard wall-clock timeout and a hard
// output cap. The child runs in its own process group; exceeding
// either limit SIGKILLs the whole group so shell pipelines and
// grandchildren die with it. Signal-killed processes report exit
// code -1.
func runCommand(ctx context.Context, clk clock.Clock, request commandRequest) commandResult {
	started := clk.Now()

	runCtx, cancel := context.WithTimeout(ctx, request.timeout)
	defer cancel()

	command := exec.Command(request.argv[0], request.argv[1:]...)
	command.Dir = request.dir
	command.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// If a grandchild escapes the process group and holds the pipes
	// open, give up on draining them rather than hanging Wait.
	command.WaitDelay = 5 * time.Second

	budget := newOutputBudget(request.maxOutput)
	stdout := &cappedBuffer{budget: budget}
	stderr := stdout
	if !request.combine {
		stderr = &cappedBuffer{budget: budget}
	}
	command.Stdout = stdout
	command.Stderr = stderr

	if err := command.Start(); err != nil {
		return commandResult{
			exitCode: -1,
			spawnErr: err,
			duration: clk.Now().Sub(started),
		}
	}

	processGroup := command.Process.Pid
	killGroup := sync.OnceFunc(func() {
		_ = unix.Kill(-processGroup, unix.SIGKILL)
	})

	// Watchdog: kill the group when the deadline passes or the output
	// budget is exhausted. Exits on normal completion via waitDone.
	waitDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			killGroup()
		case <-budget.exceeded():
			killGroup()
		case <-waitDone:
		}
	}()

	waitErr := command.Wait()
	close(waitDone)

	result := commandResult{
		stdout:    stdout.String(),
		timedOut:  errors.Is(runCtx.Err(), context.DeadlineExceeded) && waitErr != nil,
		truncated: budget.wasExceeded(),
		duration:  clk.Now().Sub(started),
	}
	if !request.combine {
		result.stderr = stderr.String()
	}

	if waitErr == nil {
		result.exitCode = 0
		return result
	}
	var exitError *exec.ExitError
	if errors.As(waitErr, &exitError) {
		// ExitCode is -1 for signal-killed processes, which covers
		// the timeout and cap paths.
		result.exitCode = exitError.ExitCode()
	} else {
		result.exitCode = -1
	}
	return result
}

// outputBudget enforces one byte ceiling shared by the stdout and
// stderr sinks of a command.
type outputBudget struct {
	mu         sync.Mutex
	remaining  int64
	overrun    bool
	exceededCh chan struct{}
}

func newOutputBudget(limit int64) *outputBudget {
	return &outputBudget{remaining: limit, exceededCh: make(chan struct{})}
}

// take consumes up to n bytes of budget and returns how many may be
// recorded. The first overrun closes the exceeded channel exactly once.
func (b *outputBudget) take(n int64) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.remaining >= n {
		b.remaining -= n
		return n
	}
	allowed := b.remaining
	b.remaining = 0
	if !b.overrun {
		b.overrun = true
		close(b.exceededCh)
	}
	return allowed
}

func (b *outputBudget) exceeded() <-chan struct{} {
	return b.exceededCh
}

func (b *outputBudget) wasExceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overrun
}

// cappedBuffer records writes while budget remains and swallows the
// rest, reporting full writes so the command's pipes stay drained
// until the watchdog kills the process group.
type cappedBuffer struct {
	mu     sync.Mutex
	buffer bytes.Buffer
	budget *outputBudget
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	allowed := b.budget.take(int64(len(p)))
	if allowed > 0 {
		b.mu.Lock()
		b.buffer.Write(p[:allowed])
		b.mu.Unlock()
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffer.String()
}
