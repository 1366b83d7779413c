// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploywatch

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/dockhand/console"
)

// Outcome reports how a watch session ended.
type Outcome struct {
	// TimedOut is true when the stream's complete event reported the
	// server's poll window closing while the build was still running.
	TimedOut bool

	// Quit is true when the user left before the stream completed.
	Quit bool
}

// deployLogNamePattern mirrors the console's log file naming:
// deploy-<project>-<unix>.log.
var deployLogNamePattern = regexp.MustCompile(`^deploy-(.+)-\d+\.log$`)

// projectFromLogFile extracts the compose project from a deploy log
// path for the status bar. Unrecognized names fall back to the base
// name.
func projectFromLogFile(logFile string) string {
	base := filepath.Base(logFile)
	if match := deployLogNamePattern.FindStringSubmatch(base); match != nil {
		return match[1]
	}
	return base
}

// Run opens the deploy log stream and blocks in the interactive viewer
// until the stream completes and the user quits, or the user quits
// early. Exiting the viewer cancels the stream request, which stops
// the console's backend polling for this session.
func Run(client *console.Client, logFile string) (Outcome, error) {
	// The palette is ANSI-256; pin the profile rather than trusting
	// terminfo detection inside tmux and SSH sessions.
	lipgloss.SetColorProfile(termenv.ANSI256)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Buffered so a burst of events keeps flowing while the UI paints.
	messages := make(chan tea.Msg, 64)
	go func() {
		err := client.StreamDeployLog(ctx, logFile, func(event console.StreamEvent) error {
			select {
			case messages <- streamEventMsg{event: event}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		// Deliver the final status without blocking: once the user has
		// quit, nobody drains the channel.
		select {
		case messages <- streamDoneMsg{err: err}:
		case <-ctx.Done():
		}
	}()

	program := tea.NewProgram(
		newModel(projectFromLogFile(logFile), messages),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	final, err := program.Run()
	cancel()
	if err != nil {
		return Outcome{}, fmt.Errorf("deploy watch: %w", err)
	}

	result, ok := final.(Model)
	if !ok {
		return Outcome{}, fmt.Errorf("deploy watch: unexpected final model %T", final)
	}
	if result.failed {
		return Outcome{Quit: result.quit}, fmt.Errorf("deploy watch: %s", result.streamErr)
	}
	return Outcome{
		TimedOut: result.timedOut,
		Quit:     result.quit && !result.complete,
	}, nil
}
