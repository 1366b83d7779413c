// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	archivecmd "github.com/bureau-foundation/dockhand/cmd/dockhand/archive"
	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	containercmd "github.com/bureau-foundation/dockhand/cmd/dockhand/container"
	deploycmd "github.com/bureau-foundation/dockhand/cmd/dockhand/deploy"
	keygencmd "github.com/bureau-foundation/dockhand/cmd/dockhand/keygen"
	"github.com/bureau-foundation/dockhand/cmd/dockhand/ops"
	"github.com/bureau-foundation/dockhand/lib/version"
)

func main() {
	if err := run(); err != nil {
		// Commands that map a remote failure onto the process exit
		// code return an ExitError; those already printed their
		// diagnostics. Don't add a redundant "error:" line.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return root().Execute(os.Args[1:])
}

// root builds the complete dockhand CLI command tree. Top-level
// operation verbs (pull, restart, rebuild, up, logs, ps, shell) go
// through the gateway's allowlist; the container, deploy, and archive
// groups go through the console.
func root() *cli.Command {
	return &cli.Command{
		Name: "dockhand",
		Description: `Dockhand: privileged execution for a self-hosted ops dashboard.

Drive the execution gateway (allowlisted host operations and the
audited shell) and the console (containers, deploys, and the encrypted
log archive) from the terminal.`,
		Subcommands: []*cli.Command{
			ops.HealthCommand(),
			ops.StatusCommand(),
			ops.AllowlistCommand(),
			ops.PullCommand(),
			ops.RestartCommand(),
			ops.RebuildCommand(),
			ops.UpCommand(),
			ops.LogsCommand(),
			ops.PsCommand(),
			ops.ShellCommand(),
			containercmd.Command(),
			deploycmd.Command(),
			archivecmd.Command(),
			keygencmd.Command(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Printf("dockhand %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{
				Description: "Check both services",
				Command:     "dockhand health",
			},
			{
				Description: "Restart an allowlisted compose project through the gateway",
				Command:     "dockhand restart shop --project",
			},
			{
				Description: "Rebuild and deploy, following the log",
				Command:     "dockhand deploy start shop --build --watch",
			},
			{
				Description: "List containers with state and age",
				Command:     "dockhand container list",
			},
			{
				Description: "Run an allowlisted shell command on the host",
				Command:     "dockhand shell -- df -h /srv",
			},
			{
				Description: "Read an archived deploy log",
				Command:     "dockhand archive show f3a9b2c1d0e8",
			},
		},
	}
}
