// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

type shellParams struct {
	cli.ClientConfig
	Cwd  string `flag:"cwd"  desc:"working directory on the gateway host"`
	JSON bool   `flag:"json" desc:"print the full shell result as JSON"`
}

// ShellCommand returns the "shell" command: run a raw command line on
// the gateway host. The gateway's blocklist applies server-side; a
// blocked command comes back as a 403.
func ShellCommand() *cli.Command {
	var params shellParams

	return &cli.Command{
		Name:    "shell",
		Summary: "Run a raw shell command on the gateway host",
		Description: `Run an arbitrary command line on the gateway host via /bin/sh.

The arguments after -- are joined with spaces and sent as a single command
string, so shell syntax (pipes, redirection, globs) is interpreted on the
gateway host. Remote stdout and stderr map to local stdout and stderr, and
the remote exit code becomes the local exit code.`,
		Usage: "dockhand shell [flags] -- <command>",
		Examples: []cli.Example{
			{
				Description: "Check disk usage on the host",
				Command:     "dockhand shell -- df -h /srv",
			},
			{
				Description: "Inspect a repository checkout",
				Command:     "dockhand shell --cwd /srv/repos/shop -- git log --oneline -5",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("shell", &params)
		},
		Run: func(args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("usage: dockhand shell [flags] -- <command>")
			}
			return runShell(params, strings.Join(args, " "))
		},
	}
}

func runShell(params shellParams, command string) error {
	ctx, cancel := cli.CommandContext(0)
	defer cancel()

	client, cleanup, err := params.Gateway()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := client.Shell(ctx, command, params.Cwd)
	if err != nil {
		return err
	}

	if params.JSON {
		if err := cli.WriteJSON(result); err != nil {
			return err
		}
		if !result.Success {
			return exitCodeError(result.ExitCode)
		}
		return nil
	}

	if result.Stdout != "" {
		fmt.Print(result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprint(os.Stderr, result.Stderr)
	}
	if !result.Success {
		return exitCodeError(result.ExitCode)
	}
	return nil
}

// exitCodeError maps a remote exit code onto the local process exit
// code. Codes outside 1..255 (timeouts and output-cap kills report -1)
// collapse to 1.
func exitCodeError(code int) error {
	if code < 1 || code > 255 {
		code = 1
	}
	return &cli.ExitError{Code: code}
}
