// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

type statusParams struct {
	cli.ClientConfig
	JSON bool `flag:"json" desc:"output as JSON"`
}

// StatusCommand returns the "status" command: gateway version, uptime,
// and allowlist counts.
func StatusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show gateway version, uptime, and allowlist counts",
		Usage:   "dockhand status [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runStatus(params)
		},
	}
}

func runStatus(params statusParams) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Gateway()
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := client.Status(ctx)
	if err != nil {
		return err
	}

	if params.JSON {
		return cli.WriteJSON(status)
	}

	fmt.Printf("service:   %s\n", status.Service)
	fmt.Printf("version:   %s\n", status.Version)
	fmt.Printf("uptime:    %s\n", time.Duration(status.UptimeSeconds)*time.Second)
	fmt.Printf("allowlist: %d repo(s), %d compose project(s), %d container(s)\n",
		status.Allowlist.RepoPaths, status.Allowlist.ComposeProjects, status.Allowlist.ContainerNames)
	return nil
}
