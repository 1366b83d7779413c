// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

type logsParams struct {
	cli.ClientConfig
	Tail int  `flag:"tail,n" desc:"number of log lines" default:"100"`
	JSON bool `flag:"json"   desc:"output as JSON"`
}

func logsCommand() *cli.Command {
	var params logsParams

	return &cli.Command{
		Name:    "logs",
		Summary: "Fetch recent container logs",
		Usage:   "dockhand container logs <container> [flags]",
		Examples: []cli.Example{
			{
				Description: "Last 50 lines",
				Command:     "dockhand container logs shop-web-1 --tail 50",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("container logs", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand container logs <container>")
			}
			return runLogs(params, args[0])
		},
	}
}

func runLogs(params logsParams, containerID string) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Console()
	if err != nil {
		return err
	}
	defer cleanup()

	logs, err := client.ContainerLogs(ctx, containerID, params.Tail)
	if err != nil {
		return err
	}

	if params.JSON {
		return cli.WriteJSON(logs)
	}

	fmt.Print(logs.Logs)
	if logs.Logs != "" && !strings.HasSuffix(logs.Logs, "\n") {
		fmt.Println()
	}
	return nil
}
