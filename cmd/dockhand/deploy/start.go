// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

type startParams struct {
	cli.ClientConfig
	Build bool `flag:"build"   desc:"rebuild images before starting"`
	Watch bool `flag:"watch,w" desc:"follow the deploy log after starting"`
	Plain bool `flag:"plain"   desc:"with --watch, stream raw text instead of the interactive viewer"`
	JSON  bool `flag:"json"    desc:"output the start response as JSON"`
}

func startCommand() *cli.Command {
	var params startParams

	return &cli.Command{
		Name:    "start",
		Summary: "Start a detached compose deploy",
		Usage:   "dockhand deploy start [flags] <compose-project>",
		Examples: []cli.Example{
			{
				Description: "Deploy without rebuilding",
				Command:     "dockhand deploy start blog",
			},
			{
				Description: "Rebuild images and follow the log",
				Command:     "dockhand deploy start shop --build --watch",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("deploy start", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand deploy start <compose-project>")
			}
			return runStart(params, args[0])
		},
	}
}

func runStart(params startParams, project string) error {
	client, cleanup, err := params.Console()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	response, err := client.StartDeploy(ctx, project, params.Build)
	cancel()
	if err != nil {
		return err
	}

	if params.JSON {
		if err := cli.WriteJSON(response); err != nil {
			return err
		}
	} else {
		fmt.Printf("deploy started: %s\n", response.Project)
		fmt.Printf("  log file: %s\n", response.LogFile)
		if !params.Watch {
			fmt.Printf("  follow with: dockhand deploy watch %s\n", response.LogFile)
		}
	}

	if !params.Watch {
		return nil
	}
	return watchLog(client, response.LogFile, params.Plain)
}
