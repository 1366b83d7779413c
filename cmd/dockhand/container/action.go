// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/portainer"
)

type actionParams struct {
	cli.ClientConfig
	JSON bool `flag:"json" desc:"print the action result as JSON"`
}

// actionCommand builds one lifecycle command. All six verbs share the
// same shape: one container argument, POST to the console, render the
// result.
func actionCommand(action portainer.Action, summary string) *cli.Command {
	var params actionParams
	name := string(action)

	return &cli.Command{
		Name:    name,
		Summary: summary,
		Usage:   fmt.Sprintf("dockhand container %s <container> [flags]", name),
		Examples: []cli.Example{
			{Command: fmt.Sprintf("dockhand container %s shop-web-1", name)},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("container "+name, &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand container %s <container>", name)
			}
			return runAction(params, action, args[0])
		},
	}
}

func runAction(params actionParams, action portainer.Action, containerID string) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Console()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := client.ContainerAction(ctx, containerID, action)
	if err != nil {
		return err
	}

	if params.JSON {
		if err := cli.WriteJSON(result); err != nil {
			return err
		}
		if !result.Success {
			return &cli.ExitError{Code: 1}
		}
		return nil
	}

	if !result.Success {
		fmt.Fprintf(os.Stderr, "%s %s failed: %s\n", action, containerID, result.Message)
		return &cli.ExitError{Code: 1}
	}
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	return nil
}
