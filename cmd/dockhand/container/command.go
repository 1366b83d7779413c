// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/portainer"
)

// Command returns the "container" command group with all subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "container",
		Summary: "Container lifecycle and inspection",
		Description: `Manage containers through the console's Portainer-backed endpoints.

Lifecycle actions act on a container by ID or name. "recreate" pulls the
image and rebuilds the container in place, which is how dashboard-driven
image updates roll out. Action failures are reported in the result and map
to a nonzero exit code.`,
		Subcommands: []*cli.Command{
			listCommand(),
			actionCommand(portainer.ActionStart, "Start a stopped container"),
			actionCommand(portainer.ActionStop, "Stop a running container"),
			actionCommand(portainer.ActionRestart, "Restart a container"),
			actionCommand(portainer.ActionKill, "Kill a container (SIGKILL)"),
			actionCommand(portainer.ActionRemove, "Remove a stopped container"),
			actionCommand(portainer.ActionRecreate, "Recreate a container from its image"),
			statsCommand(),
			logsCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "List containers of the shop project",
				Command:     "dockhand container list --project shop",
			},
			{
				Description: "Restart a container by name",
				Command:     "dockhand container restart shop-web-1",
			},
			{
				Description: "One-shot resource snapshot",
				Command:     "dockhand container stats shop-web-1",
			},
		},
	}
}
