// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

// Command returns the "deploy" command group with all subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "deploy",
		Summary: "Start compose deploys and follow their logs",
		Description: `Start a compose deploy detached on the host and follow its log.

The console launches "docker compose up -d" under nohup with output
redirected to a log file. The deploy survives this CLI exiting: watch
re-attaches to the same log file at any point while it exists, and the
console archives it once the build finishes.

The watch stream is server-bounded. When the window closes with the
build still running, watch exits with code 2 and the deploy keeps
going in the background.`,
		Subcommands: []*cli.Command{
			startCommand(),
			watchCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Rebuild and deploy the shop project, following the log",
				Command:     "dockhand deploy start shop --build --watch",
			},
			{
				Description: "Re-attach to a running deploy",
				Command:     "dockhand deploy watch /var/log/dockhand/deploy-shop-1756100000.log",
			},
		},
	}
}
