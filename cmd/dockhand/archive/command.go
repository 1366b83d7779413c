// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

// Command returns the "archive" command group with all subcommands.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "archive",
		Summary: "Browse archived deploy logs",
		Description: `List and retrieve deploy logs archived by the console.

Finished deploy logs are compressed, encrypted, and stored by content
address. "list" shows the archive index newest first; "show" decrypts
one log by digest and prints it. A digest prefix is enough as long as
it is unambiguous.`,
		Subcommands: []*cli.Command{
			listCommand(),
			showCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "The ten most recent archives",
				Command:     "dockhand archive list --limit 10",
			},
			{
				Description: "Save an archived log to a file",
				Command:     "dockhand archive show f3a9b2c1d0e8 > deploy.log",
			},
		},
	}
}
