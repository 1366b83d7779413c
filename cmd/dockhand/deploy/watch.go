// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploy

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/cmd/dockhand/deploywatch"
	"github.com/bureau-foundation/dockhand/console"
)

type watchParams struct {
	cli.ClientConfig
	Plain bool `flag:"plain" desc:"stream raw text to stdout instead of the interactive viewer"`
}

func watchCommand() *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Follow a deploy log",
		Usage:   "dockhand deploy watch [flags] <log-file>",
		Examples: []cli.Example{
			{
				Description: "Interactive viewer with scrollback and fuzzy filter",
				Command:     "dockhand deploy watch /var/log/dockhand/deploy-shop-1756100000.log",
			},
			{
				Description: "Raw stream, suitable for piping",
				Command:     "dockhand deploy watch --plain /var/log/dockhand/deploy-shop-1756100000.log | grep -i error",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("deploy watch", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand deploy watch <log-file>")
			}
			client, cleanup, err := params.Console()
			if err != nil {
				return err
			}
			defer cleanup()
			return watchLog(client, args[0], params.Plain)
		},
	}
}

// watchLog follows one deploy log to its end. Exit code 2 means the
// server's stream window closed with the build still running: the
// deploy itself is unaffected.
func watchLog(client *console.Client, logFile string, plain bool) error {
	if plain {
		return watchPlain(client, logFile)
	}

	outcome, err := deploywatch.Run(client, logFile)
	if err != nil {
		return err
	}
	if outcome.Quit {
		fmt.Fprintf(os.Stderr, "stopped watching; the deploy keeps running. resume with: dockhand deploy watch %s\n", logFile)
		return nil
	}
	if outcome.TimedOut {
		fmt.Fprintf(os.Stderr, "stream window closed with the build still running; resume with: dockhand deploy watch %s\n", logFile)
		return &cli.ExitError{Code: 2}
	}
	return nil
}

// watchPlain copies log chunks to stdout as they stream in. Status
// heartbeats are dropped: they carry no text and would corrupt piped
// output.
func watchPlain(client *console.Client, logFile string) error {
	ctx, cancel := cli.CommandContext(0)
	defer cancel()

	timedOut := false
	err := client.StreamDeployLog(ctx, logFile, func(event console.StreamEvent) error {
		switch {
		case event.Log != nil:
			fmt.Print(event.Log.Content)
		case event.Error != nil:
			fmt.Fprintf(os.Stderr, "stream error: %s\n", event.Error.Error)
		case event.Complete != nil:
			timedOut = event.Complete.TimedOut
		}
		return nil
	})
	if err != nil {
		return err
	}

	if timedOut {
		fmt.Fprintf(os.Stderr, "stream window closed with the build still running; resume with: dockhand deploy watch %s\n", logFile)
		return &cli.ExitError{Code: 2}
	}
	return nil
}
