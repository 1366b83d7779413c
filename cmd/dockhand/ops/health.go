// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

type healthParams struct {
	cli.ClientConfig
	JSON bool `flag:"json" desc:"output as JSON"`
}

// HealthCommand returns the "health" command, a gateway liveness
// probe.
func HealthCommand() *cli.Command {
	var params healthParams

	return &cli.Command{
		Name:    "health",
		Summary: "Check gateway liveness",
		Usage:   "dockhand health [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("health", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runHealth(params)
		},
	}
}

func runHealth(params healthParams) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Gateway()
	if err != nil {
		return err
	}
	defer cleanup()

	health, err := client.Health(ctx)
	if err != nil {
		return err
	}

	if params.JSON {
		return cli.WriteJSON(health)
	}
	fmt.Printf("%s %s (version %s)\n", health.Service, health.Status, health.Version)
	return nil
}
