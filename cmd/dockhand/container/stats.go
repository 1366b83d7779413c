// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

type statsParams struct {
	cli.ClientConfig
	JSON bool `flag:"json" desc:"output as JSON"`
}

func statsCommand() *cli.Command {
	var params statsParams

	return &cli.Command{
		Name:    "stats",
		Summary: "One-shot resource snapshot for a container",
		Usage:   "dockhand container stats <container> [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("container stats", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand container stats <container>")
			}
			return runStats(params, args[0])
		},
	}
}

func runStats(params statsParams, containerID string) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Console()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := client.ContainerStats(ctx, containerID)
	if err != nil {
		return err
	}

	if params.JSON {
		return cli.WriteJSON(stats)
	}

	fmt.Printf("cpu:     %.1f%% of %d cpu(s)\n", stats.CPUPercent, stats.OnlineCPUs)
	fmt.Printf("memory:  %s / %s (%.1f%%)\n",
		humanize.IBytes(stats.MemoryUsage), humanize.IBytes(stats.MemoryLimit), stats.MemoryPercent)
	fmt.Printf("network: rx %s, tx %s\n",
		humanize.IBytes(stats.NetworkRx), humanize.IBytes(stats.NetworkTx))
	fmt.Printf("block:   read %s, write %s\n",
		humanize.IBytes(stats.BlockRead), humanize.IBytes(stats.BlockWrite))
	return nil
}
