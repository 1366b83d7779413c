// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/console"
)

type listParams struct {
	cli.ClientConfig
	Project string `flag:"project" desc:"only containers of this compose project"`
	JSON    bool   `flag:"json"    desc:"output as JSON"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List containers",
		Usage:   "dockhand container list [flags]",
		Examples: []cli.Example{
			{
				Description: "All containers, including stopped ones",
				Command:     "dockhand container list",
			},
			{
				Description: "Only the blog project, as JSON",
				Command:     "dockhand container list --project blog --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("container list", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runList(params)
		},
	}
}

func runList(params listParams) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Console()
	if err != nil {
		return err
	}
	defer cleanup()

	containers, err := client.Containers(ctx)
	if err != nil {
		return err
	}
	containers = filterByProject(containers, params.Project)

	if params.JSON {
		return cli.WriteJSON(containers)
	}

	if len(containers) == 0 {
		fmt.Fprintln(os.Stderr, "no containers found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tSTATE\tSTATUS\tPROJECT\tCREATED\tID")
	for _, container := range containers {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			container.Name,
			container.State,
			container.Status,
			orDash(container.Project),
			humanize.Time(time.Unix(container.Created, 0)),
			shortID(container.ID))
	}
	writer.Flush()

	return nil
}

// filterByProject narrows the listing to one compose project. An empty
// project keeps everything.
func filterByProject(containers []console.ContainerView, project string) []console.ContainerView {
	if project == "" {
		return containers
	}
	filtered := containers[:0]
	for _, container := range containers {
		if container.Project == project {
			filtered = append(filtered, container)
		}
	}
	return filtered
}

// shortID truncates a 64-hex container ID to the familiar 12-char
// form. Names and already-short IDs pass through.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
