// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
)

type listParams struct {
	cli.ClientConfig
	Limit int  `flag:"limit,n" desc:"maximum archives to list (0 means the server default)"`
	JSON  bool `flag:"json"    desc:"output as JSON"`
}

func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List archived deploy logs, newest first",
		Usage:   "dockhand archive list [flags]",
		Examples: []cli.Example{
			{
				Description: "The ten most recent archives",
				Command:     "dockhand archive list --limit 10",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("archive list", &params)
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

	records, err := client.Archives(ctx, params.Limit)
	if err != nil {
		return err
	}

	if params.JSON {
		return cli.WriteJSON(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no archives yet")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "DIGEST\tPROJECT\tSIZE\tTIMED-OUT\tCREATED")
	for _, record := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			shortDigest(record.Digest),
			record.Project,
			humanize.IBytes(uint64(record.RawSize)),
			timedOutMark(record.TimedOut),
			humanize.Time(record.CreatedAt))
	}
	writer.Flush()

	return nil
}

// shortDigest truncates a content address to the 12-char form the
// table shows. show accepts these as prefixes.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

func timedOutMark(timedOut bool) string {
	if timedOut {
		return "yes"
	}
	return "-"
}
