// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/console"
)

// fullDigestLength is the length of a complete lowercase hex content
// address. Anything shorter is treated as a prefix.
const fullDigestLength = 64

// prefixScanLimit bounds the index page used to expand digest
// prefixes. Far beyond any realistic archive retention.
const prefixScanLimit = 1000

type showParams struct {
	cli.ClientConfig
	JSON bool `flag:"json" desc:"output the record and content as JSON"`
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print one archived deploy log",
		Usage:   "dockhand archive show [flags] <digest>",
		Examples: []cli.Example{
			{
				Description: "Print a log by digest prefix",
				Command:     "dockhand archive show f3a9b2c1d0e8",
			},
			{
				Description: "Record and content as JSON",
				Command:     "dockhand archive show f3a9b2c1d0e8 --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("archive show", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand archive show <digest>")
			}
			return runShow(params, args[0])
		},
	}
}

func runShow(params showParams, digest string) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Console()
	if err != nil {
		return err
	}
	defer cleanup()

	resolved, err := resolveDigest(ctx, client, digest)
	if err != nil {
		return err
	}
	response, err := client.Archive(ctx, resolved)
	if err != nil {
		return err
	}

	if params.JSON {
		return cli.WriteJSON(response)
	}

	// Content only: the plain form is for reading and piping.
	fmt.Print(response.Content)
	if !strings.HasSuffix(response.Content, "\n") {
		fmt.Println()
	}
	return nil
}

// resolveDigest expands a digest prefix to a full content address by
// scanning the archive index. Full digests pass through without the
// extra round trip.
func resolveDigest(ctx context.Context, client *console.Client, digest string) (string, error) {
	digest = strings.ToLower(digest)
	if len(digest) == fullDigestLength {
		return digest, nil
	}

	records, err := client.Archives(ctx, prefixScanLimit)
	if err != nil {
		return "", err
	}

	var full string
	for _, record := range records {
		if !strings.HasPrefix(record.Digest, digest) {
			continue
		}
		if full != "" && full != record.Digest {
			return "", fmt.Errorf("digest prefix %q is ambiguous", digest)
		}
		full = record.Digest
	}
	if full == "" {
		return "", fmt.Errorf("no archive matches digest %q", digest)
	}
	return full, nil
}
