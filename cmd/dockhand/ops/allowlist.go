// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/gateway"
)

// AllowlistCommand returns the "allowlist" command group.
func AllowlistCommand() *cli.Command {
	return &cli.Command{
		Name:    "allowlist",
		Summary: "Inspect and replace the gateway allowlist",
		Description: `Manage the gateway's execution allowlist.

The allowlist is the single authorization document for named operations:
repository paths for git pull, compose project names, and container names.
Replacement is wholesale. "get" prints the current document as JSON, which
round-trips directly into "set" after editing. "set" accepts JSON or JSONC
(comments and trailing commas), the same syntax the gateway accepts in its
on-disk allowlist file.`,
		Subcommands: []*cli.Command{
			allowlistGetCommand(),
			allowlistSetCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Save the current allowlist, edit it, install the result",
				Command:     "dockhand allowlist get > allow.json && vi allow.json && dockhand allowlist set allow.json",
			},
		},
	}
}

type allowlistGetParams struct {
	cli.ClientConfig
}

func allowlistGetCommand() *cli.Command {
	var params allowlistGetParams

	return &cli.Command{
		Name:    "get",
		Summary: "Print the current allowlist as JSON",
		Usage:   "dockhand allowlist get",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("allowlist get", &params)
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			return runAllowlistGet(params)
		},
	}
}

func runAllowlistGet(params allowlistGetParams) error {
	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Gateway()
	if err != nil {
		return err
	}
	defer cleanup()

	allowlist, err := client.Allowlist(ctx)
	if err != nil {
		return err
	}
	return cli.WriteJSON(allowlist)
}

type allowlistSetParams struct {
	cli.ClientConfig
}

func allowlistSetCommand() *cli.Command {
	var params allowlistSetParams

	return &cli.Command{
		Name:    "set",
		Summary: "Replace the allowlist from a JSON or JSONC file",
		Usage:   "dockhand allowlist set <file>",
		Examples: []cli.Example{
			{
				Description: "Install an edited allowlist",
				Command:     "dockhand allowlist set allow.json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("allowlist set", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand allowlist set <file>")
			}
			return runAllowlistSet(params, args[0])
		},
	}
}

func runAllowlistSet(params allowlistSetParams, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading allowlist file: %w", err)
	}

	var allowlist gateway.Allowlist
	if err := json.Unmarshal(jsonc.ToJSON(data), &allowlist); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	ctx, cancel := cli.CommandContext(cli.DefaultTimeout)
	defer cancel()

	client, cleanup, err := params.Gateway()
	if err != nil {
		return err
	}
	defer cleanup()

	saved, err := client.ReplaceAllowlist(ctx, &allowlist)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "allowlist installed: %d repo(s), %d compose project(s), %d container(s)\n",
		len(saved.RepoPaths), len(saved.ComposeProjects), len(saved.ContainerNames))
	return cli.WriteJSON(saved)
}
