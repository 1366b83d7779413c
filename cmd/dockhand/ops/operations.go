// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/dockhand/cmd/dockhand/cli"
	"github.com/bureau-foundation/dockhand/gateway"
)

// PullCommand returns the "pull" command: git pull an allowlisted
// repository checkout on the gateway host.
func PullCommand() *cli.Command {
	var params struct {
		cli.ClientConfig
		JSON bool `flag:"json" desc:"print the full execution result as JSON"`
	}

	return &cli.Command{
		Name:    "pull",
		Summary: "Update an allowlisted repository checkout (git pull)",
		Usage:   "dockhand pull <repo-path> [flags]",
		Examples: []cli.Example{
			{
				Description: "Pull the shop checkout and print the new HEAD",
				Command:     "dockhand pull /srv/repos/shop",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("pull", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand pull <repo-path>")
			}
			return executeOperation(params.ClientConfig, params.JSON, &gateway.OperationRequest{
				Operation: gateway.OperationGitPull,
				Target:    gateway.Target{RepoPath: args[0]},
			})
		},
	}
}

// RestartCommand returns the "restart" command. The positional name is
// a container by default; --project restarts every container of a
// compose project instead.
func RestartCommand() *cli.Command {
	var params struct {
		cli.ClientConfig
		Project bool `flag:"project" desc:"treat the name as a compose project instead of a container"`
		JSON    bool `flag:"json"    desc:"print the full execution result as JSON"`
	}

	return &cli.Command{
		Name:    "restart",
		Summary: "Restart a container or compose project",
		Usage:   "dockhand restart <name> [flags]",
		Examples: []cli.Example{
			{
				Description: "Restart a single container",
				Command:     "dockhand restart shop-web-1",
			},
			{
				Description: "Restart every container of the shop project",
				Command:     "dockhand restart shop --project",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("restart", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand restart <name>")
			}
			return executeOperation(params.ClientConfig, params.JSON, &gateway.OperationRequest{
				Operation: gateway.OperationDockerRestart,
				Target:    containerOrProject(args[0], params.Project),
			})
		},
	}
}

// RebuildCommand returns the "rebuild" command: compose up -d --build
// for a project, optionally narrowed to one service.
func RebuildCommand() *cli.Command {
	var params struct {
		cli.ClientConfig
		Service string `flag:"service" desc:"rebuild only this compose service"`
		JSON    bool   `flag:"json"    desc:"print the full execution result as JSON"`
	}

	return &cli.Command{
		Name:    "rebuild",
		Summary: "Rebuild and recreate a compose project",
		Usage:   "dockhand rebuild <project> [flags]",
		Examples: []cli.Example{
			{
				Description: "Rebuild the whole shop project",
				Command:     "dockhand rebuild shop",
			},
			{
				Description: "Rebuild only the web service",
				Command:     "dockhand rebuild shop --service web",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("rebuild", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand rebuild <project>")
			}
			return executeOperation(params.ClientConfig, params.JSON, &gateway.OperationRequest{
				Operation: gateway.OperationDockerRebuild,
				Target: gateway.Target{
					ComposeProject: args[0],
					ServiceName:    params.Service,
				},
			})
		},
	}
}

// UpCommand returns the "up" command: compose up -d for a project.
func UpCommand() *cli.Command {
	var params struct {
		cli.ClientConfig
		Build bool `flag:"build" desc:"rebuild images before starting"`
		JSON  bool `flag:"json"  desc:"print the full execution result as JSON"`
	}

	return &cli.Command{
		Name:    "up",
		Summary: "Bring a compose project up detached",
		Usage:   "dockhand up <project> [flags]",
		Examples: []cli.Example{
			{
				Description: "Start the shop project",
				Command:     "dockhand up shop",
			},
			{
				Description: "Rebuild images first",
				Command:     "dockhand up shop --build",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("up", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand up <project>")
			}
			return executeOperation(params.ClientConfig, params.JSON, &gateway.OperationRequest{
				Operation: gateway.OperationComposeUp,
				Target:    gateway.Target{ComposeProject: args[0]},
				Options:   gateway.Options{Build: params.Build},
			})
		},
	}
}

// LogsCommand returns the "logs" command: tail container logs through
// the gateway.
func LogsCommand() *cli.Command {
	var params struct {
		cli.ClientConfig
		Project bool `flag:"project" desc:"treat the name as a compose project instead of a container"`
		Tail    int  `flag:"tail,n"  desc:"number of log lines" default:"100"`
		JSON    bool `flag:"json"    desc:"print the full execution result as JSON"`
	}

	return &cli.Command{
		Name:    "logs",
		Summary: "Fetch recent logs for a container or compose project",
		Usage:   "dockhand logs <name> [flags]",
		Examples: []cli.Example{
			{
				Description: "Last 50 lines from a container",
				Command:     "dockhand logs shop-web-1 --tail 50",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("logs", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand logs <name>")
			}
			return executeOperation(params.ClientConfig, params.JSON, &gateway.OperationRequest{
				Operation: gateway.OperationDockerLogs,
				Target:    containerOrProject(args[0], params.Project),
				Options:   gateway.Options{Tail: params.Tail},
			})
		},
	}
}

// PsCommand returns the "ps" command: container status by name or
// compose project prefix.
func PsCommand() *cli.Command {
	var params struct {
		cli.ClientConfig
		Project bool `flag:"project" desc:"treat the name as a compose project instead of a container"`
		JSON    bool `flag:"json"    desc:"print the full execution result as JSON"`
	}

	return &cli.Command{
		Name:    "ps",
		Summary: "Show container status for a name or compose project",
		Usage:   "dockhand ps <name> [flags]",
		Examples: []cli.Example{
			{
				Description: "Status of every shop container",
				Command:     "dockhand ps shop --project",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("ps", &params)
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("usage: dockhand ps <name>")
			}
			return executeOperation(params.ClientConfig, params.JSON, &gateway.OperationRequest{
				Operation: gateway.OperationDockerStatus,
				Target:    containerOrProject(args[0], params.Project),
			})
		},
	}
}

// containerOrProject builds the target for operations that accept
// either identifier. The allowlist check depends on which field is
// populated, so the flag decides, not the server.
func containerOrProject(name string, isProject bool) gateway.Target {
	if isProject {
		return gateway.Target{ComposeProject: name}
	}
	return gateway.Target{ContainerName: name}
}

// executeOperation dispatches a named operation and renders the
// result. A failed operation prints the gateway's error to stderr and
// exits nonzero. No context timeout here: the client's 90s HTTP
// timeout outlasts the gateway's 60s subprocess ceiling.
func executeOperation(config cli.ClientConfig, asJSON bool, request *gateway.OperationRequest) error {
	ctx, cancel := cli.CommandContext(0)
	defer cancel()

	client, cleanup, err := config.Gateway()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := client.Execute(ctx, request)
	if err != nil {
		return err
	}

	if asJSON {
		if err := cli.WriteJSON(result); err != nil {
			return err
		}
		if !result.Success {
			return &cli.ExitError{Code: 1}
		}
		return nil
	}

	if result.Output != "" {
		fmt.Print(result.Output)
		if !strings.HasSuffix(result.Output, "\n") {
			fmt.Println()
		}
	}
	if result.CommitSHA != "" {
		fmt.Printf("HEAD: %s\n", result.CommitSHA)
	}
	if !result.Success {
		fmt.Fprintf(os.Stderr, "%s failed: %s\n", request.Operation, result.Error)
		return &cli.ExitError{Code: 1}
	}
	return nil
}
