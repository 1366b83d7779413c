// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Dockhand-console is the operator-facing dashboard service. It
// fronts the Portainer API for container state and the gateway for
// privileged operations, streams deploy logs over SSE, and serves the
// encrypted deploy-log archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/dockhand/console"
	"github.com/bureau-foundation/dockhand/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "path to config file (required)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		version.Print("dockhand-console")
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("-config is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config, err := console.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("starting dockhand-console",
		"version", version.Info(),
		"listen_address", config.ListenAddress,
		"gateway_url", config.Gateway.URL,
		"portainer_url", config.Portainer.URL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := console.NewFromConfig(config, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			logger.Error("closing server", "error", err)
		}
	}()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
