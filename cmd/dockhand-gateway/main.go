// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Dockhand-gateway is the privileged execution service. It runs on
// the deployment host, owns the operation allowlist, and executes
// vetted git and docker commands on behalf of the console and CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/dockhand/gateway"
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
		version.Print("dockhand-gateway")
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("-config is required")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	config, err := gateway.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("starting dockhand-gateway",
		"version", version.Info(),
		"listen_address", config.ListenAddress,
		"allowlist_path", config.AllowlistPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(gateway.ServerOptions{
		Config: config,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer server.Close()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serving: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
