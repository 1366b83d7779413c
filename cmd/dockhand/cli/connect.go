// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/dockhand/console"
	"github.com/bureau-foundation/dockhand/gateway"
	"github.com/bureau-foundation/dockhand/lib/secret"
)

// Default service addresses, matching the services' own config
// defaults.
const (
	DefaultGatewayURL = "http://127.0.0.1:9500"
	DefaultConsoleURL = "http://127.0.0.1:9600"
)

// Environment fallbacks for the connection flags.
const (
	EnvGatewayURL = "DOCKHAND_GATEWAY_URL"
	EnvConsoleURL = "DOCKHAND_CONSOLE_URL"
	EnvTokenFile  = "DOCKHAND_TOKEN_FILE"
)

// DefaultTimeout bounds one-shot API commands. Streaming commands
// pass zero to CommandContext and rely on signal cancellation.
const DefaultTimeout = 30 * time.Second

// ClientConfig carries the connection flags shared by every command
// that talks to a dockhand service. Embed it in a params struct; it
// binds its own flags via [FlagBinder].
//
// Resolution order for each value: explicit flag, then environment
// variable, then default. The token file has no default: when neither
// flag nor environment provides one and stdin is a terminal, the
// token is prompted for with echo disabled.
type ClientConfig struct {
	GatewayURL string
	ConsoleURL string
	TokenFile  string
}

// AddFlags binds the shared connection flags.
func (c *ClientConfig) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.GatewayURL, "gateway", "",
		"gateway base URL (default $"+EnvGatewayURL+" or "+DefaultGatewayURL+")")
	flagSet.StringVar(&c.ConsoleURL, "console", "",
		"console base URL (default $"+EnvConsoleURL+" or "+DefaultConsoleURL+")")
	flagSet.StringVar(&c.TokenFile, "token-file", "",
		"bearer token file (default $"+EnvTokenFile+", else interactive prompt)")
}

// ResolvedGatewayURL applies the flag > environment > default order.
func (c *ClientConfig) ResolvedGatewayURL() string {
	if c.GatewayURL != "" {
		return c.GatewayURL
	}
	if fromEnv := os.Getenv(EnvGatewayURL); fromEnv != "" {
		return fromEnv
	}
	return DefaultGatewayURL
}

// ResolvedConsoleURL applies the flag > environment > default order.
func (c *ClientConfig) ResolvedConsoleURL() string {
	if c.ConsoleURL != "" {
		return c.ConsoleURL
	}
	if fromEnv := os.Getenv(EnvConsoleURL); fromEnv != "" {
		return fromEnv
	}
	return DefaultConsoleURL
}

// Token loads the bearer token from --token-file, the environment
// fallback, or an interactive prompt. The caller closes the buffer.
func (c *ClientConfig) Token() (*secret.Buffer, error) {
	path := c.TokenFile
	if path == "" {
		path = os.Getenv(EnvTokenFile)
	}
	if path != "" {
		return secret.ReadFromPath(path)
	}
	return promptToken()
}

// Gateway builds a gateway client. The returned cleanup releases the
// token's locked memory; defer it.
func (c *ClientConfig) Gateway() (*gateway.Client, func(), error) {
	token, err := c.Token()
	if err != nil {
		return nil, nil, err
	}
	client, err := gateway.NewClient(gateway.ClientOptions{
		BaseURL: c.ResolvedGatewayURL(),
		Token:   token,
	})
	if err != nil {
		token.Close()
		return nil, nil, err
	}
	return client, func() { token.Close() }, nil
}

// Console builds a console client. The returned cleanup releases the
// token's locked memory; defer it.
func (c *ClientConfig) Console() (*console.Client, func(), error) {
	token, err := c.Token()
	if err != nil {
		return nil, nil, err
	}
	client, err := console.NewClient(console.ClientOptions{
		BaseURL: c.ResolvedConsoleURL(),
		Token:   token,
	})
	if err != nil {
		token.Close()
		return nil, nil, err
	}
	return client, func() { token.Close() }, nil
}

// promptToken reads the bearer token from the terminal with echo
// disabled. The bytes move straight into locked memory.
func promptToken() (*secret.Buffer, error) {
	stdinFD := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFD) {
		return nil, fmt.Errorf("no token configured: set --token-file or %s", EnvTokenFile)
	}

	fmt.Fprint(os.Stderr, "dockhand token: ")
	tokenBytes, err := term.ReadPassword(stdinFD)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	if len(tokenBytes) == 0 {
		return nil, fmt.Errorf("empty token")
	}

	buffer, err := secret.NewFromBytes(tokenBytes)
	if err != nil {
		secret.Zero(tokenBytes)
		return nil, err
	}
	return buffer, nil
}

// CommandContext returns the context for one CLI invocation:
// cancelled on SIGINT or SIGTERM, bounded by timeout when nonzero.
// The caller must defer cancel.
func CommandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout == 0 {
		return ctx, stop
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx, func() {
		cancel()
		stop()
	}
}
