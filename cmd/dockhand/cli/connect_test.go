// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

func TestClientConfig_ResolvedGatewayURL(t *testing.T) {
	tests := []struct {
		name    string
		flagURL string
		envURL  string
		want    string
	}{
		{
			name:    "flag_wins_over_env",
			flagURL: "http://flag.internal:9500",
			envURL:  "http://env.internal:9500",
			want:    "http://flag.internal:9500",
		},
		{
			name:   "env_when_no_flag",
			envURL: "http://env.internal:9500",
			want:   "http://env.internal:9500",
		},
		{
			name: "default_when_unset",
			want: DefaultGatewayURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvGatewayURL, tt.envURL)
			config := ClientConfig{GatewayURL: tt.flagURL}
			if got := config.ResolvedGatewayURL(); got != tt.want {
				t.Errorf("ResolvedGatewayURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientConfig_ResolvedConsoleURL(t *testing.T) {
	t.Setenv(EnvConsoleURL, "")

	config := ClientConfig{}
	if got := config.ResolvedConsoleURL(); got != DefaultConsoleURL {
		t.Errorf("ResolvedConsoleURL() = %q, want default %q", got, DefaultConsoleURL)
	}

	t.Setenv(EnvConsoleURL, "http://env.internal:9600")
	if got := config.ResolvedConsoleURL(); got != "http://env.internal:9600" {
		t.Errorf("ResolvedConsoleURL() = %q, want env value", got)
	}

	config.ConsoleURL = "http://flag.internal:9600"
	if got := config.ResolvedConsoleURL(); got != "http://flag.internal:9600" {
		t.Errorf("ResolvedConsoleURL() = %q, want flag value", got)
	}
}

func TestClientConfig_TokenFromFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenPath, []byte("file-token-value\n"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}

	config := ClientConfig{TokenFile: tokenPath}
	token, err := config.Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	defer token.Close()

	if got := token.String(); got != "file-token-value" {
		t.Errorf("token = %q, want %q (trailing newline trimmed)", got, "file-token-value")
	}
}

func TestClientConfig_TokenFromEnvFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenPath, []byte("env-token-value"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}
	t.Setenv(EnvTokenFile, tokenPath)

	config := ClientConfig{}
	token, err := config.Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	defer token.Close()

	if got := token.String(); got != "env-token-value" {
		t.Errorf("token = %q, want %q", got, "env-token-value")
	}
}

func TestClientConfig_TokenFlagWinsOverEnv(t *testing.T) {
	dir := t.TempDir()

	flagPath := filepath.Join(dir, "flag-token")
	if err := os.WriteFile(flagPath, []byte("from-flag"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}
	envPath := filepath.Join(dir, "env-token")
	if err := os.WriteFile(envPath, []byte("from-env"), 0o600); err != nil {
		t.Fatalf("writing token file: %v", err)
	}
	t.Setenv(EnvTokenFile, envPath)

	config := ClientConfig{TokenFile: flagPath}
	token, err := config.Token()
	if err != nil {
		t.Fatalf("Token() error: %v", err)
	}
	defer token.Close()

	if got := token.String(); got != "from-flag" {
		t.Errorf("token = %q, want %q", got, "from-flag")
	}
}

func TestClientConfig_AddFlags(t *testing.T) {
	t.Parallel()

	var config ClientConfig
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.AddFlags(flagSet)

	for _, name := range []string{"gateway", "console", "token-file"} {
		if flagSet.Lookup(name) == nil {
			t.Errorf("flag --%s not registered", name)
		}
	}

	args := []string{
		"--gateway", "http://a:1",
		"--console", "http://b:2",
		"--token-file", "/etc/dockhand/token",
	}
	if err := flagSet.Parse(args); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if config.GatewayURL != "http://a:1" {
		t.Errorf("GatewayURL = %q", config.GatewayURL)
	}
	if config.ConsoleURL != "http://b:2" {
		t.Errorf("ConsoleURL = %q", config.ConsoleURL)
	}
	if config.TokenFile != "/etc/dockhand/token" {
		t.Errorf("TokenFile = %q", config.TokenFile)
	}
}
