// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
token_file: /etc/dockhand/token
allowlist_path: /var/lib/dockhand/allowlist.json
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.ListenAddress != "127.0.0.1:9500" {
		t.Errorf("ListenAddress = %q, want default 127.0.0.1:9500", config.ListenAddress)
	}
	if config.ShellTimeout() != 60*time.Second {
		t.Errorf("ShellTimeout = %s, want 60s", config.ShellTimeout())
	}
	if config.MaxOutputBytes != DefaultMaxOutput {
		t.Errorf("MaxOutputBytes = %d, want %d", config.MaxOutputBytes, DefaultMaxOutput)
	}
	if config.ShutdownTimeout() != 10*time.Second {
		t.Errorf("ShutdownTimeout = %s, want 10s", config.ShutdownTimeout())
	}
	if len(config.ExtraNetworks()) != 0 {
		t.Errorf("ExtraNetworks = %v, want empty", config.ExtraNetworks())
	}
}

func TestLoadConfigExplicitValues(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
listen_address: 0.0.0.0:9600
token_file: /etc/dockhand/token
allowlist_path: /var/lib/dockhand/allowlist.json
deploy_log_dir: /var/log/dockhand
shell_timeout_seconds: 120
max_output_bytes: 1048576
allowed_networks:
  - 100.64.0.0/10
  - fd00::/8
shutdown_timeout_seconds: 5
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.ListenAddress != "0.0.0.0:9600" {
		t.Errorf("ListenAddress = %q", config.ListenAddress)
	}
	if config.ShellTimeout() != 2*time.Minute {
		t.Errorf("ShellTimeout = %s, want 2m", config.ShellTimeout())
	}
	if config.MaxOutputBytes != 1<<20 {
		t.Errorf("MaxOutputBytes = %d, want %d", config.MaxOutputBytes, 1<<20)
	}

	extra := config.ExtraNetworks()
	if len(extra) != 2 {
		t.Fatalf("ExtraNetworks = %v, want 2 prefixes", extra)
	}
	if !extra[0].Contains(netip.MustParseAddr("100.127.0.1")) {
		t.Errorf("prefix %s should contain 100.127.0.1", extra[0])
	}
	if !extra[1].Contains(netip.MustParseAddr("fd12::1")) {
		t.Errorf("prefix %s should contain fd12::1", extra[1])
	}
}

func TestLoadConfigEnvironmentExpansion(t *testing.T) {
	t.Setenv("DOCKHAND_TEST_TOKEN_FILE", "/run/secrets/token")

	path := writeConfigFile(t, `
token_file: ${DOCKHAND_TEST_TOKEN_FILE}
allowlist_path: ${DOCKHAND_TEST_MISSING:-/var/lib/dockhand/allowlist.json}
listen_address: "${DOCKHAND_TEST_MISSING_ADDR:-127.0.0.1:9501}"
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.TokenFile != "/run/secrets/token" {
		t.Errorf("TokenFile = %q, want expanded env value", config.TokenFile)
	}
	if config.AllowlistPath != "/var/lib/dockhand/allowlist.json" {
		t.Errorf("AllowlistPath = %q, want the fallback default", config.AllowlistPath)
	}
	if config.ListenAddress != "127.0.0.1:9501" {
		t.Errorf("ListenAddress = %q, want the fallback default", config.ListenAddress)
	}
}

func TestLoadConfigAggregatesErrors(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
shell_timeout_seconds: -1
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig succeeded, want validation errors")
	}

	message := err.Error()
	for _, want := range []string{"token_file", "allowlist_path", "shell_timeout_seconds"} {
		if !strings.Contains(message, want) {
			t.Errorf("error %q does not mention %s", message, want)
		}
	}
}

func TestLoadConfigBadNetwork(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, `
token_file: /etc/dockhand/token
allowlist_path: /var/lib/dockhand/allowlist.json
allowed_networks:
  - not-a-cidr
`)

	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig succeeded, want CIDR parse error")
	}
	if !strings.Contains(err.Error(), "not-a-cidr") {
		t.Errorf("error %q does not name the bad entry", err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("LoadConfig on a missing file succeeded, want error")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	t.Parallel()

	path := writeConfigFile(t, "token_file: [unclosed\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("LoadConfig on malformed YAML succeeded, want error")
	}
}

func TestExpandVariables(t *testing.T) {
	t.Setenv("DOCKHAND_EXPAND_SET", "value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "set_variable", input: "x ${DOCKHAND_EXPAND_SET} y", want: "x value y"},
		{name: "unset_variable", input: "${DOCKHAND_EXPAND_UNSET}", want: ""},
		{name: "unset_with_default", input: "${DOCKHAND_EXPAND_UNSET:-fallback}", want: "fallback"},
		{name: "set_ignores_default", input: "${DOCKHAND_EXPAND_SET:-fallback}", want: "value"},
		{name: "empty_default", input: "${DOCKHAND_EXPAND_UNSET:-}", want: ""},
		{name: "no_variables", input: "plain text", want: "plain text"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := expandVariables(test.input); got != test.want {
				t.Errorf("expandVariables(%q) = %q, want %q", test.input, got, test.want)
			}
		})
	}
}
