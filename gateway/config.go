// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the gateway service configuration, loaded from a YAML
// file. ${VAR} and ${VAR:-default} references are expanded from the
// environment before parsing.
type Config struct {
	// ListenAddress is the TCP address the HTTP API binds to.
	// Defaults to 127.0.0.1:9500. The gateway additionally refuses
	// requests from non-private source addresses, so binding a
	// wider interface still only admits RFC 1918 / loopback peers
	// plus AllowedNetworks.
	ListenAddress string `yaml:"listen_address"`

	// TokenFile is the path to the shared bearer token. Required.
	// The token is read once at startup into locked memory.
	TokenFile string `yaml:"token_file"`

	// AllowlistPath is the path of the persisted allowlist document.
	// Required. A missing file is fine (the gateway starts with an
	// empty allowlist); the path must still be somewhere writable so
	// management updates can persist.
	AllowlistPath string `yaml:"allowlist_path"`

	// DeployLogDir, when set, is created at startup. Deploy shell
	// commands write their logs here and the console streams them.
	DeployLogDir string `yaml:"deploy_log_dir"`

	// ShellTimeoutSeconds bounds every subprocess the gateway runs.
	// Defaults to 60.
	ShellTimeoutSeconds int `yaml:"shell_timeout_seconds"`

	// MaxOutputBytes bounds captured subprocess output. Defaults to
	// 5 MiB.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// AllowedNetworks lists extra CIDRs admitted in addition to
	// loopback and private ranges, e.g. a WireGuard subnet.
	AllowedNetworks []string `yaml:"allowed_networks"`

	// ShutdownTimeoutSeconds bounds the graceful drain on SIGTERM.
	// Defaults to 10.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`

	// extraNetworks is AllowedNetworks parsed, populated by Validate.
	extraNetworks []netip.Prefix
}

// LoadConfig reads, expands, parses, defaults, and validates a config
// file. Every fault is reported; a config that loads is usable as-is.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(expandVariables(string(data))), &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = "127.0.0.1:9500"
	}
	if c.ShellTimeoutSeconds == 0 {
		c.ShellTimeoutSeconds = 60
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutput
	}
	if c.ShutdownTimeoutSeconds == 0 {
		c.ShutdownTimeoutSeconds = 10
	}
}

// Validate aggregates every configuration fault rather than stopping
// at the first, so an operator fixes one round of errors, not five.
func (c *Config) Validate() error {
	var errs []error

	if c.TokenFile == "" {
		errs = append(errs, errors.New("token_file is required"))
	}
	if c.AllowlistPath == "" {
		errs = append(errs, errors.New("allowlist_path is required"))
	}
	if c.ShellTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("shell_timeout_seconds must be positive, got %d", c.ShellTimeoutSeconds))
	}
	if c.MaxOutputBytes < 1 {
		errs = append(errs, fmt.Errorf("max_output_bytes must be positive, got %d", c.MaxOutputBytes))
	}

	c.extraNetworks = c.extraNetworks[:0]
	for _, network := range c.AllowedNetworks {
		prefix, err := netip.ParsePrefix(network)
		if err != nil {
			errs = append(errs, fmt.Errorf("allowed_networks entry %q: %w", network, err))
			continue
		}
		c.extraNetworks = append(c.extraNetworks, prefix)
	}

	return errors.Join(errs...)
}

// ShellTimeout returns the subprocess timeout as a duration.
func (c *Config) ShellTimeout() time.Duration {
	return time.Duration(c.ShellTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful drain bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// ExtraNetworks returns the parsed AllowedNetworks prefixes. Only
// populated after Validate.
func (c *Config) ExtraNetworks() []netip.Prefix {
	return c.extraNetworks
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns from
// the environment.
var variablePattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVariables(s string) string {
	return variablePattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := variablePattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
