// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the console service configuration, loaded from a YAML
// file. ${VAR} and ${VAR:-default} references are expanded from the
// environment before parsing.
type Config struct {
	// ListenAddress is the TCP address the HTTP API binds to.
	// Defaults to 127.0.0.1:9600.
	ListenAddress string `yaml:"listen_address"`

	// TokenFile is the path to the console's own bearer token.
	// Required. Read once at startup into locked memory.
	TokenFile string `yaml:"token_file"`

	// Gateway locates the execution gateway the console deploys
	// through.
	Gateway GatewayConfig `yaml:"gateway"`

	// Portainer locates the container management API and its
	// credentials.
	Portainer PortainerConfig `yaml:"portainer"`

	// DeployLogDir is the directory deploy logs are written to and
	// streamed from. Required. The console and the gateway must see
	// the same directory: the gateway's shell writes the logs, the
	// console archives them after streaming.
	DeployLogDir string `yaml:"deploy_log_dir"`

	// Archive configures the encrypted deploy-log archive.
	Archive ArchiveConfig `yaml:"archive"`

	// Stream tunes the deploy-log polling loop.
	Stream StreamConfig `yaml:"stream"`

	// ShutdownTimeoutSeconds bounds the graceful drain on SIGTERM.
	// Defaults to 10.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// GatewayConfig locates the execution gateway.
type GatewayConfig struct {
	// URL is the gateway root, e.g. "http://127.0.0.1:9500". Required.
	URL string `yaml:"url"`

	// TokenFile is the path to the gateway bearer token. Required.
	TokenFile string `yaml:"token_file"`
}

// PortainerConfig locates the Portainer API and its credentials. At
// least one token source must be configured: username plus password
// file, a static token environment variable, or a complete sealed
// token store.
type PortainerConfig struct {
	// URL is the Portainer root, e.g. "https://portainer.lan:9443".
	// Required.
	URL string `yaml:"url"`

	// EndpointID selects the Docker environment within Portainer.
	// Required; the local environment is 1 on a default install.
	EndpointID int `yaml:"endpoint_id"`

	// Username and PasswordFile are the credentials used to mint API
	// tokens. Optional as a pair: without them the console runs on a
	// stored or static token but cannot recover from a 401.
	Username     string `yaml:"username"`
	PasswordFile string `yaml:"password_file"`

	// StaticTokenEnv names an environment variable holding a
	// long-lived API token, tried after every other source. Optional.
	StaticTokenEnv string `yaml:"static_token_env"`

	// TokenStore configures the durable sealed token store. Optional;
	// when set, all three fields are required.
	TokenStore TokenStoreConfig `yaml:"token_store"`
}

// TokenStoreConfig configures the age-sealed Portainer token store.
type TokenStoreConfig struct {
	// Path of the sealed token file.
	Path string `yaml:"path"`

	// IdentityFile is the path to the age private key that unseals
	// the store.
	IdentityFile string `yaml:"identity_file"`

	// Recipient is the age public key tokens are sealed to.
	Recipient string `yaml:"recipient"`
}

// ArchiveConfig configures the encrypted deploy-log archive. All
// fields are required.
type ArchiveConfig struct {
	// Dir is the blob directory.
	Dir string `yaml:"dir"`

	// IndexPath is the SQLite index database path.
	IndexPath string `yaml:"index_path"`

	// KeyFile is the path to the hex-encoded 32-byte encryption key.
	KeyFile string `yaml:"key_file"`
}

// StreamConfig tunes the deploy-log polling loop.
type StreamConfig struct {
	// MaxPolls bounds the number of polling iterations per streaming
	// connection. Defaults to 600, roughly ten minutes at the default
	// interval.
	MaxPolls int `yaml:"max_polls"`

	// PollIntervalSeconds is the spacing between polls while the
	// build is still running. Defaults to 1.
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
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
		c.ListenAddress = "127.0.0.1:9600"
	}
	if c.Stream.MaxPolls == 0 {
		c.Stream.MaxPolls = 600
	}
	if c.Stream.PollIntervalSeconds == 0 {
		c.Stream.PollIntervalSeconds = 1
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
	if c.Gateway.URL == "" {
		errs = append(errs, errors.New("gateway.url is required"))
	}
	if c.Gateway.TokenFile == "" {
		errs = append(errs, errors.New("gateway.token_file is required"))
	}
	if c.Portainer.URL == "" {
		errs = append(errs, errors.New("portainer.url is required"))
	}
	if c.Portainer.EndpointID < 1 {
		errs = append(errs, fmt.Errorf("portainer.endpoint_id must be at least 1, got %d", c.Portainer.EndpointID))
	}
	if err := c.Portainer.validateAuth(); err != nil {
		errs = append(errs, err)
	}
	if c.DeployLogDir == "" {
		errs = append(errs, errors.New("deploy_log_dir is required"))
	}
	if c.Archive.Dir == "" {
		errs = append(errs, errors.New("archive.dir is required"))
	}
	if c.Archive.IndexPath == "" {
		errs = append(errs, errors.New("archive.index_path is required"))
	}
	if c.Archive.KeyFile == "" {
		errs = append(errs, errors.New("archive.key_file is required"))
	}
	if c.Stream.MaxPolls < 1 {
		errs = append(errs, fmt.Errorf("stream.max_polls must be positive, got %d", c.Stream.MaxPolls))
	}
	if c.Stream.PollIntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("stream.poll_interval_seconds must be positive, got %d", c.Stream.PollIntervalSeconds))
	}

	return errors.Join(errs...)
}

// validateAuth checks that at least one complete Portainer token
// source is configured. A half-configured source is an error, not a
// silently skipped tier.
func (p *PortainerConfig) validateAuth() error {
	var errs []error

	partialCredentials := (p.Username != "") != (p.PasswordFile != "")
	if partialCredentials {
		errs = append(errs, errors.New("portainer.username and portainer.password_file must be set together"))
	}

	anyStoreField := p.TokenStore.Path != "" || p.TokenStore.IdentityFile != "" || p.TokenStore.Recipient != ""
	if anyStoreField && !p.HasTokenStore() {
		errs = append(errs, errors.New("portainer.token_store requires path, identity_file, and recipient"))
	}

	if !p.HasCredentials() && !p.HasTokenStore() && p.StaticTokenEnv == "" {
		errs = append(errs, errors.New("portainer needs at least one token source: username/password_file, static_token_env, or token_store"))
	}

	return errors.Join(errs...)
}

// HasCredentials reports whether username/password authentication is
// configured.
func (p *PortainerConfig) HasCredentials() bool {
	return p.Username != "" && p.PasswordFile != ""
}

// HasTokenStore reports whether the sealed token store is fully
// configured.
func (p *PortainerConfig) HasTokenStore() bool {
	return p.TokenStore.Path != "" && p.TokenStore.IdentityFile != "" && p.TokenStore.Recipient != ""
}

// PollInterval returns the poll spacing as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Stream.PollIntervalSeconds) * time.Second
}

// ShutdownTimeout returns the graceful drain bound as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
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
