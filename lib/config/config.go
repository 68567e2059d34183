// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for schemapub.
//
// Configuration is loaded from a single YAML file specified by:
//   - SCHEMAPUB_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections
// (development, staging, production) that override base values when
// the environment matches. The environments map names the URI prefix
// each publication target resolves to; the prefix itself is always
// passed into the pipeline explicitly, never read from process-wide
// state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for schemapub.
type Config struct {
	// Environment identifies the deployment type (development,
	// staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Publish configures ownership, permissions, and audit snapshots.
	Publish PublishConfig `yaml:"publish"`

	// Environments maps publication target names to URI prefixes,
	// e.g. prod: https://main-fmu-schemas-prod.example.com.
	Environments map[string]string `yaml:"environments"`

	// Server configures the local schema file server.
	Server ServerConfig `yaml:"server"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig      `yaml:"paths,omitempty"`
	Publish *PublishOverrides `yaml:"publish,omitempty"`
	Server  *ServerConfig     `yaml:"server,omitempty"`
}

// PublishOverrides mirrors PublishConfig with optional ownership
// fields, so an override can set uid/gid 0 (an explicit zero is a
// legitimate owner, not "unset").
type PublishOverrides struct {
	OwnerUID    *int   `yaml:"owner_uid,omitempty"`
	OwnerGID    *int   `yaml:"owner_gid,omitempty"`
	FileMode    string `yaml:"file_mode,omitempty"`
	DirMode     string `yaml:"dir_mode,omitempty"`
	Compression string `yaml:"compression,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Definitions is the schema source tree
	// (definitions/<version>/<name>.json).
	Definitions string `yaml:"definitions"`

	// ServeRoot is the directory the schema server exposes.
	// Published versions appear under <ServeRoot>/schemas/.
	ServeRoot string `yaml:"serve_root"`

	// Audit is where publication snapshots are archived. Empty
	// disables snapshots.
	Audit string `yaml:"audit"`
}

// PublishConfig configures how published files are materialized.
type PublishConfig struct {
	// OwnerUID and OwnerGID are applied to published files so the
	// serving process can read them. -1 leaves ownership untouched.
	OwnerUID int `yaml:"owner_uid"`
	OwnerGID int `yaml:"owner_gid"`

	// FileMode and DirMode are octal permission strings for published
	// files and directories, e.g. "0644" and "0755".
	FileMode string `yaml:"file_mode"`
	DirMode  string `yaml:"dir_mode"`

	// Compression selects the audit snapshot compression:
	// none, lz4, or zstd.
	Compression string `yaml:"compression"`
}

// ServerConfig configures the local schema file server
// (schemapub serve).
type ServerConfig struct {
	// Listen is the address the server binds, e.g. ":8080".
	Listen string `yaml:"listen"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; the config file is still
// required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "schemapub")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Definitions: "definitions",
			ServeRoot:   filepath.Join(defaultRoot, "serve"),
			Audit:       "",
		},
		Publish: PublishConfig{
			OwnerUID:    -1,
			OwnerGID:    -1,
			FileMode:    "0644",
			DirMode:     "0755",
			Compression: "zstd",
		},
		Environments: map[string]string{
			"local": "http://localhost:8080",
		},
		Server: ServerConfig{
			Listen: ":8080",
		},
	}
}

// Load loads configuration from the SCHEMAPUB_CONFIG environment
// variable. There are no fallbacks - if SCHEMAPUB_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("SCHEMAPUB_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SCHEMAPUB_CONFIG environment variable not set; " +
			"set it to the path of your schemapub.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The config
// file is the single source of truth: environment variables do not
// override config values. The only expansion performed is ${HOME}
// and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Prefix resolves a publication target name to its URI prefix.
func (c *Config) Prefix(target string) (string, error) {
	prefix, ok := c.Environments[target]
	if !ok {
		names := make([]string, 0, len(c.Environments))
		for name := range c.Environments {
			names = append(names, name)
		}
		return "", fmt.Errorf("unknown environment %q (configured: %s)", target, strings.Join(names, ", "))
	}
	return strings.TrimSuffix(prefix, "/"), nil
}

func (c *Config) validate() error {
	switch c.Environment {
	case Development, Staging, Production:
	default:
		return fmt.Errorf("unknown environment type %q", c.Environment)
	}
	for name, prefix := range c.Environments {
		if !strings.HasPrefix(prefix, "http://") && !strings.HasPrefix(prefix, "https://") {
			return fmt.Errorf("environment %s: prefix %q must be an http(s) URL", name, prefix)
		}
	}
	if _, err := ParseMode(c.Publish.FileMode); err != nil {
		return fmt.Errorf("publish.file_mode: %w", err)
	}
	if _, err := ParseMode(c.Publish.DirMode); err != nil {
		return fmt.Errorf("publish.dir_mode: %w", err)
	}
	return nil
}

// ParseMode parses an octal permission string like "0644".
func ParseMode(s string) (os.FileMode, error) {
	if s == "" {
		return 0, fmt.Errorf("empty mode")
	}
	var mode os.FileMode
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '7' {
			return 0, fmt.Errorf("mode %q is not octal", s)
		}
		mode = mode<<3 | os.FileMode(s[i]-'0')
	}
	if mode > 0o777 {
		return 0, fmt.Errorf("mode %q out of range", s)
	}
	return mode, nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Definitions != "" {
			c.Paths.Definitions = overrides.Paths.Definitions
		}
		if overrides.Paths.ServeRoot != "" {
			c.Paths.ServeRoot = overrides.Paths.ServeRoot
		}
		if overrides.Paths.Audit != "" {
			c.Paths.Audit = overrides.Paths.Audit
		}
	}

	if overrides.Publish != nil {
		if overrides.Publish.OwnerUID != nil {
			c.Publish.OwnerUID = *overrides.Publish.OwnerUID
		}
		if overrides.Publish.OwnerGID != nil {
			c.Publish.OwnerGID = *overrides.Publish.OwnerGID
		}
		if overrides.Publish.FileMode != "" {
			c.Publish.FileMode = overrides.Publish.FileMode
		}
		if overrides.Publish.DirMode != "" {
			c.Publish.DirMode = overrides.Publish.DirMode
		}
		if overrides.Publish.Compression != "" {
			c.Publish.Compression = overrides.Publish.Compression
		}
	}

	if overrides.Server != nil {
		if overrides.Server.Listen != "" {
			c.Server.Listen = overrides.Server.Listen
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.Definitions = expandVars(c.Paths.Definitions, vars)
	c.Paths.ServeRoot = expandVars(c.Paths.ServeRoot, vars)
	c.Paths.Audit = expandVars(c.Paths.Audit, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
