// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Foyer.
//
// Configuration is loaded from a single YAML file specified by the
// FOYER_CONFIG environment variable or the --config flag. There are no
// search paths or automatic discovery; a missing file simply yields
// the defaults, which are enough to point Foyer at a homeserver from
// the command line.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the Foyer client configuration.
type Config struct {
	// HomeserverURL is the base URL of the Matrix homeserver
	// (e.g., "https://matrix.example.org").
	HomeserverURL string `yaml:"homeserver_url"`

	// DataDir is where Foyer keeps its session file and state cache.
	// Default: ~/.local/share/foyer
	DataDir string `yaml:"data_dir"`

	// SyncTimeout is the server-side long-poll hold time for /sync.
	// Default: 30s.
	SyncTimeout time.Duration `yaml:"sync_timeout"`

	// HistoryPageSize is the number of events requested per history
	// page. Default: 50.
	HistoryPageSize int `yaml:"history_page_size"`

	// LogFile receives JSON log records. Empty disables file logging.
	// The TUI owns the terminal, so logs never go to stderr while it
	// runs.
	LogFile string `yaml:"log_file"`
}

// Default returns the default configuration. These are usable values,
// not placeholders — only HomeserverURL must come from the file or a
// flag.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		DataDir:         filepath.Join(homeDir, ".local", "share", "foyer"),
		SyncTimeout:     30 * time.Second,
		HistoryPageSize: 50,
	}
}

// Load loads configuration from the FOYER_CONFIG environment variable,
// falling back to defaults when unset.
func Load() (*Config, error) {
	configPath := os.Getenv("FOYER_CONFIG")
	if configPath == "" {
		return Default(), nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. The file is
// the single source of truth; environment variables do not override
// values. The only expansion performed is ${HOME} and similar path
// variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.DataDir = expandVars(c.DataDir)
	c.LogFile = expandVars(c.LogFile)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.HomeserverURL == "" {
		errs = append(errs, fmt.Errorf("homeserver_url is required"))
	} else if _, err := url.Parse(c.HomeserverURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid homeserver_url %q: %w", c.HomeserverURL, err))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("data_dir is required"))
	}
	if c.SyncTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sync_timeout must be positive"))
	}
	if c.HistoryPageSize <= 0 {
		errs = append(errs, fmt.Errorf("history_page_size must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureDataDir creates the data directory if it does not exist. The
// directory holds the sealed session file, so group/world access is
// withheld.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return fmt.Errorf("config: creating %s: %w", c.DataDir, err)
	}
	return nil
}

// SessionPath returns the path of the sealed session file.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.age")
}

// CachePath returns the path of the client state cache.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "state.cache")
}
