// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foyer.yaml")
	content := `
homeserver_url: https://matrix.example.org
data_dir: ${HOME}/.foyer-test
sync_timeout: 10s
history_page_size: 25
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.HomeserverURL != "https://matrix.example.org" {
		t.Errorf("HomeserverURL = %q", cfg.HomeserverURL)
	}
	if cfg.SyncTimeout != 10*time.Second {
		t.Errorf("SyncTimeout = %v", cfg.SyncTimeout)
	}
	if cfg.HistoryPageSize != 25 {
		t.Errorf("HistoryPageSize = %d", cfg.HistoryPageSize)
	}
	home := os.Getenv("HOME")
	if home != "" && cfg.DataDir != filepath.Join(home, ".foyer-test") {
		t.Errorf("DataDir = %q, ${HOME} not expanded", cfg.DataDir)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestDefaultsRetainedForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foyer.yaml")
	if err := os.WriteFile(path, []byte("homeserver_url: http://localhost:8008\n"), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.SyncTimeout != 30*time.Second {
		t.Errorf("default SyncTimeout = %v", cfg.SyncTimeout)
	}
	if cfg.HistoryPageSize != 50 {
		t.Errorf("default HistoryPageSize = %d", cfg.HistoryPageSize)
	}
}

func TestValidateRejectsMissingHomeserver(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for missing homeserver_url")
	}
}
