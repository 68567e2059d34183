// Copyright 2026 The Schemapub Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}
	if cfg.Publish.OwnerUID != -1 || cfg.Publish.OwnerGID != -1 {
		t.Errorf("expected ownership disabled by default, got %d:%d", cfg.Publish.OwnerUID, cfg.Publish.OwnerGID)
	}
	if cfg.Publish.Compression != "zstd" {
		t.Errorf("expected compression=zstd, got %s", cfg.Publish.Compression)
	}
	if cfg.Server.Listen != ":8080" {
		t.Errorf("expected listen=:8080, got %s", cfg.Server.Listen)
	}
}

func TestLoad_RequiresSchemapubConfig(t *testing.T) {
	// Save and restore SCHEMAPUB_CONFIG.
	origConfig := os.Getenv("SCHEMAPUB_CONFIG")
	defer os.Setenv("SCHEMAPUB_CONFIG", origConfig)

	os.Unsetenv("SCHEMAPUB_CONFIG")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SCHEMAPUB_CONFIG not set, got nil")
	}
	if !strings.Contains(err.Error(), "SCHEMAPUB_CONFIG environment variable not set") {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "schemapub.yaml")

	configContent := `
environment: production
paths:
  definitions: /srv/schemas/definitions
  serve_root: /srv/schemas/serve
environments:
  dev: https://main-fmu-schemas-dev.example.com
  prod: https://main-fmu-schemas-prod.example.com
production:
  paths:
    audit: /srv/schemas/audit
  publish:
    owner_uid: 33
    owner_gid: 33
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Paths.Definitions != "/srv/schemas/definitions" {
		t.Errorf("definitions = %s", cfg.Paths.Definitions)
	}
	// Production override section applied.
	if cfg.Paths.Audit != "/srv/schemas/audit" {
		t.Errorf("audit = %q, want production override", cfg.Paths.Audit)
	}
	if cfg.Publish.OwnerUID != 33 {
		t.Errorf("owner_uid = %d, want 33", cfg.Publish.OwnerUID)
	}

	prefix, err := cfg.Prefix("prod")
	if err != nil {
		t.Fatalf("Prefix: %v", err)
	}
	if prefix != "https://main-fmu-schemas-prod.example.com" {
		t.Errorf("prefix = %s", prefix)
	}

	if _, err := cfg.Prefix("qa"); err == nil {
		t.Error("unknown environment accepted")
	}
}

func TestLoadFile_OverrideCanSetRootOwnership(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "schemapub.yaml")

	// uid/gid 0 is a legitimate owner; an override setting it must
	// not be mistaken for "unset". Absent fields keep the base value.
	configContent := `
environment: production
publish:
  owner_uid: 33
  owner_gid: 33
production:
  publish:
    owner_uid: 0
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Publish.OwnerUID != 0 {
		t.Errorf("owner_uid = %d, want override to 0", cfg.Publish.OwnerUID)
	}
	if cfg.Publish.OwnerGID != 33 {
		t.Errorf("owner_gid = %d, want base value kept", cfg.Publish.OwnerGID)
	}
}

func TestLoadFile_OverridesIgnoredForOtherEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "schemapub.yaml")

	configContent := `
environment: development
production:
  paths:
    serve_root: /srv/prod
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.ServeRoot == "/srv/prod" {
		t.Error("production override applied in development environment")
	}
}

func TestLoadFile_RejectsBadPrefix(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "schemapub.yaml")
	configContent := `
environments:
  bad: ftp://example.com
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(configPath); err == nil {
		t.Error("non-http prefix accepted")
	}
}

func TestExpandVariables(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "schemapub.yaml")
	configContent := `
paths:
  definitions: ${HOME}/definitions
  serve_root: ${SCHEMAPUB_TEST_UNSET:-/fallback}/serve
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if strings.Contains(cfg.Paths.Definitions, "${") {
		t.Errorf("HOME not expanded: %s", cfg.Paths.Definitions)
	}
	if cfg.Paths.ServeRoot != "/fallback/serve" {
		t.Errorf("default expansion = %s", cfg.Paths.ServeRoot)
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("0644")
	if err != nil {
		t.Fatalf("ParseMode: %v", err)
	}
	if mode != 0o644 {
		t.Errorf("mode = %o", mode)
	}
	for _, bad := range []string{"", "abc", "0999", "7777"} {
		if _, err := ParseMode(bad); err == nil {
			t.Errorf("ParseMode(%q) succeeded", bad)
		}
	}
}
