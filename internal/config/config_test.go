package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Branch != "entomologist-data" {
		t.Errorf("Branch = %q", cfg.Branch)
	}
	if cfg.Remote != "origin" {
		t.Errorf("Remote = %q", cfg.Remote)
	}
	if cfg.DashboardAddr != "localhost:8377" {
		t.Errorf("DashboardAddr = %q", cfg.DashboardAddr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENT_BRANCH", "team-issues")
	t.Setenv("ENT_REMOTE", "upstream")
	t.Setenv("ENT_AUTHOR", "Alice <alice@example.com>")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Branch != "team-issues" {
		t.Errorf("Branch = %q, want env override", cfg.Branch)
	}
	if cfg.Remote != "upstream" {
		t.Errorf("Remote = %q, want env override", cfg.Remote)
	}
	if cfg.Author != "Alice <alice@example.com>" {
		t.Errorf("Author = %q, want env override", cfg.Author)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "branch: filed-issues\nlog_file: /tmp/ent.log\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	t.Setenv("ENT_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Branch != "filed-issues" {
		t.Errorf("Branch = %q, want file value", cfg.Branch)
	}
	if cfg.LogFile != "/tmp/ent.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}

	// Environment still wins over the file.
	t.Setenv("ENT_BRANCH", "env-wins")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Branch != "env-wins" {
		t.Errorf("Branch = %q, want env to beat file", cfg.Branch)
	}
}
