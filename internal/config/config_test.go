package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"tgvault/internal/config"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`telegram:
  api_id: 12345
  api_hash: "abcdef0123456789"
database:
  path: /tmp/test-messages.db
collect:
  dialog_limit: 10
  history_limit: 50
log_level: debug
`)
	if err := os.WriteFile(cfgPath, content, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Telegram.APIID != 12345 {
		t.Errorf("APIID = %d, want 12345", cfg.Telegram.APIID)
	}
	if cfg.Telegram.APIHash != "abcdef0123456789" {
		t.Errorf("APIHash = %q, want %q", cfg.Telegram.APIHash, "abcdef0123456789")
	}
	if cfg.Database.Path != "/tmp/test-messages.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Collect.DialogLimit != 10 {
		t.Errorf("DialogLimit = %d, want 10", cfg.Collect.DialogLimit)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`telegram:
  api_id: 12345
  api_hash: "abcdef0123456789"
`)
	if err := os.WriteFile(cfgPath, content, 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Collect.DialogLimit != 20 {
		t.Errorf("DialogLimit = %d, want default 20", cfg.Collect.DialogLimit)
	}
	if cfg.Collect.HistoryLimit != 100 {
		t.Errorf("HistoryLimit = %d, want default 100", cfg.Collect.HistoryLimit)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path default not applied")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default info", cfg.LogLevel)
	}
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("log_level: info\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := config.Load(cfgPath); err == nil {
		t.Error("expected error for missing api credentials")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestConfigDir(t *testing.T) {
	dir := config.Dir()
	if dir == "" {
		t.Error("Dir() returned empty string")
	}
}
