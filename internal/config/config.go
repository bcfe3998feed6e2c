package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Database DatabaseConfig `yaml:"database"`
	Collect  CollectConfig  `yaml:"collect"`
	LogLevel string         `yaml:"log_level"`
}

type TelegramConfig struct {
	APIID   int    `yaml:"api_id"`
	APIHash string `yaml:"api_hash"`
	Phone   string `yaml:"phone"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type CollectConfig struct {
	DialogLimit  int `yaml:"dialog_limit"`
	HistoryLimit int `yaml:"history_limit"`
}

func Dir() string {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(cfgDir, "tgvault")
}

// Load reads and validates the collector configuration. Missing required
// credentials are a startup error, reported before any network activity.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Telegram.APIID == 0 || cfg.Telegram.APIHash == "" {
		return nil, errors.New("telegram api_id and api_hash are required")
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(Dir(), "messages.db")
	}
	if cfg.Collect.DialogLimit <= 0 {
		cfg.Collect.DialogLimit = 20
	}
	if cfg.Collect.HistoryLimit <= 0 {
		cfg.Collect.HistoryLimit = 100
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}
