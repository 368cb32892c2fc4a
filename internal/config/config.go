// Package config manages global (~/.config/sellerpilot/config.toml)
// configuration for sellerpilot, with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// GlobalConfig holds user-wide settings.
type GlobalConfig struct {
	Provider string      `toml:"provider"`
	Model    string      `toml:"model"`
	BaseURL  string      `toml:"base_url"`
	Keys     KeysConfig  `toml:"keys"`
	State    StateConfig `toml:"state"`
	Runs     RunsConfig  `toml:"runs"`
}

type KeysConfig struct {
	OpenAI    string `toml:"openai"`
	Anthropic string `toml:"anthropic"`
}

// StateConfig locates the embedded state database.
type StateConfig struct {
	DBPath string `toml:"db_path"`
}

// RunsConfig controls run-log output.
type RunsConfig struct {
	LogDir string `toml:"log_dir"`
}

// DefaultGlobal returns sensible defaults.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
	}
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "sellerpilot", "config.toml"), nil
}

// DefaultStatePath returns the default state database base path.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "sellerpilot", "state"), nil
}

// LoadGlobal loads the global config, applying defaults for any missing
// values and letting env vars override file settings.
func LoadGlobal() (GlobalConfig, error) {
	cfg := DefaultGlobal()

	path, err := GlobalConfigPath()
	if err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("config: load global: %w", err)
			}
		}
	}

	if v := os.Getenv("SELLERPILOT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("SELLERPILOT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("SELLERPILOT_STATE_DB"); v != "" {
		cfg.State.DBPath = v
	}
	if v := os.Getenv("SELLERPILOT_RUN_LOG_DIR"); v != "" {
		cfg.Runs.LogDir = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Keys.Anthropic = v
	}
	return cfg, nil
}

// SaveGlobal writes the global config to disk.
func SaveGlobal(cfg GlobalConfig) error {
	path, err := GlobalConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create global config: %w", err)
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// APIKey returns the key for the configured provider.
func (c GlobalConfig) APIKey() string {
	switch c.Provider {
	case "anthropic":
		return c.Keys.Anthropic
	default:
		return c.Keys.OpenAI
	}
}

// StatePath resolves the configured state base path, falling back to the
// default location.
func (c GlobalConfig) StatePath() (string, error) {
	if c.State.DBPath != "" {
		return c.State.DBPath, nil
	}
	return DefaultStatePath()
}
