package config

import "testing"

func TestLoadGlobal_EnvOverrides(t *testing.T) {
	t.Setenv("SELLERPILOT_PROVIDER", "anthropic")
	t.Setenv("SELLERPILOT_MODEL", "claude-sonnet-4-6")
	t.Setenv("ANTHROPIC_API_KEY", "key-a")
	t.Setenv("SELLERPILOT_STATE_DB", "/tmp/state")

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.Model != "claude-sonnet-4-6" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if cfg.APIKey() != "key-a" {
		t.Errorf("APIKey: got %q", cfg.APIKey())
	}
	path, err := cfg.StatePath()
	if err != nil || path != "/tmp/state" {
		t.Errorf("StatePath: got %q (%v)", path, err)
	}
}

func TestDefaults(t *testing.T) {
	cfg := DefaultGlobal()
	if cfg.Provider != "openai" || cfg.Model == "" {
		t.Errorf("defaults: %+v", cfg)
	}
}
