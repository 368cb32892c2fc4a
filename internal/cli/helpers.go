package cli

import (
	"fmt"

	"github.com/venikman/sellerpilot/internal/adapter"
	"github.com/venikman/sellerpilot/internal/config"
)

// buildLLM constructs the configured LLM client, or nil when no key is
// available so the system runs on heuristics alone.
func buildLLM(cfg config.GlobalConfig) adapter.LLMClient {
	if cfg.APIKey() == "" {
		return nil
	}
	client, err := adapter.New(cfg.Provider, cfg.Model, cfg.APIKey(), cfg.BaseURL)
	if err != nil {
		return nil
	}
	return client
}

// statePath resolves the state DB base path from config.
func statePath(cfg config.GlobalConfig) (string, error) {
	path, err := cfg.StatePath()
	if err != nil {
		return "", fmt.Errorf("resolve state path: %w", err)
	}
	return path, nil
}
