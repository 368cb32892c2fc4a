// Package scenario loads scripted multi-step scenarios and runs them
// across memory configurations, aggregating per-config quality, tool-call,
// and latency statistics for comparison.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/venikman/sellerpilot/internal/agent"
)

// Step is one scripted user query.
type Step struct {
	ID    string `json:"id,omitempty"`
	Query string `json:"query"`
}

// Scenario is the JSON scenario file format.
type Scenario struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Seed  int64  `json:"seed"`
	Today string `json:"today"`
	// StartDate and Days shape the seeded dataset; defaults cover the 120
	// days from 2025-10-01 through 2026-01-28.
	StartDate string `json:"startDate,omitempty"`
	Days      int    `json:"days,omitempty"`
	Steps     []Step `json:"steps"`
}

// Load reads and validates a scenario file.
func Load(path string) (Scenario, error) {
	var s Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("scenario: parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	s.ApplyDefaults()
	return s, nil
}

// Validate reports the first structural problem.
func (s Scenario) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario: id is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario: at least one step is required")
	}
	for i, step := range s.Steps {
		if step.Query == "" {
			return fmt.Errorf("scenario: step %d has an empty query", i)
		}
	}
	if s.Today == "" {
		return fmt.Errorf("scenario: today is required")
	}
	return nil
}

// ApplyDefaults fills dataset shape defaults.
func (s *Scenario) ApplyDefaults() {
	if s.StartDate == "" {
		s.StartDate = "2025-10-01"
	}
	if s.Days <= 0 {
		s.Days = 120
	}
}

// ConfigSpec names one memory configuration under comparison.
type ConfigSpec struct {
	Name string           `json:"name"`
	Mode agent.MemoryMode `json:"mode"`
}

// DefaultConfigs is the standard memory-off vs memory-on comparison.
func DefaultConfigs() []ConfigSpec {
	return []ConfigSpec{
		{Name: "baseline", Mode: agent.ModeBaseline},
		{Name: "readwrite", Mode: agent.ModeReadWrite},
		{Name: "readwrite_cache", Mode: agent.ModeReadWriteCache},
	}
}

// ParseConfigs maps mode names onto specs, e.g. from a CLI flag.
func ParseConfigs(names []string) ([]ConfigSpec, error) {
	if len(names) == 0 {
		return DefaultConfigs(), nil
	}
	out := make([]ConfigSpec, 0, len(names))
	for _, name := range names {
		mode := agent.MemoryMode(name)
		if !agent.ValidMemoryMode(mode) {
			return nil, fmt.Errorf("scenario: unknown memory mode %q", name)
		}
		out = append(out, ConfigSpec{Name: name, Mode: mode})
	}
	return out, nil
}
