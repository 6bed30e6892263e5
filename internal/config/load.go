package config

import (
	"encoding/json"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// LoadSimulation reads a simulation request from a YAML file and
// validates it. The file mirrors the JSON request schema of the HTTP
// API, in snake_case.
func LoadSimulation(path string) (*SimulationConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation config: %w", err)
	}
	var cfg SimulationConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse simulation YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseSimulationJSON decodes and validates the JSON request body used
// by the HTTP API.
func ParseSimulationJSON(b []byte) (*SimulationConfig, error) {
	var cfg SimulationConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, errf("body", "malformed JSON: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
