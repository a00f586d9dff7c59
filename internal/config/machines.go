package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// MachineConfig declares a single laundry machine.
type MachineConfig struct {
	Name                string `yaml:"name"`
	Type                string `yaml:"type"`                            // WASHER or DRYER
	SlotDurationMinutes int    `yaml:"slot_duration_minutes,omitempty"` // 0 means the standard 90
}

// MachinesConfig is the root configuration for machines.yaml.
type MachinesConfig struct {
	Machines []MachineConfig `yaml:"machines"`
}

// LoadMachinesConfig loads and validates the machine catalog from a YAML file.
func LoadMachinesConfig(path string) (*MachinesConfig, error) {
	if path == "" {
		path = "configs/machines.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machines config: %w", err)
	}

	var cfg MachinesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse machines config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate machines config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the catalog for errors.
func (c *MachinesConfig) Validate() error {
	names := make(map[string]bool)

	for i, m := range c.Machines {
		if m.Name == "" {
			return fmt.Errorf("machine[%d]: name is required", i)
		}
		if names[m.Name] {
			return fmt.Errorf("machine[%d]: duplicate name '%s'", i, m.Name)
		}
		names[m.Name] = true

		if m.Type != "WASHER" && m.Type != "DRYER" {
			return fmt.Errorf("machine[%d]: type must be WASHER or DRYER, got '%s'", i, m.Type)
		}
		if m.SlotDurationMinutes < 0 || m.SlotDurationMinutes >= 1440 {
			return fmt.Errorf("machine[%d]: slot_duration_minutes must be between 0 and 1439", i)
		}
	}
	return nil
}

// String returns a summary of the catalog.
func (c *MachinesConfig) String() string {
	washers := 0
	for _, m := range c.Machines {
		if m.Type == "WASHER" {
			washers++
		}
	}
	return fmt.Sprintf("MachinesConfig: %d machines (%d washers, %d dryers)",
		len(c.Machines), washers, len(c.Machines)-washers)
}
