// Package config provides configuration loading and management for volmath.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Engine parameters
	Engine struct {
		// DefaultScalar is the scalar used when none is given on the command line
		DefaultScalar float64 `yaml:"defaultScalar"`
	} `yaml:"engine"`

	// Input parameters
	Input struct {
		// SliceExtensions lists the file extensions read as volume slices
		SliceExtensions []string `yaml:"sliceExtensions"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Dir is the directory results are written to
		Dir string `yaml:"dir"`

		// JPEGQuality is the encoder quality for slice images (1-100)
		JPEGQuality int `yaml:"jpegQuality"`

		// Normalize stretches volume intensities to the full gray range on export.
		// When false, values are assumed to lie in [0, 1].
		Normalize bool `yaml:"normalize"`

		// WriteSTL controls whether triangle meshes are also exported as STL
		WriteSTL bool `yaml:"writeSTL"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Engine.DefaultScalar = 1.0

	cfg.Input.SliceExtensions = []string{".jpg", ".jpeg"}

	cfg.Output.Dir = "volmath_out"
	cfg.Output.JPEGQuality = 90
	cfg.Output.Normalize = true
	cfg.Output.WriteSTL = true

	cfg.Logging.Verbose = false

	return cfg
}

// Validate checks value ranges that YAML cannot express
func (c *Config) Validate() error {
	if c.Output.JPEGQuality < 1 || c.Output.JPEGQuality > 100 {
		return fmt.Errorf("output.jpegQuality must be in [1, 100], got %d", c.Output.JPEGQuality)
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir must not be empty")
	}
	if len(c.Input.SliceExtensions) == 0 {
		return fmt.Errorf("input.sliceExtensions must list at least one extension")
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
