package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the default values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Engine.DefaultScalar != 1.0 {
		t.Errorf("Expected default scalar 1.0, got %f", cfg.Engine.DefaultScalar)
	}

	if cfg.Output.JPEGQuality != 90 {
		t.Errorf("Expected JPEG quality 90, got %d", cfg.Output.JPEGQuality)
	}

	if !cfg.Output.Normalize {
		t.Error("Expected normalization to be enabled by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestLoadMissingFile verifies that a missing file yields the defaults
func TestLoadMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Output.Dir != DefaultConfig().Output.Dir {
		t.Errorf("Expected default output dir, got %q", cfg.Output.Dir)
	}
}

// TestSaveAndLoad verifies that a saved config is read back unchanged
func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "volmath.yaml")

	cfg := DefaultConfig()
	cfg.Engine.DefaultScalar = 2.5
	cfg.Output.Dir = "results"
	cfg.Logging.Verbose = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Engine.DefaultScalar != 2.5 {
		t.Errorf("Expected scalar 2.5, got %f", loaded.Engine.DefaultScalar)
	}
	if loaded.Output.Dir != "results" {
		t.Errorf("Expected output dir results, got %q", loaded.Output.Dir)
	}
	if !loaded.Logging.Verbose {
		t.Error("Expected verbose logging")
	}
}

// TestPartialFileKeepsDefaults verifies that unset keys keep their defaults
func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	if err := os.WriteFile(path, []byte("engine:\n  defaultScalar: -1\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Engine.DefaultScalar != -1 {
		t.Errorf("Expected scalar -1, got %f", cfg.Engine.DefaultScalar)
	}
	if cfg.Output.JPEGQuality != 90 {
		t.Errorf("Expected default JPEG quality, got %d", cfg.Output.JPEGQuality)
	}
}

// TestInvalidFiles verifies parse and range errors
func TestInvalidFiles(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"syntax.yaml":  "engine: [",
		"quality.yaml": "output:\n  jpegQuality: 0\n",
	}

	for name, content := range cases {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("Expected error loading %s", name)
		}
	}
}

// TestCreateDefaultConfigFile verifies the generated file loads
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("Failed to create default config: %v", err)
	}

	if _, err := LoadConfig(path); err != nil {
		t.Errorf("Default config file should load: %v", err)
	}
}
