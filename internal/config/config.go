package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all forge configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Loop bounds
	Loop LoopConfig `yaml:"loop"`

	// Generator configuration
	LLM LLMConfig `yaml:"llm"`

	// Analyzer suite
	Analysis AnalysisConfig `yaml:"analysis"`

	// Session archive
	Archive ArchiveConfig `yaml:"archive"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ArchiveConfig configures the SQLite session archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "forge",
		Version: "0.3.0",

		Loop: LoopConfig{
			MaxSteps:     3,
			StallLimit:   2,
			MaxArtifacts: 50,
		},

		LLM: LLMConfig{
			Provider:  ProviderGemini,
			Model:     "gemini-2.5-flash",
			Timeout:   "120s",
			Retries:   2,
			CacheSize: 128,
		},

		Analysis: AnalysisConfig{
			Parallel:        true,
			SchemaCacheSize: 256,
		},

		Archive: ArchiveConfig{
			Enabled: false,
			Path:    ".forge/sessions.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields defaults
// with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// GEMINI_API_KEY wins over GOOGLE_API_KEY
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("FORGE_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if steps := os.Getenv("FORGE_MAX_STEPS"); steps != "" {
		if n, err := strconv.Atoi(steps); err == nil && n > 0 {
			c.Loop.MaxSteps = n
		}
	}
	if path := os.Getenv("FORGE_ARCHIVE"); path != "" {
		c.Archive.Enabled = true
		c.Archive.Path = path
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Loop.MaxSteps < 1 {
		return fmt.Errorf("loop.max_steps must be >= 1, got %d", c.Loop.MaxSteps)
	}
	if c.Loop.StallLimit < 0 {
		return fmt.Errorf("loop.stall_limit must be >= 0, got %d", c.Loop.StallLimit)
	}
	if c.Loop.MaxArtifacts < 1 {
		return fmt.Errorf("loop.max_artifacts must be >= 1, got %d", c.Loop.MaxArtifacts)
	}
	if err := c.LLM.validate(); err != nil {
		return err
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when the archive is enabled")
	}
	return nil
}
