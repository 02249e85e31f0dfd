package config

import (
	"fmt"
	"time"
)

// Generator providers.
const (
	ProviderGemini   = "gemini"
	ProviderScripted = "scripted"
)

// ValidProviders lists all supported generator providers.
var ValidProviders = []string{ProviderGemini, ProviderScripted}

// LLMConfig configures the artifact generator.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini, scripted
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
	// Retries is the number of extra attempts on transient failures.
	Retries   int `yaml:"retries"`
	CacheSize int `yaml:"cache_size"`
	// Script points at the YAML reply file for the scripted provider.
	Script string `yaml:"script"`
}

// GetLLMTimeout returns the per-call generator timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

func (l LLMConfig) validate() error {
	valid := false
	for _, p := range ValidProviders {
		if l.Provider == p {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", l.Provider, ValidProviders)
	}
	switch l.Provider {
	case ProviderGemini:
		if l.APIKey == "" {
			return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or GOOGLE_API_KEY)")
		}
	case ProviderScripted:
		if l.Script == "" {
			return fmt.Errorf("llm.script is required for the scripted provider")
		}
	}
	if l.Retries < 0 {
		return fmt.Errorf("llm.retries must be >= 0, got %d", l.Retries)
	}
	return nil
}
