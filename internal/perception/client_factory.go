package perception

import (
	"context"
	"fmt"

	"forge/internal/config"
	"forge/internal/logging"
)

// NewFromConfig builds the configured generator with the standard middleware
// stack: logging, retry, per-call timeout, then the response cache.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Generator, error) {
	var base Generator
	switch cfg.LLM.Provider {
	case config.ProviderScripted:
		g, err := LoadScript(cfg.LLM.Script)
		if err != nil {
			return nil, err
		}
		base = g
	case config.ProviderGemini, "":
		g, err := NewGeminiGenerator(ctx, GeminiConfig{APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model})
		if err != nil {
			return nil, err
		}
		base = g
	default:
		return nil, fmt.Errorf("unsupported generator provider %q", cfg.LLM.Provider)
	}

	logging.Get(logging.CategoryPerception).Info("generator %s (retries=%d timeout=%v cache=%d)",
		base.Name(), cfg.LLM.Retries, cfg.GetLLMTimeout(), cfg.LLM.CacheSize)

	return Chain(base,
		WithLogging(),
		WithRetry(cfg.LLM.Retries+1, 0),
		WithTimeout(cfg.GetLLMTimeout()),
		WithCache(cfg.LLM.CacheSize),
	), nil
}
