package perception

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"forge/internal/logging"

	"google.golang.org/genai"
)

// GeminiConfig holds configuration for the Gemini generator.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
}

// GeminiGenerator implements Generator on the official genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
	temp   float32
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, Unavailable("gemini API key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.Model, temp: cfg.Temperature}, nil
}

// Name implements Generator.
func (g *GeminiGenerator) Name() string { return "gemini:" + g.model }

// Generate sends the prompt and returns the first candidate's text.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	log := logging.Get(logging.CategoryPerception)
	log.Debug("gemini request skill=%s model=%s bytes=%d", req.Skill, g.model, len(req.Prompt))

	temp := g.temp
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	log.Debug("gemini reply skill=%s bytes=%d in %v", req.Skill, sb.Len(), time.Since(start))
	return sb.String(), nil
}

// classifyGeminiError maps credential and quota failures onto the sentinel
// and permanent errors the loop understands.
func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return Permanent(fmt.Errorf("%w: %v", ErrGeneratorUnavailable, err))
		case http.StatusBadRequest, http.StatusNotFound:
			return Permanent(fmt.Errorf("gemini rejected request: %w", err))
		}
	}
	return fmt.Errorf("gemini request failed: %w", err)
}
