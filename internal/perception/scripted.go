package perception

import (
	"context"
	"fmt"
	"os"
	"sync"

	"forge/internal/logging"

	"gopkg.in/yaml.v3"
)

// Script is the on-disk format for replayed generator replies:
//
//	replies:
//	  generate_initial:
//	    - |
//	      // === FILE: App.tsx ===
//	      ...
//	  default:
//	    - "no changes"
//
// Replies for a skill are consumed in order; the last one repeats. Skills
// without an entry use "default". A skill with neither is unavailable.
type Script struct {
	Replies map[string][]string `yaml:"replies"`
}

// ScriptedGenerator replays canned replies. It backs offline runs and tests.
type ScriptedGenerator struct {
	mu      sync.Mutex
	script  Script
	cursor  map[string]int
	history []Request
}

// NewScriptedGenerator creates a generator from an in-memory script.
func NewScriptedGenerator(s Script) *ScriptedGenerator {
	if s.Replies == nil {
		s.Replies = map[string][]string{}
	}
	return &ScriptedGenerator{script: s, cursor: make(map[string]int)}
}

// LoadScript reads a YAML script file.
func LoadScript(path string) (*ScriptedGenerator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return NewScriptedGenerator(s), nil
}

// Name implements Generator.
func (g *ScriptedGenerator) Name() string { return "scripted" }

// Generate returns the next reply for req.Skill.
func (g *ScriptedGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.history = append(g.history, req)
	key := req.Skill
	replies := g.script.Replies[key]
	if len(replies) == 0 {
		key = "default"
		replies = g.script.Replies[key]
	}
	if len(replies) == 0 {
		return "", Unavailable("script has no reply for %q", req.Skill)
	}
	i := g.cursor[key]
	if i >= len(replies) {
		i = len(replies) - 1
	}
	g.cursor[key] = i + 1

	logging.Get(logging.CategoryPerception).Debug("scripted reply %d for %s", i, key)
	return replies[i], nil
}

// Requests returns every request seen so far.
func (g *ScriptedGenerator) Requests() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Request(nil), g.history...)
}
