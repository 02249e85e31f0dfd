// Package skills holds the skill catalogue the orchestration loop plans over
// and the dispatcher that runs a chosen skill against session memory.
//
// A skill handler may return a types.SkillOutput or a legacy free-form map;
// Normalize turns either into the canonical SkillOutput before anything in
// the session is touched.
package skills

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"forge/internal/logging"
	"forge/internal/session"
	"forge/internal/types"
)

// Args are the string arguments a plan passes to a skill.
type Args map[string]string

// Handler executes one skill. The result may be a types.SkillOutput, a
// pointer to one, a legacy map[string]any, a string or nil.
type Handler func(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error)

// Definition describes a registered skill.
type Definition struct {
	Name        types.SkillName
	Description string

	// Resolves lists issue kinds a successful run clears for the artifacts it
	// merged, before the merged artifacts are checked again.
	Resolves []types.IssueKind

	// Rechecks marks skills that recompute their Resolves kinds over the
	// whole artifact set. Without artifact updates they clear by
	// Args["artifact"], or everywhere when it is unset.
	Rechecks bool

	// TouchesImplementation marks skills whose run warrants re-analysis even
	// when no artifact changed.
	TouchesImplementation bool

	Handler Handler
}

// Validate checks the definition can be registered.
func (d *Definition) Validate() error {
	switch {
	case d.Name == "":
		return ErrSkillNameEmpty
	case !d.Name.Known():
		return fmt.Errorf("%w: %s", ErrUnknownSkillName, d.Name)
	case d.Handler == nil:
		return ErrSkillHandlerNil
	}
	return nil
}

// Registry holds skill definitions. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	skills map[types.SkillName]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[types.SkillName]*Definition)}
}

// Register adds a skill. Duplicate or unknown names are rejected.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid skill: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.skills[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrSkillAlreadyRegistered, def.Name)
	}
	r.skills[def.Name] = def

	logging.SkillsDebug("Registered skill: %s (resolves=%v)", def.Name, def.Resolves)
	return nil
}

// MustRegister registers a skill and panics on error.
// Use this for static registration at init time.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(fmt.Sprintf("failed to register skill %s: %v", def.Name, err))
	}
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name types.SkillName) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.skills[name]
	return def, ok
}

// Names returns the registered skill names, sorted.
func (r *Registry) Names() []types.SkillName {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]types.SkillName, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Definitions returns the registered definitions sorted by name.
func (r *Registry) Definitions() []*Definition {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Definition, 0, len(names))
	for _, n := range names {
		out = append(out, r.skills[n])
	}
	return out
}

// Count returns the number of registered skills.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// NewDefaultRegistry registers the full skill catalogue.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtinDefinitions() {
		r.MustRegister(def)
	}
	return r
}
