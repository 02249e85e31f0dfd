package types

import "sort"

// =============================================================================
// KNOWLEDGE INPUTS
// =============================================================================

// BindingKind is the semantic category of a bound data field.
type BindingKind string

const (
	BindingNumeric     BindingKind = "numeric"
	BindingCategorical BindingKind = "categorical"
	BindingText        BindingKind = "text"
	BindingTemporal    BindingKind = "temporal"
)

// Specification is the structured description of the intended UI.
type Specification struct {
	Title        string          `json:"title" yaml:"title"`
	Intent       string          `json:"intent" yaml:"intent"`
	Artifacts    []string        `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Components   []ComponentSpec `json:"components,omitempty" yaml:"components,omitempty"`
	Dependencies []Dependency    `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Libraries    []Library       `json:"libraries,omitempty" yaml:"libraries,omitempty"`
}

// ComponentSpec describes one UI element the implementation must contain.
type ComponentSpec struct {
	Name         string          `json:"name" yaml:"name"`
	Type         string          `json:"type,omitempty" yaml:"type,omitempty"`
	File         string          `json:"file,omitempty" yaml:"file,omitempty"`
	Props        map[string]any  `json:"props,omitempty" yaml:"props,omitempty"`
	Bindings     []Binding       `json:"bindings,omitempty" yaml:"bindings,omitempty"`
	Interactions []Interaction   `json:"interactions,omitempty" yaml:"interactions,omitempty"`
	Children     []ComponentSpec `json:"children,omitempty" yaml:"children,omitempty"`
}

// Binding ties a component prop to a schema field.
type Binding struct {
	Prop  string      `json:"prop" yaml:"prop"`
	Field string      `json:"field" yaml:"field"`
	Type  string      `json:"type,omitempty" yaml:"type,omitempty"`
	Kind  BindingKind `json:"kind,omitempty" yaml:"kind,omitempty"`
}

// Interaction is an event the component must handle.
type Interaction struct {
	Event       string `json:"event" yaml:"event"`
	Handler     string `json:"handler,omitempty" yaml:"handler,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Dependency is a package the implementation may import.
type Dependency struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Library declares component contracts exported by a module.
type Library struct {
	Module     string              `json:"module" yaml:"module"`
	Components []ComponentContract `json:"components,omitempty" yaml:"components,omitempty"`
}

// ComponentContract lists the props and events a library component accepts.
type ComponentContract struct {
	Name          string   `json:"name" yaml:"name"`
	RequiredProps []string `json:"required_props,omitempty" yaml:"required_props,omitempty"`
	OptionalProps []string `json:"optional_props,omitempty" yaml:"optional_props,omitempty"`
	Events        []string `json:"events,omitempty" yaml:"events,omitempty"`
}

// RequiredArtifacts returns the declared artifacts plus every component file,
// sorted and deduplicated.
func (s *Specification) RequiredArtifacts() []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool)
	for _, a := range s.Artifacts {
		if a != "" {
			seen[a] = true
		}
	}
	s.Walk(func(c ComponentSpec, _ []string) {
		if c.File != "" {
			seen[c.File] = true
		}
	})
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Walk visits every component depth-first with the names of its ancestors.
func (s *Specification) Walk(fn func(c ComponentSpec, ancestors []string)) {
	if s == nil {
		return
	}
	var visit func(cs []ComponentSpec, ancestors []string)
	visit = func(cs []ComponentSpec, ancestors []string) {
		for _, c := range cs {
			fn(c, ancestors)
			if len(c.Children) > 0 {
				next := append(append([]string(nil), ancestors...), c.Name)
				visit(c.Children, next)
			}
		}
	}
	visit(s.Components, nil)
}

// ComponentNames returns every component name in the tree, sorted.
func (s *Specification) ComponentNames() []string {
	seen := make(map[string]bool)
	s.Walk(func(c ComponentSpec, _ []string) { seen[c.Name] = true })
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Contract looks up a library component contract by component name.
func (s *Specification) Contract(name string) (Library, ComponentContract, bool) {
	if s == nil {
		return Library{}, ComponentContract{}, false
	}
	for _, lib := range s.Libraries {
		for _, c := range lib.Components {
			if c.Name == name {
				return lib, c, true
			}
		}
	}
	return Library{}, ComponentContract{}, false
}

// TypeName returns the element type, falling back to the component name.
func (c ComponentSpec) TypeName() string {
	if c.Type != "" {
		return c.Type
	}
	return c.Name
}
