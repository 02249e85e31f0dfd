// Package analysis detects mismatches between a specification, its
// implementation artifacts, the data schema and domain rules.
//
// Four analyzers run independently over the same read-only Input:
//   - structural: spec components vs rendered JSX (presence, props, bindings,
//     interactions, nesting)
//   - schema: field references vs known or inferred column types
//   - domain: rule-driven checks (required fields, forbidden combinations,
//     labeling, allowed patterns)
//   - compatibility: imports, library contracts, event wiring
//
// The Suite fans them out, enforces each analyzer's allowed conflict kinds,
// deduplicates by (kind, path) and returns a deterministic ordering.
package analysis

import (
	"fmt"

	"forge/internal/types"
	"forge/internal/world"
)

// Input is everything an analyzer may read. Analyzers must not mutate it.
type Input struct {
	Spec      *types.Specification
	Artifacts map[string]string
	Schema    *types.SchemaContext
	Rules     *types.DomainRules
	// Model is the parsed implementation. The Suite builds it when nil.
	Model *world.Index
}

// Analyzer is one independent consistency check.
type Analyzer interface {
	Name() string
	// AllowedKinds is the closed set of conflict kinds the analyzer may emit.
	AllowedKinds() []types.ConflictKind
	Analyze(in Input) []types.Conflict
}

// Analyzer names.
const (
	SourceStructural    = "structural"
	SourceSchema        = "schema"
	SourceDomain        = "domain"
	SourceCompatibility = "compatibility"
)

func newConflict(source string, kind types.ConflictKind, sev types.Severity, target types.Target, path, artifact, format string, args ...interface{}) types.Conflict {
	return types.Conflict{
		Kind:        kind,
		Source:      source,
		Description: fmt.Sprintf(format, args...),
		Severity:    sev,
		Target:      target,
		Path:        path,
		Artifact:    artifact,
	}
}

// specNode is a spec component with its parent, for analyzers that need more
// than ancestor names.
type specNode struct {
	Comp   types.ComponentSpec
	Parent *types.ComponentSpec
}

func flatten(spec *types.Specification) []specNode {
	if spec == nil {
		return nil
	}
	var out []specNode
	var visit func(cs []types.ComponentSpec, parent *types.ComponentSpec)
	visit = func(cs []types.ComponentSpec, parent *types.ComponentSpec) {
		for i := range cs {
			c := cs[i]
			out = append(out, specNode{Comp: c, Parent: parent})
			visit(c.Children, &cs[i])
		}
	}
	visit(spec.Components, nil)
	return out
}

// names returns the JSX names a spec component may appear under.
func names(c types.ComponentSpec) []string {
	if c.Type != "" && c.Type != c.Name {
		return []string{c.Name, c.Type}
	}
	return []string{c.Name}
}

// ownElements returns rendered elements that are the component itself.
func ownElements(ix *world.Index, c types.ComponentSpec) []world.ElementRef {
	var out []world.ElementRef
	for _, n := range names(c) {
		out = append(out, ix.Elements(n)...)
	}
	return out
}

// scopeElements returns the component's own elements plus everything
// rendered inside them or inside the component's declaration.
func scopeElements(ix *world.Index, c types.ComponentSpec) []world.ElementRef {
	ns := names(c)
	var out []world.ElementRef
	for _, ref := range ix.AllElements() {
		el := ref.Element
		for _, n := range ns {
			if el.Name == n || el.Owner == n || el.HasAncestor(n) {
				out = append(out, ref)
				break
			}
		}
	}
	return out
}

// artifactFor picks the artifact to blame for a component.
func artifactFor(ix *world.Index, c types.ComponentSpec) string {
	if c.File != "" {
		return c.File
	}
	for _, n := range names(c) {
		if a, ok := ix.DeclaredIn(n); ok {
			return a
		}
	}
	if refs := ownElements(ix, c); len(refs) > 0 {
		return refs[0].Artifact
	}
	return ""
}

func elementPath(ref world.ElementRef) string {
	return fmt.Sprintf("%s:%s@%d", ref.Artifact, ref.Element.Name, ref.Element.Line)
}
