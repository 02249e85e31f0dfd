package world

import (
	"context"
	"path"
	"sort"
	"strings"

	"forge/internal/logging"
)

// ElementRef is an element together with the artifact that renders it.
type ElementRef struct {
	Artifact string
	Element  Element
}

// Index is the implementation model of one artifact set. It is read-only
// once built and safe to share between analyzers.
type Index struct {
	artifacts map[string]bool
	modules   map[string]*Module
	order     []string
}

// BuildIndex parses every source artifact. Non-script artifacts (styles,
// markup, docs) are tracked by name only.
func BuildIndex(ctx context.Context, p *Parser, artifacts map[string]string) (*Index, error) {
	if p == nil {
		p = NewParser()
	}
	timer := logging.StartTimer(logging.CategoryWorld, "BuildIndex")
	defer timer.Stop()

	ix := &Index{
		artifacts: make(map[string]bool, len(artifacts)),
		modules:   make(map[string]*Module),
	}
	for name := range artifacts {
		ix.artifacts[name] = true
		ix.order = append(ix.order, name)
	}
	sort.Strings(ix.order)

	for _, name := range ix.order {
		if !IsSource(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mod, err := p.Parse(ctx, name, []byte(artifacts[name]))
		if err != nil {
			return nil, err
		}
		ix.modules[name] = mod
	}
	return ix, nil
}

// Artifacts returns all artifact names, sorted.
func (ix *Index) Artifacts() []string {
	if ix == nil {
		return nil
	}
	return append([]string(nil), ix.order...)
}

// HasArtifact reports whether name is part of the set.
func (ix *Index) HasArtifact(name string) bool {
	return ix != nil && ix.artifacts[name]
}

// Module returns the parsed module for name, or nil for non-source artifacts.
func (ix *Index) Module(name string) *Module {
	if ix == nil {
		return nil
	}
	return ix.modules[name]
}

// Modules returns parsed modules in artifact order.
func (ix *Index) Modules() []*Module {
	if ix == nil {
		return nil
	}
	out := make([]*Module, 0, len(ix.modules))
	for _, name := range ix.order {
		if m := ix.modules[name]; m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Elements returns every rendered element named name.
func (ix *Index) Elements(name string) []ElementRef {
	var out []ElementRef
	for _, m := range ix.Modules() {
		for _, el := range m.Elements {
			if el.Name == name {
				out = append(out, ElementRef{Artifact: m.Artifact, Element: el})
			}
		}
	}
	return out
}

// AllElements returns every rendered element in artifact order.
func (ix *Index) AllElements() []ElementRef {
	var out []ElementRef
	for _, m := range ix.Modules() {
		for _, el := range m.Elements {
			out = append(out, ElementRef{Artifact: m.Artifact, Element: el})
		}
	}
	return out
}

// DeclaredIn returns the first artifact (in name order) declaring component.
func (ix *Index) DeclaredIn(component string) (string, bool) {
	for _, m := range ix.Modules() {
		if m.Declares(component) {
			return m.Artifact, true
		}
	}
	return "", false
}

// Declared returns every declared component with its artifact.
func (ix *Index) Declared() map[string]string {
	out := make(map[string]string)
	for _, m := range ix.Modules() {
		for _, d := range m.Declared {
			if _, ok := out[d]; !ok {
				out[d] = m.Artifact
			}
		}
	}
	return out
}

// Present reports whether component is declared or rendered anywhere.
func (ix *Index) Present(component string) bool {
	if _, ok := ix.DeclaredIn(component); ok {
		return true
	}
	return len(ix.Elements(component)) > 0
}

// Nested reports whether child is rendered inside parent: either as a JSX
// descendant of a parent element, or from within parent's own declaration.
func (ix *Index) Nested(parent, child string) bool {
	for _, ref := range ix.Elements(child) {
		if ref.Element.Owner == parent || ref.Element.HasAncestor(parent) {
			return true
		}
	}
	return false
}

var resolveSuffixes = []string{
	"", ".tsx", ".ts", ".jsx", ".js", ".css", ".json",
	"/index.tsx", "/index.ts", "/index.jsx", "/index.js",
}

// ResolveImport maps a relative import in importer to an artifact name.
func (ix *Index) ResolveImport(importer, source string) (string, bool) {
	if ix == nil || !(strings.HasPrefix(source, "./") || strings.HasPrefix(source, "../")) {
		return "", false
	}
	base := path.Join(path.Dir(importer), source)
	for _, suffix := range resolveSuffixes {
		if candidate := base + suffix; ix.artifacts[candidate] {
			return candidate, true
		}
	}
	return "", false
}
