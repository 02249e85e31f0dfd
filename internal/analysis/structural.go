package analysis

import (
	"sort"
	"strings"

	"forge/internal/types"
	"forge/internal/world"
)

// =============================================================================
// STRUCTURAL COMPARER
// =============================================================================

// StructuralComparer checks that every specified component is rendered with
// the declared props, bindings, interactions and nesting.
type StructuralComparer struct {
	// ignoredProps never count as undeclared implementation props.
	ignoredProps map[string]bool
}

// NewStructuralComparer creates the comparer.
func NewStructuralComparer() *StructuralComparer {
	return &StructuralComparer{ignoredProps: map[string]bool{
		"key": true, "ref": true, "className": true, "style": true, "children": true, "id": true,
	}}
}

func (s *StructuralComparer) Name() string { return SourceStructural }

func (s *StructuralComparer) AllowedKinds() []types.ConflictKind {
	return []types.ConflictKind{
		types.KindStructuralMismatch,
		types.KindMissingElement,
		types.KindPropMismatch,
		types.KindIncorrectDataBinding,
		types.KindInteractionMismatch,
	}
}

func (s *StructuralComparer) Analyze(in Input) []types.Conflict {
	if in.Spec == nil || in.Model == nil {
		return nil
	}
	ix := in.Model
	var out []types.Conflict
	specNames := make(map[string]bool)

	for _, node := range flatten(in.Spec) {
		c := node.Comp
		for _, n := range names(c) {
			specNames[n] = true
		}

		if !s.present(ix, c) {
			// One conflict per missing component; nothing else is checkable.
			out = append(out, newConflict(SourceStructural, types.KindMissingElement, types.SeverityHigh, types.TargetImplementation,
				c.Name, missingHome(ix, in.Spec, node), "component %s (%s) is not rendered or declared", c.Name, c.TypeName()))
			continue
		}
		artifact := artifactFor(ix, c)
		own := ownElements(ix, c)
		scope := scopeElements(ix, c)

		out = append(out, s.props(c, own, artifact)...)
		out = append(out, s.bindings(c, scope, artifact)...)
		out = append(out, s.interactions(c, scope, artifact)...)

		if node.Parent != nil && s.present(ix, *node.Parent) && !nestedUnder(ix, *node.Parent, c) {
			out = append(out, newConflict(SourceStructural, types.KindStructuralMismatch, types.SeverityMedium, types.TargetImplementation,
				node.Parent.Name+".children."+c.Name, artifact, "%s should be rendered inside %s", c.Name, node.Parent.Name))
		}
	}

	// Declared components the spec never mentions.
	if len(specNames) > 0 {
		declared := ix.Declared()
		keys := make([]string, 0, len(declared))
		for n := range declared {
			keys = append(keys, n)
		}
		sort.Strings(keys)
		for _, n := range keys {
			if specNames[n] || isRootComponent(n) || usedOnlyInternally(ix, n, specNames) {
				continue
			}
			out = append(out, newConflict(SourceStructural, types.KindStructuralMismatch, types.SeverityLow, types.TargetSpec,
				"impl."+n, declared[n], "component %s exists only in the implementation", n))
		}
	}
	return out
}

func (s *StructuralComparer) present(ix *world.Index, c types.ComponentSpec) bool {
	for _, n := range names(c) {
		if ix.Present(n) {
			return true
		}
	}
	return false
}

func (s *StructuralComparer) props(c types.ComponentSpec, own []world.ElementRef, artifact string) []types.Conflict {
	if len(own) == 0 {
		return nil
	}
	have := make(map[string]bool)
	for _, ref := range own {
		for _, a := range ref.Element.Attributes {
			have[a.Name] = true
		}
	}
	spread := false
	for _, ref := range own {
		spread = spread || ref.Element.Spread
	}

	var out []types.Conflict
	for _, p := range sortedKeys(c.Props) {
		if !have[p] && !spread {
			out = append(out, newConflict(SourceStructural, types.KindPropMismatch, types.SeverityMedium, types.TargetImplementation,
				c.Name+".props."+p, artifact, "%s is missing prop %s", c.Name, p))
		}
	}

	expected := make(map[string]bool)
	for p := range c.Props {
		expected[p] = true
	}
	for _, b := range c.Bindings {
		expected[b.Prop] = true
	}
	for _, i := range c.Interactions {
		expected[i.Event] = true
	}
	extra := make([]string, 0)
	for p := range have {
		if !expected[p] && !s.ignoredProps[p] && !isEventProp(p) {
			extra = append(extra, p)
		}
	}
	sort.Strings(extra)
	for _, p := range extra {
		out = append(out, newConflict(SourceStructural, types.KindPropMismatch, types.SeverityLow, types.TargetSpec,
			c.Name+".props."+p, artifact, "%s sets prop %s which the specification does not declare", c.Name, p))
	}
	return out
}

func (s *StructuralComparer) bindings(c types.ComponentSpec, scope []world.ElementRef, artifact string) []types.Conflict {
	var out []types.Conflict
	for _, b := range c.Bindings {
		attrs := attrsNamed(scope, b.Prop)
		path := c.Name + ".bindings." + b.Prop
		if len(attrs) == 0 {
			out = append(out, newConflict(SourceStructural, types.KindIncorrectDataBinding, types.SeverityMedium, types.TargetImplementation,
				path, artifact, "%s does not bind %s to field %s", c.Name, b.Prop, b.Field))
			continue
		}
		if !anyReferences(attrs, b.Field) {
			out = append(out, newConflict(SourceStructural, types.KindIncorrectDataBinding, types.SeverityMedium, types.TargetImplementation,
				path, artifact, "%s binds %s to %q instead of field %s", c.Name, b.Prop, attrs[0].Value, b.Field))
		}
	}
	return out
}

func (s *StructuralComparer) interactions(c types.ComponentSpec, scope []world.ElementRef, artifact string) []types.Conflict {
	var out []types.Conflict
	for _, i := range c.Interactions {
		attrs := attrsNamed(scope, i.Event)
		path := c.Name + ".events." + i.Event
		if len(attrs) == 0 {
			out = append(out, newConflict(SourceStructural, types.KindInteractionMismatch, types.SeverityMedium, types.TargetImplementation,
				path, artifact, "%s does not handle %s", c.Name, i.Event))
			continue
		}
		if i.Handler != "" && !anyReferences(attrs, i.Handler) {
			out = append(out, newConflict(SourceStructural, types.KindInteractionMismatch, types.SeverityMedium, types.TargetImplementation,
				path, artifact, "%s wires %s to %q instead of %s", c.Name, i.Event, attrs[0].Value, i.Handler))
		}
	}
	return out
}

// missingHome names the artifact that should provide a missing component:
// its own file, else its parent's, else the first listed artifact.
func missingHome(ix *world.Index, spec *types.Specification, node specNode) string {
	if node.Comp.File != "" {
		return node.Comp.File
	}
	if node.Parent != nil {
		if a := artifactFor(ix, *node.Parent); a != "" {
			return a
		}
	}
	if len(spec.Artifacts) > 0 {
		return spec.Artifacts[0]
	}
	return ""
}

func nestedUnder(ix *world.Index, parent, child types.ComponentSpec) bool {
	for _, p := range names(parent) {
		for _, c := range names(child) {
			if ix.Nested(p, c) {
				return true
			}
		}
	}
	return false
}

func attrsNamed(refs []world.ElementRef, name string) []world.Attribute {
	var out []world.Attribute
	for _, ref := range refs {
		if a, ok := ref.Element.Attr(name); ok {
			out = append(out, a)
		}
	}
	return out
}

func anyReferences(attrs []world.Attribute, name string) bool {
	for _, a := range attrs {
		if a.References(name) {
			return true
		}
	}
	return false
}

func isEventProp(name string) bool {
	return len(name) > 2 && strings.HasPrefix(name, "on") && name[2] >= 'A' && name[2] <= 'Z'
}

func isRootComponent(name string) bool {
	return name == "App" || name == "Root" || name == "Main"
}

// usedOnlyInternally reports whether a helper component is rendered solely
// inside specified components.
func usedOnlyInternally(ix *world.Index, name string, specNames map[string]bool) bool {
	refs := ix.Elements(name)
	if len(refs) == 0 {
		return false
	}
	for _, ref := range refs {
		if !specNames[ref.Element.Owner] {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
