package analysis

import (
	"fmt"
	"strings"

	"forge/internal/types"
	"forge/internal/world"
)

// =============================================================================
// COMPATIBILITY CHECKER
// =============================================================================

// implicitPackages may be imported without being listed as dependencies.
var implicitPackages = map[string]bool{"react": true, "react-dom": true}

// CompatibilityChecker verifies imports resolve, library components come
// from their declared module with required props, and events match library
// contracts.
type CompatibilityChecker struct{}

// NewCompatibilityChecker creates the checker.
func NewCompatibilityChecker() *CompatibilityChecker { return &CompatibilityChecker{} }

func (c *CompatibilityChecker) Name() string { return SourceCompatibility }

func (c *CompatibilityChecker) AllowedKinds() []types.ConflictKind {
	return []types.ConflictKind{
		types.KindMissingDependency,
		types.KindMissingRequiredProp,
		types.KindInvalidEventContract,
	}
}

func (c *CompatibilityChecker) Analyze(in Input) []types.Conflict {
	var out []types.Conflict
	if in.Model != nil {
		listed := listedPackages(in.Spec)
		for _, m := range in.Model.Modules() {
			out = append(out, c.imports(in.Model, m, listed)...)
			out = append(out, c.elements(in.Spec, m)...)
		}
	}
	out = append(out, c.specEvents(in.Spec)...)
	return out
}

func listedPackages(spec *types.Specification) map[string]bool {
	if spec == nil || (len(spec.Dependencies) == 0 && len(spec.Libraries) == 0) {
		return nil
	}
	out := make(map[string]bool)
	for _, d := range spec.Dependencies {
		out[d.Name] = true
	}
	for _, l := range spec.Libraries {
		out[world.Import{Source: l.Module}.Package()] = true
	}
	return out
}

func (c *CompatibilityChecker) imports(ix *world.Index, m *world.Module, listed map[string]bool) []types.Conflict {
	var out []types.Conflict
	for _, imp := range m.Imports {
		path := m.Artifact + ":import:" + imp.Source
		if imp.Relative() {
			if _, ok := ix.ResolveImport(m.Artifact, imp.Source); !ok {
				out = append(out, newConflict(SourceCompatibility, types.KindMissingDependency, types.SeverityHigh, types.TargetImplementation,
					path, m.Artifact, "%s imports %s which is not among the generated files", m.Artifact, imp.Source))
			}
			continue
		}
		pkg := imp.Package()
		if listed != nil && pkg != "" && !listed[pkg] && !implicitPackages[pkg] {
			out = append(out, newConflict(SourceCompatibility, types.KindMissingDependency, types.SeverityMedium, types.TargetBoth,
				path, m.Artifact, "%s imports package %s which is not a declared dependency", m.Artifact, pkg))
		}
	}
	return out
}

func (c *CompatibilityChecker) elements(spec *types.Specification, m *world.Module) []types.Conflict {
	var out []types.Conflict
	reported := make(map[string]bool)
	for _, el := range m.Elements {
		if world.IsComponentName(el.Name) && !strings.HasPrefix(el.Name, "React.") && !reported[el.Name] {
			if conflict, bad := c.origin(spec, m, el); bad {
				reported[el.Name] = true
				out = append(out, conflict)
			}
		}

		_, contract, hasContract := spec.Contract(el.Name)
		at := fmt.Sprintf("%s:%s@%d", m.Artifact, el.Name, el.Line)
		if hasContract && !el.Spread {
			for _, p := range contract.RequiredProps {
				if _, ok := el.Attr(p); !ok {
					out = append(out, newConflict(SourceCompatibility, types.KindMissingRequiredProp, types.SeverityHigh, types.TargetImplementation,
						at+".props."+p, m.Artifact, "<%s> is missing required prop %s", el.Name, p))
				}
			}
		}
		for _, a := range el.Attributes {
			if !isEventProp(a.Name) {
				continue
			}
			path := at + ".events." + a.Name
			switch {
			case a.Kind == world.AttrString:
				out = append(out, newConflict(SourceCompatibility, types.KindInvalidEventContract, types.SeverityMedium, types.TargetImplementation,
					path, m.Artifact, "<%s %s> is given a string instead of a handler", el.Name, a.Name))
			case hasContract && len(contract.Events) > 0 && !contains(contract.Events, a.Name):
				out = append(out, newConflict(SourceCompatibility, types.KindInvalidEventContract, types.SeverityMedium, types.TargetImplementation,
					path, m.Artifact, "<%s> does not emit %s (supports %v)", el.Name, a.Name, contract.Events))
			}
		}
	}
	return out
}

// origin checks a component element is declared locally or imported, and
// that library components come from their library.
func (c *CompatibilityChecker) origin(spec *types.Specification, m *world.Module, el world.Element) (types.Conflict, bool) {
	path := m.Artifact + ":" + el.Name + ".import"
	imp, imported := m.ImportFor(el.Name)
	if lib, _, ok := spec.Contract(el.Name); ok {
		if !imported || (imp.Source != lib.Module && imp.Package() != lib.Module) {
			return newConflict(SourceCompatibility, types.KindMissingDependency, types.SeverityHigh, types.TargetImplementation,
				path, m.Artifact, "<%s> must be imported from %s", el.Name, lib.Module), true
		}
		return types.Conflict{}, false
	}
	if imported || m.Declares(el.Name) {
		return types.Conflict{}, false
	}
	return newConflict(SourceCompatibility, types.KindMissingDependency, types.SeverityHigh, types.TargetImplementation,
		path, m.Artifact, "<%s> is used in %s but never imported or declared", el.Name, m.Artifact), true
}

// specEvents flags specified interactions a library component cannot emit.
func (c *CompatibilityChecker) specEvents(spec *types.Specification) []types.Conflict {
	var out []types.Conflict
	for _, node := range flatten(spec) {
		comp := node.Comp
		_, contract, ok := spec.Contract(comp.TypeName())
		if !ok || len(contract.Events) == 0 {
			continue
		}
		for _, i := range comp.Interactions {
			if !contains(contract.Events, i.Event) {
				out = append(out, newConflict(SourceCompatibility, types.KindInvalidEventContract, types.SeverityMedium, types.TargetSpec,
					comp.Name+".events."+i.Event, comp.File, "%s (%s) does not support %s", comp.Name, comp.TypeName(), i.Event))
			}
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
