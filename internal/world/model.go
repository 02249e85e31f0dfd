// Package world builds a structural model of generated UI source files.
// Each TypeScript or JavaScript artifact is parsed with Tree-sitter into a
// Module: its imports, the JSX elements it renders (with attributes and
// ancestry), the components it declares and any syntax errors. An Index ties
// the modules of one artifact set together for the analyzers.
package world

import (
	"path"
	"regexp"
	"strings"
)

// AttrKind records how a JSX attribute value was written.
type AttrKind string

const (
	AttrString     AttrKind = "string"     // title="Sales"
	AttrExpression AttrKind = "expression" // data={rows}
	AttrBare       AttrKind = "bare"       // disabled
)

// Attribute is one JSX attribute.
type Attribute struct {
	Name  string
	Value string
	Kind  AttrKind
}

var identPattern = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)

// References reports whether the attribute value names field, either as the
// literal string or as an identifier inside the expression.
func (a Attribute) References(field string) bool {
	switch a.Kind {
	case AttrString:
		return a.Value == field
	case AttrExpression:
		for _, id := range identPattern.FindAllString(a.Value, -1) {
			if id == field {
				return true
			}
		}
		return strings.Contains(a.Value, `"`+field+`"`) || strings.Contains(a.Value, `'`+field+`'`)
	}
	return false
}

// Element is one rendered JSX element.
type Element struct {
	Name       string
	Attributes []Attribute
	// Spread is set when the element receives {...props}.
	Spread bool
	// Ancestors lists enclosing JSX element names, outermost first.
	Ancestors []string
	// Owner is the declared component whose body renders this element.
	Owner string
	Line  int
}

// Attr looks up an attribute by name.
func (e Element) Attr(name string) (Attribute, bool) {
	for _, a := range e.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// HasAncestor reports whether name encloses the element.
func (e Element) HasAncestor(name string) bool {
	for _, a := range e.Ancestors {
		if a == name {
			return true
		}
	}
	return false
}

// Specifier is one named import binding.
type Specifier struct {
	Name  string
	Local string
}

// Import is one import statement.
type Import struct {
	Source    string
	Default   string
	Named     []Specifier
	Namespace string
	Line      int
}

// Relative reports whether the import points at another artifact.
func (i Import) Relative() bool {
	return strings.HasPrefix(i.Source, "./") || strings.HasPrefix(i.Source, "../")
}

// Package returns the package name of a bare import ("@scope/pkg/sub" ->
// "@scope/pkg", "recharts/es6" -> "recharts").
func (i Import) Package() string {
	if i.Relative() || i.Source == "" {
		return ""
	}
	parts := strings.Split(i.Source, "/")
	if strings.HasPrefix(i.Source, "@") && len(parts) > 1 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// Binds reports whether the import introduces local.
func (i Import) Binds(local string) bool {
	if i.Default == local || i.Namespace == local {
		return local != ""
	}
	for _, s := range i.Named {
		if s.Local == local {
			return true
		}
	}
	return false
}

// SyntaxError locates an ERROR or MISSING node.
type SyntaxError struct {
	Line    int
	Column  int
	Snippet string
}

// Module is the parsed view of one artifact.
type Module struct {
	Artifact     string
	Imports      []Import
	Elements     []Element
	Declared     []string
	SyntaxErrors []SyntaxError
}

// Declares reports whether the module defines component name.
func (m *Module) Declares(name string) bool {
	for _, d := range m.Declared {
		if d == name {
			return true
		}
	}
	return false
}

// ImportFor returns the import that binds local, if any. A namespaced
// element name such as "UI.Button" is matched on its first segment.
func (m *Module) ImportFor(local string) (Import, bool) {
	if i := strings.Index(local, "."); i > 0 {
		local = local[:i]
	}
	for _, imp := range m.Imports {
		if imp.Binds(local) {
			return imp, true
		}
	}
	return Import{}, false
}

var sourceExtensions = map[string]bool{
	".tsx": true, ".ts": true, ".jsx": true, ".js": true, ".mjs": true, ".cjs": true,
}

// IsSource reports whether name is a parseable script artifact.
func IsSource(name string) bool {
	return sourceExtensions[strings.ToLower(path.Ext(name))]
}

// IsComponentName reports whether name follows the JSX component convention
// of a leading capital letter (or a namespaced member such as UI.Button).
func IsComponentName(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	return (c >= 'A' && c <= 'Z') || strings.Contains(name, ".")
}
