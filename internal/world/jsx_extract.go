package world

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// parseElement reads a jsx_opening_element or jsx_self_closing_element.
// Fragments (<>...</>) have no name and are skipped.
func (w *walker) parseElement(node *sitter.Node, ancestors []string, owner string) (Element, bool) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return Element{}, false
	}
	el := Element{
		Name:      w.text(nameNode),
		Ancestors: append([]string(nil), ancestors...),
		Owner:     owner,
		Line:      int(node.StartPoint().Row) + 1,
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "jsx_attribute":
			if attr, ok := w.parseAttribute(child); ok {
				el.Attributes = append(el.Attributes, attr)
			}
		case "jsx_expression":
			if strings.HasPrefix(strings.TrimSpace(strings.TrimPrefix(w.text(child), "{")), "...") {
				el.Spread = true
			}
		}
	}
	return el, true
}

func (w *walker) parseAttribute(node *sitter.Node) (Attribute, bool) {
	if node.NamedChildCount() == 0 {
		return Attribute{}, false
	}
	attr := Attribute{Name: w.text(node.NamedChild(0)), Kind: AttrBare}
	if node.NamedChildCount() < 2 {
		return attr, true
	}

	value := node.NamedChild(1)
	raw := w.text(value)
	switch value.Type() {
	case "string":
		attr.Kind = AttrString
		attr.Value = unquote(raw)
	case "jsx_expression":
		inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(raw, "{"), "}"))
		if isQuoted(inner) {
			attr.Kind = AttrString
			attr.Value = unquote(inner)
		} else {
			attr.Kind = AttrExpression
			attr.Value = inner
		}
	default:
		attr.Kind = AttrExpression
		attr.Value = raw
	}
	return attr, true
}

func (w *walker) parseImport(node *sitter.Node) Import {
	imp := Import{Line: int(node.StartPoint().Row) + 1}

	source := node.ChildByFieldName("source")
	for i := 0; source == nil && i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c.Type() == "string" {
			source = c
		}
	}
	if source != nil {
		imp.Source = unquote(w.text(source))
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		clause := node.NamedChild(i)
		if clause.Type() != "import_clause" {
			continue
		}
		for j := 0; j < int(clause.NamedChildCount()); j++ {
			part := clause.NamedChild(j)
			switch part.Type() {
			case "identifier":
				imp.Default = w.text(part)
			case "namespace_import":
				for k := 0; k < int(part.NamedChildCount()); k++ {
					if id := part.NamedChild(k); id.Type() == "identifier" {
						imp.Namespace = w.text(id)
					}
				}
			case "named_imports":
				for k := 0; k < int(part.NamedChildCount()); k++ {
					spec := part.NamedChild(k)
					if spec.Type() != "import_specifier" {
						continue
					}
					name := spec.ChildByFieldName("name")
					if name == nil {
						continue
					}
					s := Specifier{Name: w.text(name), Local: w.text(name)}
					if alias := spec.ChildByFieldName("alias"); alias != nil {
						s.Local = w.text(alias)
					}
					imp.Named = append(imp.Named, s)
				}
			}
		}
	}
	return imp
}

// collectErrors records ERROR and MISSING nodes below n.
func (w *walker) collectErrors(n *sitter.Node) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() == "ERROR" || child.IsMissing() {
			pt := child.StartPoint()
			snippet := w.text(child)
			if len(snippet) > 40 {
				snippet = snippet[:40]
			}
			if child.IsMissing() {
				snippet = "missing " + child.Type()
			}
			w.mod.SyntaxErrors = append(w.mod.SyntaxErrors, SyntaxError{
				Line:    int(pt.Row) + 1,
				Column:  int(pt.Column) + 1,
				Snippet: strings.TrimSpace(snippet),
			})
			continue
		}
		if child.HasError() {
			w.collectErrors(child)
		}
	}
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	q := s[0]
	return (q == '"' || q == '\'' || q == '`') && s[len(s)-1] == q && !strings.Contains(s, "${")
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
