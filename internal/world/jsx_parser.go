package world

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"forge/internal/logging"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Parser turns TypeScript and JavaScript artifacts into Modules using
// Tree-sitter. Tree-sitter parsers are not safe for concurrent use, so each
// grammar is guarded by the Parser's mutex.
type Parser struct {
	mu        sync.Mutex
	tsxParser *sitter.Parser
	tsParser  *sitter.Parser
	jsParser  *sitter.Parser
}

// NewParser creates a parser for .tsx, .ts and .js/.jsx sources.
func NewParser() *Parser {
	tsxParser := sitter.NewParser()
	tsxParser.SetLanguage(tsx.GetLanguage())
	tsParser := sitter.NewParser()
	tsParser.SetLanguage(typescript.GetLanguage())
	jsParser := sitter.NewParser()
	jsParser.SetLanguage(javascript.GetLanguage())
	return &Parser{tsxParser: tsxParser, tsParser: tsParser, jsParser: jsParser}
}

func (p *Parser) parserFor(name string) *sitter.Parser {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ts":
		return p.tsParser
	case ".js", ".jsx", ".mjs", ".cjs":
		return p.jsParser
	default:
		return p.tsxParser
	}
}

// Parse builds the Module for one artifact. Syntax errors are recorded on the
// module, not returned; an error means the parse itself did not run.
func (p *Parser) Parse(ctx context.Context, name string, content []byte) (*Module, error) {
	start := time.Now()
	log := logging.Get(logging.CategoryWorld)

	p.mu.Lock()
	tree, err := p.parserFor(name).ParseCtx(ctx, nil, content)
	p.mu.Unlock()
	if err != nil {
		log.Error("parse failed: %s - %v", name, err)
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	defer tree.Close()

	w := &walker{content: content, mod: &Module{Artifact: name}}
	root := tree.RootNode()
	w.visit(root, nil, "")
	if root.HasError() {
		w.collectErrors(root)
	}

	log.Debug("parsed %s: %d imports, %d elements, %d declared, %d errors in %v",
		name, len(w.mod.Imports), len(w.mod.Elements), len(w.mod.Declared), len(w.mod.SyntaxErrors), time.Since(start))
	return w.mod, nil
}

type walker struct {
	content []byte
	mod     *Module
	seen    map[string]bool
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) declare(name string) {
	if w.seen == nil {
		w.seen = make(map[string]bool)
	}
	if !w.seen[name] {
		w.seen[name] = true
		w.mod.Declared = append(w.mod.Declared, name)
	}
}

func (w *walker) visit(node *sitter.Node, ancestors []string, owner string) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.dispatch(node.NamedChild(i), ancestors, owner)
	}
}

func (w *walker) dispatch(child *sitter.Node, ancestors []string, owner string) {
	switch child.Type() {
	case "import_statement":
		w.mod.Imports = append(w.mod.Imports, w.parseImport(child))

	case "function_declaration", "class_declaration", "generator_function_declaration":
		next := owner
		if nameNode := child.ChildByFieldName("name"); nameNode != nil {
			if name := w.text(nameNode); IsComponentName(name) {
				w.declare(name)
				next = name
			}
		}
		w.visit(child, ancestors, next)

	case "variable_declarator":
		next := owner
		nameNode := child.ChildByFieldName("name")
		value := child.ChildByFieldName("value")
		if nameNode != nil && value != nil && nameNode.Type() == "identifier" && isComponentValue(value.Type()) {
			if name := w.text(nameNode); IsComponentName(name) {
				w.declare(name)
				next = name
			}
		}
		w.visit(child, ancestors, next)

	case "jsx_element":
		nested := ancestors
		for j := 0; j < int(child.NamedChildCount()); j++ {
			c := child.NamedChild(j)
			if c.Type() != "jsx_opening_element" {
				continue
			}
			if el, ok := w.parseElement(c, ancestors, owner); ok {
				w.mod.Elements = append(w.mod.Elements, el)
				nested = appendName(ancestors, el.Name)
			}
			// attribute values may hold JSX of their own
			w.visit(c, nested, owner)
			break
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			c := child.NamedChild(j)
			if c.Type() == "jsx_opening_element" || c.Type() == "jsx_closing_element" {
				continue
			}
			w.dispatch(c, nested, owner)
		}

	case "jsx_self_closing_element":
		nested := ancestors
		if el, ok := w.parseElement(child, ancestors, owner); ok {
			w.mod.Elements = append(w.mod.Elements, el)
			nested = appendName(ancestors, el.Name)
		}
		w.visit(child, nested, owner)

	default:
		w.visit(child, ancestors, owner)
	}
}

func isComponentValue(t string) bool {
	switch t {
	case "arrow_function", "function", "function_expression", "call_expression", "class":
		return true
	}
	return false
}

func appendName(ancestors []string, name string) []string {
	out := make([]string, len(ancestors), len(ancestors)+1)
	copy(out, ancestors)
	return append(out, name)
}
