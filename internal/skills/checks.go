package skills

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"forge/internal/articulation"
	"forge/internal/perception"
	"forge/internal/types"
	"forge/internal/world"
)

// Env is what skills may use besides session memory.
type Env struct {
	Generator perception.Generator
	Checker   Checker
	// Limit caps the number of artifacts one reply may contribute. It does
	// not bound how many artifacts the session accumulates.
	Limit int
}

// NewEnv creates an environment with a StaticChecker.
func NewEnv(gen perception.Generator, limit int) *Env {
	if limit <= 0 {
		limit = articulation.DefaultArtifactLimit
	}
	return &Env{Generator: gen, Checker: NewStaticChecker(nil, nil), Limit: limit}
}

func (e *Env) checker() Checker {
	if e == nil || e.Checker == nil {
		return NewStaticChecker(nil, nil)
	}
	return e.Checker
}

func (e *Env) limit() int {
	if e == nil || e.Limit <= 0 {
		return articulation.DefaultArtifactLimit
	}
	return e.Limit
}

// =============================================================================
// STATIC CHECKS
// =============================================================================

// Checker inspects an artifact set and reports typed issues.
type Checker interface {
	Check(ctx context.Context, artifacts map[string]string) ([]types.Issue, error)
}

// TypeChecker is an optional external type checking hook (tsc, for example).
type TypeChecker interface {
	CheckTypes(ctx context.Context, artifacts map[string]string) ([]types.Issue, error)
}

// TypeCheckFunc adapts a function to TypeChecker.
type TypeCheckFunc func(ctx context.Context, artifacts map[string]string) ([]types.Issue, error)

// CheckTypes calls f.
func (f TypeCheckFunc) CheckTypes(ctx context.Context, artifacts map[string]string) ([]types.Issue, error) {
	return f(ctx, artifacts)
}

// StaticChecker reports syntax errors and unresolved relative imports from
// the parsed implementation model, plus whatever the TypeChecker finds.
type StaticChecker struct {
	parser *world.Parser
	types  TypeChecker
}

// NewStaticChecker creates a checker. A nil parser gets a fresh one.
func NewStaticChecker(p *world.Parser, tc TypeChecker) *StaticChecker {
	if p == nil {
		p = world.NewParser()
	}
	return &StaticChecker{parser: p, types: tc}
}

// Check implements Checker.
func (c *StaticChecker) Check(ctx context.Context, artifacts map[string]string) ([]types.Issue, error) {
	ix, err := world.BuildIndex(ctx, c.parser, artifacts)
	if err != nil {
		return nil, err
	}

	var issues []types.Issue
	for _, m := range ix.Modules() {
		for _, se := range m.SyntaxErrors {
			issues = append(issues, types.Issue{
				Kind:     types.IssueStructural,
				Artifact: m.Artifact,
				Message:  fmt.Sprintf("syntax error at line %d, column %d", se.Line, se.Column),
			})
		}
		for _, imp := range m.Imports {
			if !imp.Relative() {
				continue
			}
			if _, ok := ix.ResolveImport(m.Artifact, imp.Source); !ok {
				issues = append(issues, types.Issue{
					Kind:     types.IssueImport,
					Artifact: m.Artifact,
					Message:  fmt.Sprintf("unresolved import %s (line %d)", imp.Source, imp.Line),
				})
			}
		}
	}

	if c.types != nil {
		typed, err := c.types.CheckTypes(ctx, artifacts)
		if err != nil {
			return issues, fmt.Errorf("type check: %w", err)
		}
		for _, is := range typed {
			if is.Kind == "" {
				is.Kind = types.IssueType
			}
			issues = append(issues, is)
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Artifact != issues[j].Artifact {
			return issues[i].Artifact < issues[j].Artifact
		}
		return issues[i].Kind < issues[j].Kind
	})
	return issues, nil
}

// issueStrings renders typed issues in the "<artifact>: <message>" form that
// types.ClassifyIssue reads back. The kind keyword is kept in the text.
func issueStrings(issues []types.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		msg := is.Message
		if is.Kind == types.IssueType && !strings.Contains(strings.ToLower(msg), "type error") {
			msg = "type error: " + msg
		}
		if is.Artifact != "" {
			msg = is.Artifact + ": " + msg
		}
		out = append(out, msg)
	}
	return out
}
