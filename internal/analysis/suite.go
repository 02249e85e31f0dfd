package analysis

import (
	"context"
	"fmt"
	"sort"

	"forge/internal/logging"
	"forge/internal/types"
	"forge/internal/world"

	"golang.org/x/sync/errgroup"
)

// Suite runs a fixed set of analyzers over one Input.
type Suite struct {
	analyzers []Analyzer
	parser    *world.Parser
	parallel  bool
}

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithAnalyzers replaces the default analyzer set.
func WithAnalyzers(as ...Analyzer) SuiteOption {
	return func(s *Suite) { s.analyzers = as }
}

// WithParser shares a Tree-sitter parser across runs.
func WithParser(p *world.Parser) SuiteOption {
	return func(s *Suite) { s.parser = p }
}

// Sequential disables the concurrent fan-out.
func Sequential() SuiteOption {
	return func(s *Suite) { s.parallel = false }
}

// NewSuite creates a suite with the four standard analyzers.
func NewSuite(opts ...SuiteOption) *Suite {
	s := &Suite{
		analyzers: []Analyzer{
			NewStructuralComparer(),
			NewSchemaAligner(DefaultSchemaCacheSize, nil),
			NewDomainChecker(),
			NewCompatibilityChecker(),
		},
		parallel: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = world.NewParser()
	}
	return s
}

// Analyzers returns the configured analyzers.
func (s *Suite) Analyzers() []Analyzer {
	return append([]Analyzer(nil), s.analyzers...)
}

// Run executes every analyzer and merges their output. Conflicts of kinds an
// analyzer is not allowed to emit are dropped and logged.
func (s *Suite) Run(ctx context.Context, in Input) ([]types.Conflict, error) {
	timer := logging.StartTimer(logging.CategoryAnalysis, "Suite.Run")
	defer timer.Stop()

	if in.Model == nil {
		ix, err := world.BuildIndex(ctx, s.parser, in.Artifacts)
		if err != nil {
			return nil, fmt.Errorf("build implementation model: %w", err)
		}
		in.Model = ix
	}

	results := make([][]types.Conflict, len(s.analyzers))
	if s.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, a := range s.analyzers {
			i, a := i, a
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = a.Analyze(in)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, a := range s.analyzers {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = a.Analyze(in)
		}
	}

	var merged []types.Conflict
	for i, a := range s.analyzers {
		allowed := make(map[types.ConflictKind]bool)
		for _, k := range a.AllowedKinds() {
			allowed[k] = true
		}
		for _, c := range results[i] {
			if !allowed[c.Kind] || !c.Kind.Valid() {
				logging.AnalysisWarn("dropping %s conflict from %s: kind not allowed (%s)", c.Kind, a.Name(), c.Path)
				continue
			}
			if c.Source == "" {
				c.Source = a.Name()
			}
			if c.Severity.Rank() == 0 {
				c.Severity = types.SeverityMedium
			}
			if !c.Target.Valid() {
				c.Target = types.TargetBoth
			}
			merged = append(merged, c)
		}
		logging.AnalysisDebug("%s reported %d conflicts", a.Name(), len(results[i]))
	}
	return Normalize(merged), nil
}

// Normalize deduplicates by (kind, path), keeping the most severe copy, and
// sorts by severity (desc), path, then kind.
func Normalize(cs []types.Conflict) []types.Conflict {
	byKey := make(map[types.ConflictKey]int)
	var out []types.Conflict
	for _, c := range cs {
		if i, ok := byKey[c.Key()]; ok {
			if c.Severity.Rank() > out[i].Severity.Rank() {
				out[i] = c
			}
			continue
		}
		byKey[c.Key()] = len(out)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Kind < b.Kind
	})
	return out
}
