package session

import (
	"testing"
	"time"

	"forge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactSetApplyIsPartial(t *testing.T) {
	s := NewArtifactSet()
	s.Apply(map[string]string{"App.tsx": "a", "Chart.tsx": "c"})

	changed := s.Apply(map[string]string{"Chart.tsx": "c2", "App.tsx": "a"})
	assert.Equal(t, []string{"Chart.tsx"}, changed)

	app, _ := s.Get("App.tsx")
	assert.Equal(t, "a", app)
	assert.Equal(t, []string{"App.tsx", "Chart.tsx"}, s.Names())

	snap := s.Snapshot()
	snap["App.tsx"] = "mutated"
	app, _ = s.Get("App.tsx")
	assert.Equal(t, "a", app)
}

func conflict(kind types.ConflictKind, path string, sev types.Severity) types.Conflict {
	return types.Conflict{Kind: kind, Path: path, Severity: sev, Target: types.TargetImplementation, Source: "structural"}
}

func TestConflictSetMerge(t *testing.T) {
	s := NewConflictSet()

	stats := s.Merge(1, []types.Conflict{
		conflict(types.KindMissingElement, "Chart", types.SeverityHigh),
		conflict(types.KindPropMismatch, "Chart.props.title", types.SeverityMedium),
		conflict(types.KindPropMismatch, "Chart.props.title", types.SeverityLow),
	})
	require.Len(t, stats.Opened, 2)
	assert.Equal(t, 2, s.Len())
	firstID := stats.Opened[0].ID
	assert.NotEmpty(t, firstID)
	assert.Equal(t, 1, stats.Opened[0].DetectedStep)

	// missing element fixed; prop mismatch persists
	stats = s.Merge(2, []types.Conflict{conflict(types.KindPropMismatch, "Chart.props.title", types.SeverityHigh)})
	assert.Empty(t, stats.Opened)
	assert.Equal(t, 1, stats.Kept)
	assert.Equal(t, 1, stats.Resolved)
	assert.Equal(t, 2, s.Len(), "resolved conflicts stay in history")

	open := s.Open()
	require.Len(t, open, 1)
	assert.Equal(t, types.SeverityHigh, open[0].Severity)

	// regression reopens under the original ID
	stats = s.Merge(3, []types.Conflict{
		conflict(types.KindMissingElement, "Chart", types.SeverityHigh),
		conflict(types.KindPropMismatch, "Chart.props.title", types.SeverityHigh),
	})
	require.Len(t, stats.Opened, 1)
	assert.Equal(t, firstID, stats.Opened[0].ID)
	assert.Equal(t, 1, stats.Opened[0].DetectedStep)
}

func TestConflictSetOrdering(t *testing.T) {
	s := NewConflictSet()
	s.Merge(1, []types.Conflict{
		conflict(types.KindPropMismatch, "b", types.SeverityLow),
		conflict(types.KindPropMismatch, "c", types.SeverityHigh),
		conflict(types.KindPropMismatch, "a", types.SeverityHigh),
	})
	var paths []string
	for _, c := range s.Open() {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"a", "c", "b"}, paths)
	assert.Len(t, s.OpenAtLeast(types.SeverityMedium), 2)
}

func TestIssueQueue(t *testing.T) {
	q := NewIssueQueue()
	q.Add(
		types.Issue{Kind: types.IssueImport, Artifact: "App.tsx", Message: "cannot find module './X'"},
		types.Issue{Kind: types.IssueImport, Artifact: "Chart.tsx", Message: "cannot find module './Y'"},
		types.Issue{Kind: types.IssueType, Message: "not assignable"},
		types.Issue{Kind: types.IssueType, Message: "not assignable"},
		types.Issue{Kind: types.IssueOther},
	)
	assert.Equal(t, 3, q.Len())

	assert.Equal(t, 1, q.Clear(types.IssueImport, "App.tsx"))
	assert.Len(t, q.OfKind(types.IssueImport), 1)
	assert.True(t, q.Has(types.IssueType))

	assert.Equal(t, 1, q.Clear(types.IssueType, "Chart.tsx"), "unbound issues clear with any artifact")
	assert.False(t, q.Has(types.IssueType))
}

func TestNewMemory(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	spec := &types.Specification{Artifacts: []string{"App.tsx", "Chart.tsx"}}

	m := NewMemory(Inputs{Spec: spec},
		WithClock(func() time.Time { return now }),
		WithArtifacts(map[string]string{"App.tsx": "x"}),
	)

	assert.NotEmpty(t, m.ID)
	assert.Equal(t, now, m.CreatedAt)
	assert.NotNil(t, m.Ledger)
	assert.Equal(t, []string{"Chart.tsx"}, m.MissingArtifacts())

	empty := NewMemory(Inputs{})
	assert.Empty(t, empty.MissingArtifacts())
}
