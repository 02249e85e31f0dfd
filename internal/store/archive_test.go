package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"forge/internal/orchestrator"
	"forge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "nested", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func result(id string, started time.Time, outcome orchestrator.State) orchestrator.Result {
	conflict := types.Conflict{
		ID: id + "-c1", Kind: types.KindMissingElement, Source: "structural",
		Severity: types.SeverityHigh, Target: types.TargetImplementation,
		Path: "Chart", Status: types.ConflictOpen, Description: "component Chart is not rendered",
	}
	return orchestrator.Result{
		SessionID: id,
		Title:     "Sales",
		Outcome:   outcome,
		Steps:     2,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Artifacts: map[string]string{"App.tsx": "export default function App() {}\n"},
		Conflicts: []types.Conflict{conflict},
		Open:      []types.Conflict{conflict},
	}
}

func TestArchive_SaveListLoad(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, a.Save(ctx, result("s1", base, orchestrator.StateStepLimit)))
	require.NoError(t, a.Save(ctx, result("s2", base.Add(time.Hour), orchestrator.StateSatisfactory)))

	list, err := a.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "s2", list[0].ID, "newest first")
	assert.Equal(t, "satisfactory", list[0].Outcome)
	assert.Equal(t, 1, list[1].OpenConflicts)
	assert.Equal(t, 1, list[1].Artifacts)
	assert.Equal(t, 1500*time.Millisecond, list[1].Duration)
	assert.True(t, list[1].StartedAt.Equal(base))

	limited, err := a.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := a.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Sales", got.Title)
	assert.Equal(t, orchestrator.StateStepLimit, got.Outcome)
	assert.Equal(t, "export default function App() {}\n", got.Artifacts["App.tsx"])
	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, types.KindMissingElement, got.Conflicts[0].Kind)
}

func TestArchive_SaveReplaces(t *testing.T) {
	a := openTemp(t)
	ctx := context.Background()
	r := result("s1", time.Now(), orchestrator.StateStepLimit)
	require.NoError(t, a.Save(ctx, r))

	r.Outcome = orchestrator.StateSatisfactory
	r.Artifacts = map[string]string{"App.tsx": "v2", "Chart.tsx": "c"}
	r.Open = nil
	require.NoError(t, a.Save(ctx, r))

	list, err := a.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "satisfactory", list[0].Outcome)
	assert.Equal(t, 2, list[0].Artifacts)
	assert.Equal(t, 0, list[0].OpenConflicts)

	counts, err := a.ConflictCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"missing_element": 1}, counts)
}

func TestArchive_LoadMissing(t *testing.T) {
	a := openTemp(t)
	_, err := a.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_ReopenKeepsSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Save(context.Background(), result("s1", time.Now(), orchestrator.StateFinished)))
	require.NoError(t, a.Close())

	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()
	list, err := b.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, path, b.Path())
}

func TestMigrations_AddMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE sessions (id TEXT PRIMARY KEY, title TEXT, outcome TEXT, steps INTEGER,
		open_conflicts INTEGER, started_at INTEGER, duration_ms INTEGER, result_json TEXT)`)
	require.NoError(t, err)

	has, err := columnExists(db, "sessions", "artifact_count")
	require.NoError(t, err)
	require.False(t, has)

	require.NoError(t, runMigrations(db))
	has, err = columnExists(db, "sessions", "artifact_count")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, runMigrations(db), "migrations are idempotent")
	assert.False(t, tableExists(db, "nope"))
	require.NoError(t, db.Close())
}
