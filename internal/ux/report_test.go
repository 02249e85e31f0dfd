package ux

import (
	"strings"
	"testing"
	"time"

	"forge/internal/ledger"
	"forge/internal/orchestrator"
	"forge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() orchestrator.Result {
	open := types.Conflict{
		ID: "c1", Kind: types.KindSchemaFieldNonexistent, Severity: types.SeverityHigh,
		Target: types.TargetSpec, Path: "Chart.bindings.dataKey", Description: "field profit | missing",
	}
	return orchestrator.Result{
		SessionID: "s-1",
		Title:     "Sales dashboard",
		Outcome:   orchestrator.StateStepLimit,
		Steps:     2,
		Duration:  1234 * time.Millisecond,
		Artifacts: map[string]string{"Chart.tsx": "export default function Chart() {}\n", "App.tsx": "x"},
		Open:      []types.Conflict{open},
		Conflicts: []types.Conflict{open},
		Issues:    []types.Issue{{Kind: types.IssueStyling, Message: "spacing is off"}},
		Ledger: ledger.Snapshot{
			Patches: []types.ConflictPatch{{Target: types.TargetSpec, Operation: types.PatchDelete, Path: "Chart.bindings.dataKey", Value: "drop it"}},
		},
		Reports: []orchestrator.StepReport{
			{Step: 1, Plan: types.Plan{Skill: types.SkillGenerateInitial}, Success: true, Changed: []string{"App.tsx", "Chart.tsx"}, Analyzed: true, Opened: 1},
			{Step: 2, Plan: types.Plan{Skill: types.SkillResolveConflicts}, Success: false, Error: "boom"},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleResult(), false)
	assert.True(t, strings.HasPrefix(md, "# Sales dashboard\n"))
	assert.Contains(t, md, "**Outcome:** step_limit")
	assert.Contains(t, md, "| 1 | generate_initial | ok | App.tsx, Chart.tsx | +1 / -0 |")
	assert.Contains(t, md, "failed: boom")
	assert.Contains(t, md, `field profit \| missing`)
	assert.Contains(t, md, "[styling] spacing is off")
	assert.Contains(t, md, "delete `Chart.bindings.dataKey` on SPEC")
	assert.Less(t, strings.Index(md, "`App.tsx`"), strings.Index(md, "`Chart.tsx`"))
	assert.NotContains(t, md, "```tsx")

	full := Markdown(sampleResult(), true)
	assert.Contains(t, full, "```tsx\nexport default function Chart() {}\n```")
}

func TestMarkdown_Empty(t *testing.T) {
	md := Markdown(orchestrator.Result{}, false)
	assert.Contains(t, md, "# Session")
	assert.Contains(t, md, "## Open conflicts\n\nNone.")
	assert.NotContains(t, md, "## Steps")
}

func TestRender(t *testing.T) {
	plain, err := Render(sampleResult(), RenderOptions{Plain: true})
	require.NoError(t, err)
	assert.Equal(t, Markdown(sampleResult(), false), plain)

	styled, err := Render(sampleResult(), RenderOptions{Style: "notty", Width: 80})
	require.NoError(t, err)
	assert.Contains(t, styled, "Sales dashboard")
}

func TestSummaryAndTables(t *testing.T) {
	s := NewStyles(DarkTheme())
	sum := Summary(sampleResult(), s)
	assert.Contains(t, sum, "step_limit")
	assert.Contains(t, sum, "1 open conflict(s)")

	assert.Contains(t, ConflictTable(nil, s), "No conflicts.")
	table := ConflictTable(sampleResult().Open, s)
	assert.Contains(t, table, "Chart.bindings.dataKey")
	assert.Contains(t, table, "schema_field_nonexistent")

	assert.Empty(t, NewTable("t", "a").View(s))
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("COLORFGBG", "15;0")
	assert.True(t, DetectTheme().IsDark)
	t.Setenv("COLORFGBG", "")
	t.Setenv("FORGE_DARK_MODE", "")
	assert.False(t, DetectTheme().IsDark)
}
