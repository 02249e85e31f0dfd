package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"forge/internal/evaluator"
	"forge/internal/perception"
	"forge/internal/session"
	"forge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemory(files map[string]string) *session.Memory {
	spec := &types.Specification{
		Title:      "Sales",
		Artifacts:  []string{"App.tsx"},
		Components: []types.ComponentSpec{{Name: "Chart", File: "Chart.tsx"}},
	}
	return session.NewMemory(session.Inputs{Spec: spec}, session.WithArtifacts(files))
}

func registryWith(t *testing.T, name types.SkillName, h Handler) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, r.Register(&Definition{Name: name, Handler: h}))
	return r
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, *Env, *session.Memory, Args) (any, error) { return nil, nil }

	require.NoError(t, r.Register(&Definition{Name: types.SkillFinish, Handler: noop}))
	assert.ErrorIs(t, r.Register(&Definition{Name: types.SkillFinish, Handler: noop}), ErrSkillAlreadyRegistered)
	assert.ErrorIs(t, r.Register(&Definition{Name: "", Handler: noop}), ErrSkillNameEmpty)
	assert.ErrorIs(t, r.Register(&Definition{Name: "dance", Handler: noop}), ErrUnknownSkillName)
	assert.ErrorIs(t, r.Register(&Definition{Name: types.SkillOptimize}), ErrSkillHandlerNil)
	assert.Panics(t, func() { r.MustRegister(&Definition{Name: types.SkillFinish, Handler: noop}) })

	_, ok := r.Lookup(types.SkillFinish)
	assert.True(t, ok)
	assert.Equal(t, 1, r.Count())
}

func TestDefaultRegistryCoversCatalogue(t *testing.T) {
	r := NewDefaultRegistry()
	assert.Len(t, r.Names(), len(types.AllSkills))
	for _, name := range types.AllSkills {
		_, ok := r.Lookup(name)
		assert.True(t, ok, name)
	}
	defs := r.Definitions()
	assert.Equal(t, types.SkillAdjustStyling, defs[0].Name)
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func TestNormalize_IsTotal(t *testing.T) {
	fields := []string{"success", "updated_artifacts", "new_issues", "requires_replan", "message", "error"}
	values := map[string]any{
		"success":           false,
		"updated_artifacts": map[string]any{"App.tsx": "x"},
		"new_issues":        []any{"App.tsx: syntax error"},
		"requires_replan":   true,
		"message":           "m",
		"error":             "e",
	}

	// every subset of the six fields
	for mask := 0; mask < 1<<len(fields); mask++ {
		legacy := map[string]any{}
		for i, f := range fields {
			if mask&(1<<i) != 0 {
				legacy[f] = values[f]
			}
		}
		out := Normalize(legacy, nil)
		assert.NotNil(t, out.UpdatedArtifacts, "mask %b", mask)
		assert.NotNil(t, out.NewIssues, "mask %b", mask)
		if _, has := legacy["success"]; !has {
			assert.True(t, out.Success, "success defaults to true (mask %b)", mask)
		} else {
			assert.False(t, out.Success)
			assert.NotEmpty(t, out.Error)
		}
	}
}

func TestNormalize_Shapes(t *testing.T) {
	tests := []struct {
		name        string
		in          any
		err         error
		wantSuccess bool
		check       func(t *testing.T, out types.SkillOutput)
	}{
		{"nil", nil, nil, true, nil},
		{"nil with error", nil, errors.New("boom"), false, func(t *testing.T, out types.SkillOutput) {
			assert.Equal(t, "boom", out.Error)
		}},
		{"string", "done", nil, true, func(t *testing.T, out types.SkillOutput) {
			assert.Equal(t, "done", out.Message)
		}},
		{"pointer", &types.SkillOutput{Success: true, Message: "p"}, nil, true, nil},
		{"nil pointer", (*types.SkillOutput)(nil), nil, true, nil},
		{"camel case", map[string]any{"updatedArtifacts": map[string]string{"A.tsx": "a"}, "newIssues": "one"}, nil, true,
			func(t *testing.T, out types.SkillOutput) {
				assert.Equal(t, map[string]string{"A.tsx": "a"}, out.UpdatedArtifacts)
				assert.Equal(t, []string{"one"}, out.NewIssues)
			}},
		{"string success", map[string]any{"success": "false"}, nil, false, nil},
		{"string map", map[string]string{"message": "hi"}, nil, true, func(t *testing.T, out types.SkillOutput) {
			assert.Equal(t, "hi", out.Message)
		}},
		{"unsupported", 42, nil, false, func(t *testing.T, out types.SkillOutput) {
			assert.Contains(t, out.Error, "int")
		}},
		{"explicit failure without error", types.SkillOutput{}, nil, false, func(t *testing.T, out types.SkillOutput) {
			assert.NotEmpty(t, out.Error)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Normalize(tt.in, tt.err)
			assert.Equal(t, tt.wantSuccess, out.Success)
			assert.NotNil(t, out.UpdatedArtifacts)
			assert.NotNil(t, out.NewIssues)
			if tt.check != nil {
				tt.check(t, out)
			}
		})
	}
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestDispatch_PartialUpdateLeavesOthersIdentical(t *testing.T) {
	mem := newMemory(map[string]string{
		"App.tsx":   "export default function App() { return null; }\n",
		"Chart.tsx": "export default function Chart() { return <svg />; }\n",
		"theme.css": ".x { color: red; }\n",
	})
	before := mem.Artifacts.Snapshot()

	r := registryWith(t, types.SkillOptimize, func(context.Context, *Env, *session.Memory, Args) (any, error) {
		return types.SkillOutput{Success: true, UpdatedArtifacts: map[string]string{"Chart.tsx": "export default function Chart() { return <g />; }\n"}}, nil
	})
	report, err := NewDispatcher(r, NewEnv(nil, 0)).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillOptimize})
	require.NoError(t, err)
	assert.Equal(t, []string{"Chart.tsx"}, report.Changed)

	after := mem.Artifacts.Snapshot()
	for name, content := range before {
		if name == "Chart.tsx" {
			continue
		}
		assert.Equal(t, content, after[name], "%s must be untouched", name)
	}
}

func TestDispatch_TargetedSkillMergesOnlyItsArtifact(t *testing.T) {
	mem := newMemory(map[string]string{"App.tsx": "app", "Chart.tsx": "chart"})
	r := registryWith(t, types.SkillRegenerateComponent, func(context.Context, *Env, *session.Memory, Args) (any, error) {
		return map[string]any{"updated_artifacts": map[string]any{"Chart.tsx": "chart2", "App.tsx": "clobbered", "../x": "y"}}, nil
	})
	plan := types.Plan{Skill: types.SkillRegenerateComponent, Arguments: map[string]string{types.ArgArtifact: "Chart.tsx"}}

	report, err := NewDispatcher(r, nil).Dispatch(context.Background(), mem, plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chart.tsx"}, report.Changed)
	assert.ElementsMatch(t, []string{"App.tsx", "../x"}, report.Dropped)
	app, _ := mem.Artifacts.Get("App.tsx")
	assert.Equal(t, "app", app)
}

func TestDispatch_ArtifactLimit(t *testing.T) {
	mem := newMemory(map[string]string{"a.ts": "a"})
	r := registryWith(t, types.SkillGenerateInitial, func(context.Context, *Env, *session.Memory, Args) (any, error) {
		return types.SkillOutput{Success: true, UpdatedArtifacts: map[string]string{"a.ts": "a2", "b.ts": "b", "c.ts": "c"}}, nil
	})
	report, err := NewDispatcher(r, &Env{Limit: 2}).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillGenerateInitial})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.ts", "b.ts"}, report.Changed)
	assert.Equal(t, []string{"c.ts"}, report.Dropped)
}

func TestDispatch_ArtifactLimitIsPerInvocation(t *testing.T) {
	mem := newMemory(map[string]string{"a.ts": "a", "b.ts": "b", "c.ts": "c"})
	r := registryWith(t, types.SkillOptimize, func(context.Context, *Env, *session.Memory, Args) (any, error) {
		return types.SkillOutput{Success: true, UpdatedArtifacts: map[string]string{"d.ts": "d"}}, nil
	})
	report, err := NewDispatcher(r, &Env{Limit: 2}).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillOptimize})
	require.NoError(t, err)
	assert.Equal(t, []string{"d.ts"}, report.Changed)
	assert.Empty(t, report.Dropped)
	assert.Equal(t, 4, mem.Artifacts.Len())
}

func TestDispatch_UnregisteredSkill(t *testing.T) {
	mem := newMemory(nil)
	report, err := NewDispatcher(NewRegistry(), nil).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillOptimize})
	require.NoError(t, err)
	assert.False(t, report.Output.Success)
	assert.ErrorIs(t, report.Err, ErrUnregisteredSkill)
	assert.Equal(t, `unregistered skill "optimize"`, report.Output.Error)
	assert.Equal(t, 1, mem.Counters.Failures)
}

func TestDispatch_FailureIsNotFatal(t *testing.T) {
	mem := newMemory(map[string]string{"App.tsx": "app"})
	r := registryWith(t, types.SkillFixImports, func(context.Context, *Env, *session.Memory, Args) (any, error) {
		return types.SkillOutput{UpdatedArtifacts: map[string]string{"App.tsx": "half written"}}, errors.New("generator timed out")
	})
	report, err := NewDispatcher(r, nil).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillFixImports})
	require.NoError(t, err)
	assert.False(t, report.Output.Success)
	assert.Empty(t, report.Changed)
	app, _ := mem.Artifacts.Get("App.tsx")
	assert.Equal(t, "app", app)
}

func TestDispatch_GeneratorLossPropagates(t *testing.T) {
	mem := newMemory(nil)
	report, err := NewDispatcher(nil, NewEnv(nil, 0)).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillGenerateInitial})
	require.Error(t, err)
	assert.ErrorIs(t, err, perception.ErrGeneratorUnavailable)
	assert.False(t, report.Output.Success)
}

func TestDispatch_IssuesAreClassifiedAndResolved(t *testing.T) {
	mem := newMemory(map[string]string{"App.tsx": "app", "Chart.tsx": "chart"})
	mem.Issues.Add(
		types.Issue{Kind: types.IssueImport, Artifact: "Chart.tsx", Message: "unresolved import ./Legend"},
		types.Issue{Kind: types.IssueImport, Artifact: "App.tsx", Message: "unresolved import ./Nav"},
	)
	r := NewRegistry()
	require.NoError(t, r.Register(&Definition{
		Name:     types.SkillFixImports,
		Resolves: []types.IssueKind{types.IssueImport},
		Handler: func(context.Context, *Env, *session.Memory, Args) (any, error) {
			return map[string]any{
				"updated_artifacts": map[string]any{"Chart.tsx": "export default function Chart() { return <svg />; }\n"},
				"new_issues":        []string{"Chart.tsx: type error TS2322 not assignable"},
			}, nil
		},
	}))
	plan := types.Plan{Skill: types.SkillFixImports, Arguments: map[string]string{types.ArgArtifact: "Chart.tsx"}}

	report, err := NewDispatcher(r, nil).Dispatch(context.Background(), mem, plan)
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, types.IssueType, report.Issues[0].Kind)
	assert.Equal(t, "Chart.tsx", report.Issues[0].Artifact)

	imports := mem.Issues.OfKind(types.IssueImport)
	require.Len(t, imports, 1)
	assert.Equal(t, "App.tsx", imports[0].Artifact)
}

func TestDispatch_ResolvedIssuesNeedAMergedArtifact(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		plan      types.Plan
		wantTyped int
	}{
		{
			name:      "reply for another file",
			reply:     "// === FILE: Other.tsx ===\nexport const x = 1;\n",
			plan:      types.Plan{Skill: types.SkillFixTypeErrors, Arguments: map[string]string{types.ArgArtifact: "Chart.tsx"}},
			wantTyped: 1,
		},
		{
			name:      "untargeted reply for another file",
			reply:     "// === FILE: Other.tsx ===\nexport const x = 1;\n",
			plan:      types.Plan{Skill: types.SkillFixTypeErrors},
			wantTyped: 1,
		},
		{
			name:      "legacy reply without files",
			reply:     `{"success": true, "message": "done"}`,
			plan:      types.Plan{Skill: types.SkillFixTypeErrors, Arguments: map[string]string{types.ArgArtifact: "Chart.tsx"}},
			wantTyped: 1,
		},
		{
			name:      "rewritten file",
			reply:     "// === FILE: Chart.tsx ===\nexport default function Chart() { return <svg />; }\n",
			plan:      types.Plan{Skill: types.SkillFixTypeErrors, Arguments: map[string]string{types.ArgArtifact: "Chart.tsx"}},
			wantTyped: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newMemory(map[string]string{
				"App.tsx":   "export default function App() { return null; }\n",
				"Chart.tsx": "export default function Chart(): number { return <svg />; }\n",
			})
			mem.Issues.Add(types.Issue{Kind: types.IssueType, Artifact: "Chart.tsx", Message: "TS2322: Element is not assignable to number"})
			gen := scripted(map[string][]string{"default": {tt.reply}})

			report, err := NewDispatcher(nil, NewEnv(gen, 0)).Dispatch(context.Background(), mem, tt.plan)
			require.NoError(t, err)
			require.True(t, report.Output.Success, report.Output.Error)
			assert.Len(t, mem.Issues.OfKind(types.IssueType), tt.wantTyped)
			assert.Equal(t, tt.wantTyped == 0, evaluator.Evaluate(mem).Satisfactory)
		})
	}
}

func TestDispatch_ChecksTheMergedArtifacts(t *testing.T) {
	gen := scripted(map[string][]string{"default": {
		"// === FILE: Chart.tsx ===\nimport Legend from './Legend';\nexport default function Chart() { return <Legend />; }\n" +
			"// === FILE: Legend.tsx ===\nexport default function Legend() { return null; }\n",
	}})
	mem := newMemory(map[string]string{"App.tsx": "app", "Chart.tsx": "old"})
	plan := types.Plan{Skill: types.SkillRegenerateComponent, Arguments: map[string]string{types.ArgArtifact: "Chart.tsx"}}

	report, err := NewDispatcher(nil, NewEnv(gen, 0)).Dispatch(context.Background(), mem, plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"Legend.tsx"}, report.Dropped)

	// Legend.tsx was dropped, so the import it would have satisfied is unresolved.
	imports := mem.Issues.OfKind(types.IssueImport)
	require.Len(t, imports, 1)
	assert.Equal(t, "Chart.tsx", imports[0].Artifact)
	assert.Contains(t, imports[0].Message, "./Legend")
}

// =============================================================================
// BUILT-IN SKILLS
// =============================================================================

func scripted(replies map[string][]string) *perception.ScriptedGenerator {
	return perception.NewScriptedGenerator(perception.Script{Replies: replies})
}

func TestGenerateInitial(t *testing.T) {
	reply := "Here you go.\n" +
		"// === FILE: App.tsx ===\n" +
		"import Chart from './Chart';\nexport default function App() { return <Chart />; }\n" +
		"// === FILE: Chart.tsx ===\n" +
		"import Legend from './Legend';\nexport default function Chart() { return <svg><Legend /></svg>; }\n" +
		"// === FILE: ../../etc/passwd ===\nroot\n"
	gen := scripted(map[string][]string{"generate_initial": {reply}})
	mem := newMemory(nil)
	d := NewDispatcher(nil, NewEnv(gen, 0))

	report, err := d.Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillGenerateInitial})
	require.NoError(t, err)
	require.True(t, report.Output.Success, report.Output.Error)
	assert.Equal(t, []string{"App.tsx", "Chart.tsx"}, report.Changed)
	assert.Contains(t, report.Output.Message, "dropped")

	imports := mem.Issues.OfKind(types.IssueImport)
	require.Len(t, imports, 1)
	assert.Equal(t, "Chart.tsx", imports[0].Artifact)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "App.tsx, Chart.tsx")
}

func TestGenerateInitial_LegacyReply(t *testing.T) {
	gen := scripted(map[string][]string{"default": {`Sure: {"updated_artifacts": {"App.tsx": "export {}\n"}, "message": "ok"}`}})
	mem := newMemory(nil)
	report, err := NewDispatcher(nil, NewEnv(gen, 0)).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillGenerateInitial})
	require.NoError(t, err)
	assert.True(t, report.Output.Success)
	assert.Equal(t, []string{"App.tsx"}, report.Changed)
}

func TestGenerateInitial_EmptyReplyFails(t *testing.T) {
	gen := scripted(map[string][]string{"default": {"I cannot help with that."}})
	mem := newMemory(nil)
	report, err := NewDispatcher(nil, NewEnv(gen, 0)).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillGenerateInitial})
	require.NoError(t, err)
	assert.False(t, report.Output.Success)
	assert.Equal(t, 0, mem.Artifacts.Len())
}

func TestRegenerateComponent(t *testing.T) {
	gen := scripted(map[string][]string{"regenerate_component": {
		"// === FILE: Chart.tsx ===\nexport default function Chart() { return <svg />; }\n// === FILE: App.tsx ===\nbroken\n",
	}})
	mem := newMemory(map[string]string{"App.tsx": "app", "Chart.tsx": "old"})
	mem.Conflicts.Merge(1, []types.Conflict{{
		Kind: types.KindMissingElement, Path: "Legend", Artifact: "Chart.tsx",
		Severity: types.SeverityHigh, Target: types.TargetImplementation, Description: "Legend is missing",
	}})
	plan := types.Plan{Skill: types.SkillRegenerateComponent, Arguments: map[string]string{types.ArgArtifact: "Chart.tsx"}}

	report, err := NewDispatcher(nil, NewEnv(gen, 0)).Dispatch(context.Background(), mem, plan)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chart.tsx"}, report.Changed)
	assert.Equal(t, []string{"App.tsx"}, report.Dropped)
	assert.Contains(t, gen.Requests()[0].Prompt, "Legend is missing")
	assert.Contains(t, gen.Requests()[0].Prompt, "Return only Chart.tsx")

	bare := types.Plan{Skill: types.SkillRegenerateComponent}
	report, err = NewDispatcher(nil, NewEnv(gen, 0)).Dispatch(context.Background(), mem, bare)
	require.NoError(t, err)
	assert.False(t, report.Output.Success)
}

func TestValidate(t *testing.T) {
	mem := newMemory(map[string]string{
		"App.tsx":   "import Chart from './Chart';\nexport default function App() { return <Chart />; }\n",
		"Chart.tsx": "export default function Chart() { return <svg>; }\n",
	})
	report, err := NewDispatcher(nil, nil).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillValidate})
	require.NoError(t, err)
	require.True(t, report.Output.Success)

	structural := mem.Issues.OfKind(types.IssueStructural)
	require.NotEmpty(t, structural)
	assert.Equal(t, "Chart.tsx", structural[0].Artifact)
	assert.Empty(t, mem.Issues.OfKind(types.IssueImport))
}

func TestValidate_TypeCheckerHook(t *testing.T) {
	tc := TypeCheckFunc(func(ctx context.Context, artifacts map[string]string) ([]types.Issue, error) {
		return []types.Issue{{Artifact: "App.tsx", Message: "TS2322: string is not assignable to number"}}, nil
	})
	env := &Env{Checker: NewStaticChecker(nil, tc)}
	mem := newMemory(map[string]string{"App.tsx": "export const n: number = 1;\n"})

	_, err := NewDispatcher(nil, env).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillValidate})
	require.NoError(t, err)
	typed := mem.Issues.OfKind(types.IssueType)
	require.Len(t, typed, 1)
	assert.Equal(t, "App.tsx", typed[0].Artifact)
}

func TestResolveConflicts(t *testing.T) {
	mem := newMemory(map[string]string{"App.tsx": "app"})
	mem.Conflicts.Merge(1, []types.Conflict{
		{Kind: types.KindSchemaFieldNonexistent, Path: "Chart.bindings.dataKey", Severity: types.SeverityHigh, Target: types.TargetSpec, Description: "label is not in the data"},
		{Kind: types.KindPropMismatch, Path: "Chart.props.color", Severity: types.SeverityLow, Target: types.TargetSpec, Description: "undeclared"},
		{Kind: types.KindMissingElement, Path: "Chart", Severity: types.SeverityHigh, Target: types.TargetImplementation, Description: "missing"},
	})
	d := NewDispatcher(nil, nil)

	report, err := d.Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillResolveConflicts})
	require.NoError(t, err)
	assert.True(t, report.Output.Success)

	patches := mem.Ledger.Patches()
	require.Len(t, patches, 1)
	assert.Equal(t, types.TargetSpec, patches[0].Target)
	assert.Equal(t, types.PatchDelete, patches[0].Operation)
	requests := mem.Ledger.ChangeRequestsFor(types.AgentSpec)
	require.Len(t, requests, 1)
	assert.Nil(t, requests[0].Accepted)
	assert.Equal(t, types.SeverityHigh, requests[0].Priority)

	// idempotent per conflict
	_, err = d.Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillResolveConflicts})
	require.NoError(t, err)
	assert.Len(t, mem.Ledger.Patches(), 1)
}

func TestIssueFixerSkipsWithoutIssues(t *testing.T) {
	gen := scripted(nil)
	mem := newMemory(map[string]string{"App.tsx": "app"})
	report, err := NewDispatcher(nil, NewEnv(gen, 0)).Dispatch(context.Background(), mem, types.Plan{Skill: types.SkillFixTypeErrors})
	require.NoError(t, err)
	assert.True(t, report.Output.Success)
	assert.Empty(t, gen.Requests())
}

func TestIssueStrings(t *testing.T) {
	out := issueStrings([]types.Issue{
		{Kind: types.IssueType, Artifact: "A.tsx", Message: "bad"},
		{Kind: types.IssueStructural, Message: "syntax error at line 1, column 2"},
	})
	assert.Equal(t, []string{"A.tsx: type error: bad", "syntax error at line 1, column 2"}, out)
	for i, s := range out {
		is := types.ClassifyIssue(s, []string{"A.tsx"})
		assert.True(t, strings.Contains(fmt.Sprint(is.Kind), []string{"type", "structural"}[i]))
	}
}
