package skills

import (
	"context"
	"fmt"
	"strings"

	"forge/internal/articulation"
	"forge/internal/logging"
	"forge/internal/perception"
	"forge/internal/session"
	"forge/internal/types"
)

// =============================================================================
// BUILT-IN SKILLS
// =============================================================================

const systemPrompt = "You are the implementation agent of a UI generator. " +
	"You write React components in TypeScript (TSX). Follow the specification exactly " +
	"and reply with complete files in the requested marker format."

var allIssueKinds = []types.IssueKind{
	types.IssueType, types.IssueImport, types.IssueStructural,
	types.IssueDataBinding, types.IssueStyling, types.IssueOther,
}

var bindingConflictKinds = map[types.ConflictKind]bool{
	types.KindIncorrectDataBinding:       true,
	types.KindSchemaFieldNonexistent:     true,
	types.KindTypeMismatch:               true,
	types.KindNumericCategoricalMismatch: true,
}

func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Name:        types.SkillGenerateInitial,
			Description: "Generate every required artifact from the specification",
			Resolves:    allIssueKinds,
			Handler:     generateInitial,
		},
		{
			Name:        types.SkillFixTypeErrors,
			Description: "Fix reported type errors",
			Resolves:    []types.IssueKind{types.IssueType},
			Handler:     issueFixer(types.SkillFixTypeErrors, types.IssueType, "Fix the type errors listed below."),
		},
		{
			Name:        types.SkillFixImports,
			Description: "Fix unresolved or wrong imports",
			Resolves:    []types.IssueKind{types.IssueImport},
			Handler:     issueFixer(types.SkillFixImports, types.IssueImport, "Fix the import problems listed below. Import only files that exist or packages the specification lists."),
		},
		{
			Name:        types.SkillRegenerateComponent,
			Description: "Regenerate one artifact against its conflicts",
			Resolves:    []types.IssueKind{types.IssueStructural, types.IssueType, types.IssueImport, types.IssueDataBinding},
			Handler:     regenerateComponent,
		},
		{
			Name:        types.SkillFixDataBinding,
			Description: "Align data bindings with the schema",
			Resolves:    []types.IssueKind{types.IssueDataBinding},
			Handler:     fixDataBinding,
		},
		{
			Name:        types.SkillAdjustStyling,
			Description: "Apply styling fixes",
			Resolves:    []types.IssueKind{types.IssueStyling},
			Handler:     issueFixer(types.SkillAdjustStyling, types.IssueStyling, "Adjust styling as described below without changing behavior."),
		},
		{
			Name:        types.SkillOptimize,
			Description: "Improve readability and performance without behavior changes",
			Handler:     optimize,
		},
		{
			Name:        types.SkillResolveConflicts,
			Description: "Propose specification patches for spec-side conflicts",
			Handler:     resolveConflicts,
		},
		{
			Name:                  types.SkillValidate,
			Description:           "Run static checks over the current artifacts",
			Resolves:              []types.IssueKind{types.IssueStructural, types.IssueImport, types.IssueType},
			Rechecks:              true,
			TouchesImplementation: true,
			Handler:               validate,
		},
		{
			Name:        types.SkillFinish,
			Description: "Stop the loop",
			Handler: func(context.Context, *Env, *session.Memory, Args) (any, error) {
				return types.SkillOutput{Success: true, Message: "finished"}, nil
			},
		},
	}
}

// generatorTask is what a generator-backed skill asks for.
type generatorTask struct {
	skill     types.SkillName
	goal      string
	focus     string
	issues    []types.Issue
	conflicts []types.Conflict
}

func goalWithArgs(goal string, args Args) string {
	if f := args[types.ArgFocus]; f != "" {
		goal += "\nFocus: " + f
	}
	if r := args[types.ArgReason]; r != "" {
		goal += "\nReason: " + r
	}
	return goal
}

func runGenerator(ctx context.Context, env *Env, mem *session.Memory, task generatorTask) (any, error) {
	if env == nil || env.Generator == nil {
		return nil, perception.Unavailable("no generator configured for %s", task.skill)
	}

	prompt := articulation.AssemblePrompt(articulation.PromptContext{
		Skill:     task.skill,
		Goal:      task.goal,
		Spec:      mem.Inputs.Spec,
		Schema:    mem.Inputs.Schema,
		Artifacts: mem.Artifacts.Snapshot(),
		Focus:     task.focus,
		Issues:    task.issues,
		Conflicts: task.conflicts,
	})
	reply, err := env.Generator.Generate(ctx, perception.Request{
		Skill:  string(task.skill),
		System: systemPrompt,
		Prompt: prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	parsed := articulation.ParseArtifacts(reply, env.limit())
	for _, w := range parsed.Warnings {
		logging.Get(logging.CategoryArticulation).Warn("%s reply: %s", task.skill, w)
	}

	var out types.SkillOutput
	if len(parsed.Artifacts) == 0 {
		legacy, ok := articulation.DecodeLegacyReply(reply)
		if !ok {
			return types.Failed("generator reply contained no files"), nil
		}
		out = Normalize(legacy, nil)
	} else {
		out = types.SkillOutput{
			Success:          true,
			UpdatedArtifacts: parsed.Map(),
			Message:          fmt.Sprintf("%s wrote %s", task.skill, strings.Join(parsed.Names(), ", ")),
		}
	}
	if len(parsed.Warnings) > 0 {
		out.Message += fmt.Sprintf(" (%d reply entries dropped)", len(parsed.Warnings))
	}
	return out, nil
}

func issuesFor(mem *session.Memory, artifact string, kinds ...types.IssueKind) []types.Issue {
	want := make(map[types.IssueKind]bool)
	for _, k := range kinds {
		want[k] = true
	}
	var out []types.Issue
	for _, is := range mem.Issues.Outstanding() {
		if len(want) > 0 && !want[is.Kind] {
			continue
		}
		if artifact != "" && is.Artifact != "" && is.Artifact != artifact {
			continue
		}
		out = append(out, is)
	}
	return out
}

func generateInitial(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error) {
	goal := "Create the implementation for the specification."
	if required := mem.Inputs.Spec.RequiredArtifacts(); len(required) > 0 {
		goal += " Required files: " + strings.Join(required, ", ") + "."
	}
	return runGenerator(ctx, env, mem, generatorTask{
		skill: types.SkillGenerateInitial,
		goal:  goalWithArgs(goal, args),
	})
}

func issueFixer(skill types.SkillName, kind types.IssueKind, goal string) Handler {
	return func(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error) {
		focus := args[types.ArgArtifact]
		issues := issuesFor(mem, focus, kind)
		if len(issues) == 0 {
			return types.SkillOutput{Success: true, Message: fmt.Sprintf("no %s issues outstanding", kind)}, nil
		}
		return runGenerator(ctx, env, mem, generatorTask{
			skill:  skill,
			goal:   goalWithArgs(goal, args),
			focus:  focus,
			issues: issues,
		})
	}
}

func regenerateComponent(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error) {
	focus := args[types.ArgArtifact]
	if focus == "" {
		return types.Failed("regenerate_component needs an artifact argument"), nil
	}
	var conflicts []types.Conflict
	for _, c := range mem.Conflicts.Open() {
		if c.Artifact == focus && c.Target.Touches(types.TargetImplementation) {
			conflicts = append(conflicts, c)
		}
	}
	goal := fmt.Sprintf("Regenerate %s so it satisfies the specification and resolves the conflicts below. "+
		"Keep its exports stable so other files keep working.", focus)
	return runGenerator(ctx, env, mem, generatorTask{
		skill:     types.SkillRegenerateComponent,
		goal:      goalWithArgs(goal, args),
		focus:     focus,
		issues:    issuesFor(mem, focus),
		conflicts: conflicts,
	})
}

func fixDataBinding(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error) {
	focus := args[types.ArgArtifact]
	var conflicts []types.Conflict
	for _, c := range mem.Conflicts.Open() {
		if bindingConflictKinds[c.Kind] && c.Target.Touches(types.TargetImplementation) && (focus == "" || c.Artifact == focus) {
			conflicts = append(conflicts, c)
		}
	}
	issues := issuesFor(mem, focus, types.IssueDataBinding)
	if len(issues) == 0 && len(conflicts) == 0 {
		return types.SkillOutput{Success: true, Message: "no data binding problems outstanding"}, nil
	}
	return runGenerator(ctx, env, mem, generatorTask{
		skill:     types.SkillFixDataBinding,
		goal:      goalWithArgs("Bind every component to the data fields named in the specification, using the column names and types listed.", args),
		focus:     focus,
		issues:    issues,
		conflicts: conflicts,
	})
}

func optimize(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error) {
	if mem.Artifacts.Len() == 0 {
		return types.Failed("nothing to optimize"), nil
	}
	return runGenerator(ctx, env, mem, generatorTask{
		skill: types.SkillOptimize,
		goal:  goalWithArgs("Improve readability and rendering performance without changing behavior or exports.", args),
		focus: args[types.ArgArtifact],
	})
}

func validate(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error) {
	snapshot := mem.Artifacts.Snapshot()
	issues, err := env.checker().Check(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("validate: %w", err)
	}
	if focus := args[types.ArgArtifact]; focus != "" {
		var scoped []types.Issue
		for _, is := range issues {
			if is.Artifact == focus {
				scoped = append(scoped, is)
			}
		}
		issues = scoped
	}
	return types.SkillOutput{
		Success:   true,
		NewIssues: issueStrings(issues),
		Message:   fmt.Sprintf("validated %d artifacts, %d issues", len(snapshot), len(issues)),
	}, nil
}

// resolveConflicts records a specification patch and a change request for
// each open spec-side conflict that has none yet. Nothing is applied.
func resolveConflicts(ctx context.Context, env *Env, mem *session.Memory, args Args) (any, error) {
	proposed := 0
	for _, c := range mem.Conflicts.OpenAtLeast(types.SeverityMedium) {
		if !c.Target.Touches(types.TargetSpec) || mem.Ledger.HasPatchFor(c.ID) {
			continue
		}
		patch, err := mem.Ledger.AddPatch(types.ConflictPatch{
			Target:                types.TargetSpec,
			Operation:             patchOperation(c.Kind),
			Path:                  c.Path,
			Value:                 c.Description,
			OriginatingConflictID: c.ID,
			ProposedBy:            types.AgentOrchestrator,
		})
		if err != nil {
			return nil, fmt.Errorf("record patch for %s: %w", c.Path, err)
		}
		if _, err := mem.Ledger.AddChangeRequest(types.ChangeRequest{
			From:            types.AgentOrchestrator,
			To:              types.AgentSpec,
			Description:     c.Description,
			SuggestedAction: fmt.Sprintf("%s %s (patch %s)", patch.Operation, c.Path, patch.ID),
			Priority:        c.Severity,
		}); err != nil {
			return nil, fmt.Errorf("record change request for %s: %w", c.Path, err)
		}
		proposed++
	}
	return types.SkillOutput{
		Success: true,
		Message: fmt.Sprintf("proposed %d specification patches", proposed),
	}, nil
}

func patchOperation(kind types.ConflictKind) types.PatchOperation {
	switch kind {
	case types.KindStructuralMismatch, types.KindPropMismatch:
		return types.PatchAdd
	case types.KindSchemaFieldNonexistent:
		return types.PatchDelete
	}
	return types.PatchModify
}
