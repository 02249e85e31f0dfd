// Package planner chooses the next skill for the orchestration loop.
//
// Planning is a pure function of session memory: the same snapshot always
// yields the same Plan. The decision order is
//
//  1. nothing generated yet            -> generate_initial
//  2. no progress for StallLimit steps -> finish
//  3. type / import / structural issues -> fix_type_errors / fix_imports /
//     regenerate_component (fix before regenerate)
//  4. implementation conflicts >= medium naming an artifact -> regenerate_component
//     for the artifact with the most severe conflict
//  5. required artifacts still missing -> regenerate_component for the first
//  6. data binding issues              -> fix_data_binding
//  7. spec-side conflicts >= medium without a ledger patch -> resolve_conflicts
//  8. styling issues                   -> adjust_styling
//  9. artifacts never analyzed         -> validate
//  10. otherwise                       -> finish
//
// The planner never asks for the whole artifact set to be regenerated.
package planner

import (
	"fmt"
	"sort"

	"forge/internal/session"
	"forge/internal/types"
)

// DefaultStallLimit is the number of consecutive no-change steps after which
// the planner gives up.
const DefaultStallLimit = 2

// Planner is stateless apart from its configuration.
type Planner struct {
	stallLimit int
}

// New creates a planner. stallLimit <= 0 disables stall detection.
func New(stallLimit int) *Planner {
	return &Planner{stallLimit: stallLimit}
}

func plan(skill types.SkillName, reasoning, outcome string, args map[string]string) types.Plan {
	if args == nil {
		args = map[string]string{}
	}
	return types.Plan{Skill: skill, Reasoning: reasoning, Arguments: args, ExpectedOutcome: outcome}
}

func scoped(artifact, reason string) map[string]string {
	args := map[string]string{types.ArgReason: reason}
	if artifact != "" {
		args[types.ArgArtifact] = artifact
	}
	return args
}

// Next returns the plan for the next step.
func (p *Planner) Next(mem *session.Memory) types.Plan {
	if mem.Artifacts.Len() == 0 {
		return plan(types.SkillGenerateInitial,
			"no artifacts exist yet",
			"every required artifact is generated", nil)
	}

	if p.stallLimit > 0 && mem.Counters.NoChangeStreak >= p.stallLimit {
		return plan(types.SkillFinish,
			fmt.Sprintf("no artifact changed in the last %d steps", mem.Counters.NoChangeStreak),
			"loop stops with the current best effort", nil)
	}

	if a, n, ok := issueTarget(mem, types.IssueType); ok {
		return plan(types.SkillFixTypeErrors,
			fmt.Sprintf("%d type issue(s) outstanding%s", n, in(a)),
			"type errors are fixed", scoped(a, "type errors"))
	}
	if a, n, ok := issueTarget(mem, types.IssueImport); ok {
		return plan(types.SkillFixImports,
			fmt.Sprintf("%d import issue(s) outstanding%s", n, in(a)),
			"every import resolves", scoped(a, "import errors"))
	}
	if a, n, ok := issueTarget(mem, types.IssueStructural); ok && a != "" {
		return plan(types.SkillRegenerateComponent,
			fmt.Sprintf("%d structural issue(s)%s", n, in(a)),
			a+" parses and matches its specified structure", scoped(a, "structural issues"))
	}

	if a, worst, n, ok := conflictTarget(mem); ok {
		return plan(types.SkillRegenerateComponent,
			fmt.Sprintf("%d open conflict(s) up to %s severity%s", n, worst, in(a)),
			"conflicts implicating "+a+" are resolved", scoped(a, "implementation conflicts"))
	}

	if missing := mem.MissingArtifacts(); len(missing) > 0 {
		return plan(types.SkillRegenerateComponent,
			fmt.Sprintf("required artifact %s is missing", missing[0]),
			missing[0]+" exists", scoped(missing[0], "missing artifact"))
	}

	if a, n, ok := issueTarget(mem, types.IssueDataBinding); ok {
		return plan(types.SkillFixDataBinding,
			fmt.Sprintf("%d data binding issue(s)%s", n, in(a)),
			"bindings match the schema", scoped(a, "data binding issues"))
	}

	if n := unpatchedSpecConflicts(mem); n > 0 {
		return plan(types.SkillResolveConflicts,
			fmt.Sprintf("%d specification-side conflict(s) have no proposed patch", n),
			"a patch and change request exist for each", nil)
	}

	if a, n, ok := issueTarget(mem, types.IssueStyling); ok {
		return plan(types.SkillAdjustStyling,
			fmt.Sprintf("%d styling issue(s)%s", n, in(a)),
			"styling issues are addressed", scoped(a, "styling issues"))
	}

	if mem.Counters.Analyses == 0 {
		return plan(types.SkillValidate,
			"artifacts have not been checked yet",
			"static checks and analysis run", nil)
	}

	return plan(types.SkillFinish,
		"no blocking issues or conflicts remain",
		"loop ends", nil)
}

func in(artifact string) string {
	if artifact == "" {
		return ""
	}
	return " in " + artifact
}

// issueTarget returns the first artifact (by name) with issues of kind, the
// number of such issues, and whether any exist. Artifact-less issues count
// but do not pick a target unless nothing else does.
func issueTarget(mem *session.Memory, kind types.IssueKind) (string, int, bool) {
	issues := mem.Issues.OfKind(kind)
	if len(issues) == 0 {
		return "", 0, false
	}
	var names []string
	for _, is := range issues {
		if is.Artifact != "" {
			names = append(names, is.Artifact)
		}
	}
	if len(names) == 0 {
		return "", len(issues), true
	}
	sort.Strings(names)
	return names[0], len(issues), true
}

// conflictTarget picks the artifact whose worst open implementation conflict
// is most severe. Ties go to the artifact with more conflicts, then by name.
func conflictTarget(mem *session.Memory) (string, types.Severity, int, bool) {
	type tally struct {
		worst types.Severity
		count int
	}
	by := make(map[string]*tally)
	for _, c := range mem.Conflicts.OpenAtLeast(types.SeverityMedium) {
		if c.Artifact == "" || !c.Target.Touches(types.TargetImplementation) {
			continue
		}
		t, ok := by[c.Artifact]
		if !ok {
			t = &tally{}
			by[c.Artifact] = t
		}
		t.count++
		if c.Severity.Rank() > t.worst.Rank() {
			t.worst = c.Severity
		}
	}
	if len(by) == 0 {
		return "", "", 0, false
	}
	names := make([]string, 0, len(by))
	for n := range by {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := by[names[i]], by[names[j]]
		if a.worst.Rank() != b.worst.Rank() {
			return a.worst.Rank() > b.worst.Rank()
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return names[i] < names[j]
	})
	best := by[names[0]]
	return names[0], best.worst, best.count, true
}

func unpatchedSpecConflicts(mem *session.Memory) int {
	n := 0
	for _, c := range mem.Conflicts.OpenAtLeast(types.SeverityMedium) {
		if c.Target.Touches(types.TargetSpec) && !mem.Ledger.HasPatchFor(c.ID) {
			n++
		}
	}
	return n
}
