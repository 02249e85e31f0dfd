// Package evaluator decides whether a session's artifacts are acceptable.
// Evaluate is a pure predicate over session memory: it reads, never writes,
// and returns the same Evaluation for the same state.
package evaluator

import (
	"fmt"
	"strings"

	"forge/internal/session"
	"forge/internal/types"
)

// Evaluation is the outcome of one self-evaluation.
type Evaluation struct {
	Satisfactory bool `json:"satisfactory"`
	// Issues lists every blocking reason in a stable order.
	Issues           []string         `json:"issues"`
	NextActionHint   types.SkillName  `json:"next_action_hint,omitempty"`
	TypeErrors       []string         `json:"type_errors"`
	ImportErrors     []string         `json:"import_errors"`
	Conflicts        []types.Conflict `json:"conflicts"`
	MissingArtifacts []string         `json:"missing_artifacts"`
	Reasoning        string           `json:"reasoning"`
}

// Evaluate checks mem. The session is satisfactory when every required
// artifact exists, no open high severity conflict remains, and no type or
// import issue is outstanding.
func Evaluate(mem *session.Memory) Evaluation {
	ev := Evaluation{
		Issues:           []string{},
		TypeErrors:       []string{},
		ImportErrors:     []string{},
		Conflicts:        []types.Conflict{},
		MissingArtifacts: []string{},
	}
	if mem == nil {
		ev.Issues = append(ev.Issues, "no session state")
		ev.NextActionHint = types.SkillGenerateInitial
		ev.Reasoning = "nothing to evaluate"
		return ev
	}

	if mem.Artifacts.Len() == 0 {
		ev.Issues = append(ev.Issues, "no artifacts generated")
	}
	for _, name := range mem.MissingArtifacts() {
		ev.MissingArtifacts = append(ev.MissingArtifacts, name)
		ev.Issues = append(ev.Issues, "missing required artifact "+name)
	}

	for _, is := range mem.Issues.OfKind(types.IssueType) {
		ev.TypeErrors = append(ev.TypeErrors, issueText(is))
	}
	for _, is := range mem.Issues.OfKind(types.IssueImport) {
		ev.ImportErrors = append(ev.ImportErrors, issueText(is))
	}
	ev.Issues = append(ev.Issues, ev.TypeErrors...)
	ev.Issues = append(ev.Issues, ev.ImportErrors...)

	for _, c := range mem.Conflicts.OpenAtLeast(types.SeverityHigh) {
		ev.Conflicts = append(ev.Conflicts, c)
		ev.Issues = append(ev.Issues, c.String())
	}

	ev.Satisfactory = mem.Artifacts.Len() > 0 &&
		len(ev.MissingArtifacts) == 0 &&
		len(ev.TypeErrors) == 0 &&
		len(ev.ImportErrors) == 0 &&
		len(ev.Conflicts) == 0
	ev.NextActionHint = hint(mem, ev)
	ev.Reasoning = reasoning(ev)
	return ev
}

func issueText(is types.Issue) string {
	if is.Artifact == "" || strings.HasPrefix(is.Message, is.Artifact+":") {
		return is.Message
	}
	return is.Artifact + ": " + is.Message
}

// hint mirrors the planner's first choices for the blocking reasons found.
func hint(mem *session.Memory, ev Evaluation) types.SkillName {
	switch {
	case ev.Satisfactory:
		return types.SkillFinish
	case mem.Artifacts.Len() == 0:
		return types.SkillGenerateInitial
	case len(ev.TypeErrors) > 0:
		return types.SkillFixTypeErrors
	case len(ev.ImportErrors) > 0:
		return types.SkillFixImports
	case len(ev.Conflicts) > 0:
		for _, c := range ev.Conflicts {
			if c.Artifact != "" && c.Target.Touches(types.TargetImplementation) {
				return types.SkillRegenerateComponent
			}
		}
		return types.SkillResolveConflicts
	case len(ev.MissingArtifacts) > 0:
		return types.SkillRegenerateComponent
	}
	return types.SkillValidate
}

func reasoning(ev Evaluation) string {
	if ev.Satisfactory {
		return "all required artifacts exist with no type, import or high severity problems"
	}
	var parts []string
	if n := len(ev.MissingArtifacts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d missing artifact(s)", n))
	}
	if n := len(ev.TypeErrors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d type error(s)", n))
	}
	if n := len(ev.ImportErrors); n > 0 {
		parts = append(parts, fmt.Sprintf("%d import error(s)", n))
	}
	if n := len(ev.Conflicts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d open high severity conflict(s)", n))
	}
	if len(parts) == 0 {
		return "no artifacts generated"
	}
	return "blocked by " + strings.Join(parts, ", ")
}
