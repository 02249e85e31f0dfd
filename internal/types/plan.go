package types

import (
	"sort"
	"strings"
)

// =============================================================================
// SKILLS & PLANS
// =============================================================================

// SkillName identifies a registered skill.
type SkillName string

const (
	SkillGenerateInitial     SkillName = "generate_initial"
	SkillFixTypeErrors       SkillName = "fix_type_errors"
	SkillFixImports          SkillName = "fix_imports"
	SkillRegenerateComponent SkillName = "regenerate_component"
	SkillFixDataBinding      SkillName = "fix_data_binding"
	SkillAdjustStyling       SkillName = "adjust_styling"
	SkillOptimize            SkillName = "optimize"
	SkillResolveConflicts    SkillName = "resolve_conflicts"
	SkillValidate            SkillName = "validate"
	SkillFinish              SkillName = "finish"
)

// AllSkills is the fixed skill catalogue.
var AllSkills = []SkillName{
	SkillGenerateInitial,
	SkillFixTypeErrors,
	SkillFixImports,
	SkillRegenerateComponent,
	SkillFixDataBinding,
	SkillAdjustStyling,
	SkillOptimize,
	SkillResolveConflicts,
	SkillValidate,
	SkillFinish,
}

// Known reports whether the name belongs to the catalogue.
func (s SkillName) Known() bool {
	for _, name := range AllSkills {
		if s == name {
			return true
		}
	}
	return false
}

// Argument keys shared by the planner and skills.
const (
	ArgArtifact = "artifact"
	ArgReason   = "reason"
	ArgFocus    = "focus"
)

// Plan is one iteration's chosen skill plus arguments and rationale.
type Plan struct {
	Skill           SkillName         `json:"skill"`
	Reasoning       string            `json:"reasoning"`
	Arguments       map[string]string `json:"arguments,omitempty"`
	ExpectedOutcome string            `json:"expected_outcome"`
}

// Artifact returns the artifact the plan is scoped to, if any.
func (p Plan) Artifact() string {
	if p.Arguments == nil {
		return ""
	}
	return p.Arguments[ArgArtifact]
}

// SkillOutput is the mandatory contract every skill result is normalized into.
type SkillOutput struct {
	Success          bool              `json:"success"`
	UpdatedArtifacts map[string]string `json:"updated_artifacts"`
	NewIssues        []string          `json:"new_issues"`
	RequiresReplan   bool              `json:"requires_replan"`
	Message          string            `json:"message"`
	Error            string            `json:"error"`
}

// Failed builds a failed output carrying err.
func Failed(err string) SkillOutput {
	return SkillOutput{
		Success:          false,
		UpdatedArtifacts: map[string]string{},
		NewIssues:        []string{},
		Error:            err,
	}
}

// =============================================================================
// ISSUES
// =============================================================================

// IssueKind classifies outstanding problems reported by skills.
type IssueKind string

const (
	IssueType        IssueKind = "type"
	IssueImport      IssueKind = "import"
	IssueStructural  IssueKind = "structural"
	IssueDataBinding IssueKind = "data_binding"
	IssueStyling     IssueKind = "styling"
	IssueOther       IssueKind = "other"
)

// Issue is a typed entry in the running issue list.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Artifact string    `json:"artifact,omitempty"`
	Message  string    `json:"message"`
}

var issueKeywords = []struct {
	kind  IssueKind
	words []string
}{
	{IssueImport, []string{"import", "cannot find module", "module not found", "unresolved module"}},
	{IssueType, []string{"type error", "typeerror", "ts2", "not assignable", "type mismatch", "type:"}},
	{IssueDataBinding, []string{"binding", "data key", "datakey", "field reference"}},
	{IssueStructural, []string{"syntax", "structure", "structural", "parse error", "unexpected token", "missing component"}},
	{IssueStyling, []string{"style", "styling", "css", "layout", "color", "spacing"}},
}

// ClassifyIssue turns a free-text issue into a typed Issue. A leading
// "<artifact>: " prefix naming one of known binds the issue to that artifact.
func ClassifyIssue(text string, known []string) Issue {
	msg := strings.TrimSpace(text)
	issue := Issue{Kind: IssueOther, Message: msg}

	if idx := strings.Index(msg, ":"); idx > 0 {
		prefix := strings.TrimSpace(msg[:idx])
		names := append([]string(nil), known...)
		sort.Strings(names)
		for _, name := range names {
			if prefix == name {
				issue.Artifact = name
				break
			}
		}
	}

	lower := strings.ToLower(msg)
	if issue.Artifact != "" {
		lower = strings.ToLower(strings.TrimSpace(msg[len(issue.Artifact)+1:]))
	}
	for _, group := range issueKeywords {
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				issue.Kind = group.kind
				return issue
			}
		}
	}
	return issue
}
