package articulation

import (
	"fmt"
	"sort"
	"strings"

	"forge/internal/types"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// PROMPT ASSEMBLER - generator prompts from session state
// =============================================================================
// Each generator-backed skill hands the assembler what it knows: the skill
// goal, the specification, the current files and what is wrong with them.
// The assembler lays these out in fixed sections and always ends with the
// reply format so ParseArtifacts can read the answer.

// PromptContext holds everything needed to assemble one generator prompt.
type PromptContext struct {
	Skill     types.SkillName
	Goal      string
	Spec      *types.Specification
	Schema    *types.SchemaContext
	Artifacts map[string]string
	// Focus restricts the reply to one artifact. Empty means any.
	Focus     string
	Issues    []types.Issue
	Conflicts []types.Conflict
}

// AssemblePrompt renders ctx into a prompt.
func AssemblePrompt(ctx PromptContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "TASK (%s)\n%s\n\n", ctx.Skill, ctx.Goal)

	if ctx.Spec != nil {
		sb.WriteString("SPECIFICATION\n")
		if data, err := yaml.Marshal(ctx.Spec); err == nil {
			sb.Write(data)
		} else {
			fmt.Fprintf(&sb, "title: %s\nintent: %s\n", ctx.Spec.Title, ctx.Spec.Intent)
		}
		sb.WriteString("\n")
	}

	if !ctx.Schema.Empty() {
		sb.WriteString("DATA COLUMNS\n")
		for _, c := range ctx.Schema.ColumnNames() {
			fmt.Fprintf(&sb, "- %s: %s\n", c, ctx.Schema.Columns[c])
		}
		if len(ctx.Schema.Columns) == 0 {
			fmt.Fprintf(&sb, "(%d sample rows, infer types from values)\n", len(ctx.Schema.Samples))
		}
		sb.WriteString("\n")
	}

	if len(ctx.Issues) > 0 {
		sb.WriteString("OUTSTANDING ISSUES\n")
		for _, is := range ctx.Issues {
			if is.Artifact != "" {
				fmt.Fprintf(&sb, "- [%s] %s: %s\n", is.Kind, is.Artifact, is.Message)
			} else {
				fmt.Fprintf(&sb, "- [%s] %s\n", is.Kind, is.Message)
			}
		}
		sb.WriteString("\n")
	}

	if len(ctx.Conflicts) > 0 {
		sb.WriteString("CONFLICTS TO RESOLVE\n")
		conflicts := append([]types.Conflict(nil), ctx.Conflicts...)
		sort.SliceStable(conflicts, func(i, j int) bool {
			return conflicts[i].Severity.Rank() > conflicts[j].Severity.Rank()
		})
		for _, c := range conflicts {
			fmt.Fprintf(&sb, "- %s\n", c.String())
		}
		sb.WriteString("\n")
	}

	if len(ctx.Artifacts) > 0 {
		sb.WriteString("CURRENT FILES\n")
		sb.WriteString(RenderArtifacts(ctx.Artifacts))
		sb.WriteString("\n")
	}

	sb.WriteString("REPLY FORMAT\n")
	sb.WriteString("Return complete file contents only. Start every file with a marker line:\n")
	sb.WriteString("// === FILE: <relative/path> ===\n")
	if ctx.Focus != "" {
		fmt.Fprintf(&sb, "Return only %s. Do not touch any other file.\n", ctx.Focus)
	} else {
		sb.WriteString("Return only files you create or change.\n")
	}
	return sb.String()
}
