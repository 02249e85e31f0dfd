package ux

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"forge/internal/orchestrator"
	"forge/internal/types"
)

// RenderOptions controls Render.
type RenderOptions struct {
	// Width wraps the rendered report; zero uses 100 columns.
	Width int
	// Plain returns the markdown source without terminal styling.
	Plain bool
	// Style is a glamour standard style name ("dark", "light", "notty").
	// Empty picks one from the detected theme.
	Style string
	// Artifacts appends the full artifact text.
	Artifacts bool
}

// Markdown builds the session report.
func Markdown(r orchestrator.Result, withArtifacts bool) string {
	var sb strings.Builder
	title := r.Title
	if title == "" {
		title = "Session"
	}
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "- **Session:** `%s`\n", r.SessionID)
	fmt.Fprintf(&sb, "- **Outcome:** %s\n", r.Outcome)
	fmt.Fprintf(&sb, "- **Steps:** %d\n", r.Steps)
	fmt.Fprintf(&sb, "- **Duration:** %s\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "- **Evaluation:** %s\n\n", r.Evaluation.Reasoning)

	if len(r.Reports) > 0 {
		sb.WriteString("## Steps\n\n| # | Skill | Result | Changed | Conflicts |\n|---|---|---|---|---|\n")
		for _, st := range r.Reports {
			status := "ok"
			if !st.Success {
				status = "failed: " + escape(st.Error)
			}
			conflicts := "-"
			if st.Analyzed {
				conflicts = fmt.Sprintf("+%d / -%d", st.Opened, st.Resolved)
			}
			fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n",
				st.Step, st.Plan.Skill, status, orDash(strings.Join(st.Changed, ", ")), conflicts)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Open conflicts\n\n")
	if len(r.Open) == 0 {
		sb.WriteString("None.\n\n")
	} else {
		sb.WriteString("| Severity | Target | Kind | Path | Description |\n|---|---|---|---|---|\n")
		for _, c := range r.Open {
			fmt.Fprintf(&sb, "| %s | %s | %s | `%s` | %s |\n",
				c.Severity, c.Target, c.Kind, c.Path, escape(c.Description))
		}
		sb.WriteString("\n")
	}

	if len(r.Issues) > 0 {
		sb.WriteString("## Outstanding issues\n\n")
		for _, is := range r.Issues {
			fmt.Fprintf(&sb, "- [%s] %s\n", is.Kind, is.Message)
		}
		sb.WriteString("\n")
	}

	if n := len(r.Ledger.Messages) + len(r.Ledger.Patches) + len(r.Ledger.ChangeRequests); n > 0 {
		sb.WriteString("## Negotiation ledger\n\n")
		fmt.Fprintf(&sb, "%d message(s), %d patch proposal(s), %d change request(s).\n\n",
			len(r.Ledger.Messages), len(r.Ledger.Patches), len(r.Ledger.ChangeRequests))
		for _, p := range r.Ledger.Patches {
			fmt.Fprintf(&sb, "- %s `%s` on %s: %s\n", p.Operation, p.Path, p.Target, escape(p.Value))
		}
		for _, cr := range r.Ledger.ChangeRequests {
			fmt.Fprintf(&sb, "- %s -> %s (%s): %s\n", cr.From, cr.To, cr.Priority, escape(cr.Description))
		}
		sb.WriteString("\n")
	}

	names := make([]string, 0, len(r.Artifacts))
	for name := range r.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	sb.WriteString("## Artifacts\n\n")
	if len(names) == 0 {
		sb.WriteString("None.\n")
	}
	for _, name := range names {
		if !withArtifacts {
			fmt.Fprintf(&sb, "- `%s` (%d bytes)\n", name, len(r.Artifacts[name]))
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n```%s\n%s\n```\n\n", name, fence(name), strings.TrimRight(r.Artifacts[name], "\n"))
	}
	return sb.String()
}

// Render returns the report styled for the terminal.
func Render(r orchestrator.Result, opts RenderOptions) (string, error) {
	md := Markdown(r, opts.Artifacts)
	if opts.Plain {
		return md, nil
	}
	width := opts.Width
	if width <= 0 {
		width = 100
	}
	style := opts.Style
	if style == "" {
		style = "light"
		if DetectTheme().IsDark {
			style = "dark"
		}
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return out, nil
}

// Summary is the one-line outcome shown after a run.
func Summary(r orchestrator.Result, s Styles) string {
	var badge string
	switch r.Outcome {
	case orchestrator.StateSatisfactory:
		badge = s.Success.Render("✓ " + string(r.Outcome))
	case orchestrator.StateAborted, orchestrator.StateCanceled:
		badge = s.Error.Render("✗ " + string(r.Outcome))
	default:
		badge = s.Warning.Render("● " + string(r.Outcome))
	}
	return fmt.Sprintf("%s %s", badge, s.Muted.Render(fmt.Sprintf(
		"%d step(s), %d artifact(s), %d open conflict(s)", r.Steps, len(r.Artifacts), len(r.Open))))
}

// ConflictTable renders conflicts for the analyze command.
func ConflictTable(conflicts []types.Conflict, s Styles) string {
	if len(conflicts) == 0 {
		return s.Success.Render("No conflicts.") + "\n"
	}
	t := NewTable(fmt.Sprintf("%d conflict(s)", len(conflicts)), "Severity", "Target", "Kind", "Path", "Description")
	for _, c := range conflicts {
		t.AddRow(s.Severity(c.Severity), string(c.Target), string(c.Kind), c.Path, c.Description)
	}
	return t.View(s)
}

func escape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fence(name string) string {
	switch {
	case strings.HasSuffix(name, ".tsx"):
		return "tsx"
	case strings.HasSuffix(name, ".ts"):
		return "ts"
	case strings.HasSuffix(name, ".jsx"), strings.HasSuffix(name, ".js"):
		return "jsx"
	case strings.HasSuffix(name, ".css"):
		return "css"
	}
	return ""
}
