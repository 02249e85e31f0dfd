// Package articulation converts between generator replies and named artifacts.
//
// A reply carries any number of files, each introduced by a marker line:
//
//	// === FILE: Chart.tsx ===
//	/* === FILE: styles.css === */
//	<!-- === FILE: index.html === -->
//	# === FILE: notes.md ===
//
// Spaces inside the marker are optional. Text before the first marker is
// ignored. Unsafe names are dropped with a warning rather than failing the
// whole reply.
package articulation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"forge/internal/logging"
)

// DefaultArtifactLimit caps how many files a single reply may carry.
const DefaultArtifactLimit = 50

// ErrUnsafeName is returned by CheckName for names that could escape the
// artifact namespace.
var ErrUnsafeName = errors.New("unsafe artifact name")

var markerPattern = regexp.MustCompile(
	`^\s*(?://|/\*|<!--|#)\s*===\s*FILE\s*:\s*(.*?)\s*===\s*(?:\*/|-->)?\s*$`,
)

// Artifact is one named file extracted from a reply.
type Artifact struct {
	Name    string
	Content string
}

// Parsed is the result of splitting a reply into artifacts.
type Parsed struct {
	// Artifacts keeps first-appearance order.
	Artifacts []Artifact
	Warnings  []string
}

// Map returns the artifacts keyed by name.
func (p Parsed) Map() map[string]string {
	out := make(map[string]string, len(p.Artifacts))
	for _, a := range p.Artifacts {
		out[a.Name] = a.Content
	}
	return out
}

// Names returns artifact names in reply order.
func (p Parsed) Names() []string {
	out := make([]string, 0, len(p.Artifacts))
	for _, a := range p.Artifacts {
		out = append(out, a.Name)
	}
	return out
}

// CheckName rejects empty names, absolute paths, drive-qualified paths and
// any name containing "..".
func CheckName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrUnsafeName)
	case strings.HasPrefix(name, "/"), strings.HasPrefix(name, `\`):
		return fmt.Errorf("%w: %q is absolute", ErrUnsafeName, name)
	case len(name) >= 2 && name[1] == ':':
		return fmt.Errorf("%w: %q has a drive prefix", ErrUnsafeName, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains ..", ErrUnsafeName, name)
	}
	return nil
}

type section struct {
	name  string
	lines []string
}

// ParseArtifacts splits text into artifacts. A limit <= 0 means
// DefaultArtifactLimit.
func ParseArtifacts(text string, limit int) Parsed {
	if limit <= 0 {
		limit = DefaultArtifactLimit
	}
	log := logging.Get(logging.CategoryArticulation)

	var sections []*section
	var current *section
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if m := markerPattern.FindStringSubmatch(line); m != nil {
			current = &section{name: m[1]}
			sections = append(sections, current)
			continue
		}
		if current != nil {
			current.lines = append(current.lines, line)
		}
	}

	var out Parsed
	index := make(map[string]int)
	for _, s := range sections {
		if err := CheckName(s.name); err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("dropped artifact: %v", err))
			continue
		}
		content := trimBody(s.lines)
		if i, dup := index[s.name]; dup {
			out.Artifacts[i].Content = content
			out.Warnings = append(out.Warnings, fmt.Sprintf("duplicate artifact %q: keeping the last copy", s.name))
			continue
		}
		if len(out.Artifacts) >= limit {
			out.Warnings = append(out.Warnings, fmt.Sprintf("dropped artifact %q: reply exceeds %d files", s.name, limit))
			continue
		}
		index[s.name] = len(out.Artifacts)
		out.Artifacts = append(out.Artifacts, Artifact{Name: s.name, Content: content})
	}

	for _, w := range out.Warnings {
		log.Warn("%s", w)
	}
	log.Debug("parsed %d artifacts from %d markers", len(out.Artifacts), len(sections))
	return out
}

// trimBody drops blank edges and a single wrapping code fence.
func trimBody(lines []string) string {
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	if end-start >= 2 &&
		strings.HasPrefix(strings.TrimSpace(lines[start]), "```") &&
		strings.TrimSpace(lines[end-1]) == "```" {
		start++
		end--
	}
	if start >= end {
		return ""
	}
	return strings.Join(lines[start:end], "\n") + "\n"
}

// RenderArtifacts writes artifacts in marker format, sorted by name, so a
// prompt can show the current files back to the generator.
func RenderArtifacts(artifacts map[string]string) string {
	names := make([]string, 0, len(artifacts))
	for n := range artifacts {
		names = append(names, n)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, n := range names {
		sb.WriteString(markerFor(n))
		sb.WriteString("\n")
		body := artifacts[n]
		sb.WriteString(body)
		if !strings.HasSuffix(body, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func markerFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".html"), strings.HasSuffix(name, ".vue"), strings.HasSuffix(name, ".svelte"):
		return "<!-- === FILE: " + name + " === -->"
	case strings.HasSuffix(name, ".css"):
		return "/* === FILE: " + name + " === */"
	case strings.HasSuffix(name, ".md"), strings.HasSuffix(name, ".py"), strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return "# === FILE: " + name + " ==="
	default:
		return "// === FILE: " + name + " ==="
	}
}
