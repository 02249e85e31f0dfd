// Package ux renders session results for the terminal: a markdown report
// (styled through glamour) plus compact lipgloss summaries and tables for
// the CLI.
package ux

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"forge/internal/types"
)

// Semantic colors shared by both themes.
var (
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
	Info        = lipgloss.Color("#2196F3")
)

// Theme is a terminal color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light theme.
func LightTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#101F38"),
		Primary:    lipgloss.Color("#101F38"),
		Muted:      lipgloss.Color("#6a737d"),
		Border:     lipgloss.Color("#dce0e5"),
	}
}

// DarkTheme returns the dark theme.
func DarkTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#f2f2f2"),
		Primary:    lipgloss.Color("#8BC34A"),
		Muted:      lipgloss.Color("#8b95a5"),
		Border:     lipgloss.Color("#2a3850"),
		IsDark:     true,
	}
}

// DetectTheme picks a theme from COLORFGBG or FORGE_DARK_MODE, defaulting to light.
func DetectTheme() Theme {
	if parts := strings.Split(os.Getenv("COLORFGBG"), ";"); len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	if os.Getenv("FORGE_DARK_MODE") == "1" {
		return DarkTheme()
	}
	return LightTheme()
}

// Styles holds the styled components used by the renderers.
type Styles struct {
	Theme Theme

	Title   lipgloss.Style
	Bold    lipgloss.Style
	Body    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
	Box     lipgloss.Style
}

// NewStyles builds styles for theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme:   theme,
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Bold:    lipgloss.NewStyle().Bold(true).Foreground(theme.Foreground),
		Body:    lipgloss.NewStyle().Foreground(theme.Foreground),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Success: lipgloss.NewStyle().Bold(true).Foreground(Success),
		Warning: lipgloss.NewStyle().Bold(true).Foreground(Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(Destructive),
		Info:    lipgloss.NewStyle().Foreground(Info),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),
	}
}

// DefaultStyles uses the detected theme.
func DefaultStyles() Styles { return NewStyles(DetectTheme()) }

// Severity renders a severity badge.
func (s Styles) Severity(sev types.Severity) string {
	switch sev {
	case types.SeverityHigh:
		return s.Error.Render(string(sev))
	case types.SeverityMedium:
		return s.Warning.Render(string(sev))
	default:
		return s.Muted.Render(string(sev))
	}
}
