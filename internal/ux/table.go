package ux

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table renders static rows with padded columns.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given title and headers.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers, Rows: make([][]string, 0)}
}

// AddRow appends a row. Missing cells render empty; extra cells are ignored.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// View renders the table. An empty table renders as "".
func (t *Table) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}
	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2
	}

	header := styles.Bold.Padding(0, 1)
	cell := styles.Body.Padding(0, 1)
	sep := styles.Muted.Render("|")

	writeRow := func(style lipgloss.Style, values []string) {
		for i := range widths {
			v := ""
			if i < len(values) {
				v = values[i]
			}
			sb.WriteString(style.Width(widths[i]).Render(v))
			if i < len(widths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}

	writeRow(header, t.Headers)
	total := 0
	for _, w := range widths {
		total += w
	}
	sb.WriteString(styles.Muted.Render(strings.Repeat("-", total+len(widths)-1)))
	sb.WriteString("\n")
	for _, row := range t.Rows {
		writeRow(cell, row)
	}
	return sb.String()
}
