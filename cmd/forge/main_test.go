package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpec = `
title: Sales
artifacts: [App.tsx]
components:
  - name: Chart
    file: Chart.tsx
    props: {title: Revenue}
`

const testScript = `
replies:
  generate_initial:
    - |
      // === FILE: App.tsx ===
      import Chart from './Chart';

      export default function App() {
        return <Chart title="Revenue" />;
      }
      // === FILE: Chart.tsx ===
      export default function Chart({ title }) {
        return <section className="chart"><h2>{title}</h2></section>;
      }
`

type fixture struct {
	dir    string
	config string
	spec   string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	f := fixture{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		spec:   filepath.Join(dir, "spec.yaml"),
	}
	script := filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(script, []byte(testScript), 0644))
	require.NoError(t, os.WriteFile(f.spec, []byte(testSpec), 0644))
	cfgYAML := "llm:\n  provider: scripted\n  script: " + script + "\narchive:\n  enabled: true\n  path: " +
		filepath.Join(dir, "sessions.db") + "\n"
	require.NoError(t, os.WriteFile(f.config, []byte(cfgYAML), 0644))
	return f
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		specPath, schemaPath, rulesPath, outDir = "", "", "", ""
		maxSteps, plain, showFiles, watch = 0, false, false, false
		analyzeDir, minSev = ".", "low"
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSkillsCommand(t *testing.T) {
	f := newFixture(t)
	out, err := execute(t, "-c", f.config, "skills")
	require.NoError(t, err)
	for _, name := range []string{"generate_initial", "fix_type_errors", "resolve_conflicts", "finish"} {
		assert.Contains(t, out, name)
	}
}

func TestRunArchivesAndWritesArtifacts(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(f.dir, "ui")

	report, err := execute(t, "-c", f.config, "run", "--spec", f.spec, "--out", out, "--plain")
	require.NoError(t, err, report)
	assert.Contains(t, report, "# Sales")
	assert.Contains(t, report, "**Outcome:** satisfactory")

	chart, err := os.ReadFile(filepath.Join(out, "Chart.tsx"))
	require.NoError(t, err)
	assert.Contains(t, string(chart), "export default function Chart")

	list, err := execute(t, "-c", f.config, "history")
	require.NoError(t, err)
	assert.Contains(t, list, "1 session(s)")
	assert.Contains(t, list, "satisfactory")

	analyzed, err := execute(t, "-c", f.config, "analyze", "--spec", f.spec, "--dir", out, "--min-severity", "high")
	require.NoError(t, err)
	assert.Contains(t, analyzed, "No conflicts.")
}

func TestAnalyzeReportsMissingElement(t *testing.T) {
	f := newFixture(t)
	dir := filepath.Join(f.dir, "ui")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "App.tsx"),
		[]byte("export default function App() {\n  return <main />;\n}\n"), 0644))

	out, err := execute(t, "-c", f.config, "analyze", "--spec", f.spec, "--dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "missing_element")
	assert.True(t, strings.Contains(out, "Chart"))
}

func TestAnalyzeRejectsUnknownSeverity(t *testing.T) {
	f := newFixture(t)
	_, err := execute(t, "-c", f.config, "analyze", "--spec", f.spec, "--min-severity", "urgent")
	assert.ErrorContains(t, err, "unknown severity")
}

func TestHistoryEmpty(t *testing.T) {
	f := newFixture(t)
	out, err := execute(t, "-c", f.config, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No archived sessions found.")
}
