package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"forge/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const specYAML = `
title: Sales dashboard
intent: Show revenue per region
artifacts: [App.tsx]
components:
  - name: Dashboard
    file: Dashboard.tsx
    children:
      - name: Chart
        type: BarChart
        props: {title: Revenue}
        bindings:
          - {prop: dataKey, field: revenue, type: number, kind: numeric}
        interactions:
          - {event: onClick, handler: handleSelect}
dependencies:
  - {name: recharts, version: "^2.12.0"}
libraries:
  - module: recharts
    components:
      - {name: BarChart, required_props: [data], events: [onClick]}
`

func TestLoadSpecificationYAML(t *testing.T) {
	spec, err := LoadSpecification(write(t, "spec.yaml", specYAML))
	require.NoError(t, err)

	assert.Equal(t, "Sales dashboard", spec.Title)
	assert.Equal(t, []string{"App.tsx", "Dashboard.tsx"}, spec.RequiredArtifacts())
	chart := spec.Components[0].Children[0]
	assert.Equal(t, "BarChart", chart.TypeName())
	assert.Equal(t, "Revenue", chart.Props["title"])
	assert.Equal(t, types.BindingNumeric, chart.Bindings[0].Kind)
	_, contract, ok := spec.Contract("BarChart")
	require.True(t, ok)
	assert.Equal(t, []string{"onClick"}, contract.Events)
}

func TestLoadSchemaJSON(t *testing.T) {
	schema, err := LoadSchema(write(t, "schema.json", `{"columns": {"count": "number"}, "samples": [{"count": 3}]}`))
	require.NoError(t, err)
	assert.Equal(t, "number", schema.Columns["count"])
	assert.Len(t, schema.Samples, 1)
}

func TestLoadRulesValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", "rules:\n  - {id: r1, kind: required_field, field: region, severity: high}\n", false},
		{"missing field", "rules:\n  - {id: r1, kind: required_field}\n", true},
		{"short combination", "rules:\n  - {id: r2, kind: forbidden_combination, combination: [\"type:PieChart\"]}\n", true},
		{"bad pattern", "rules:\n  - {id: r3, kind: labeling, prop: label, pattern: \"(\"}\n", true},
		{"unknown kind", "rules:\n  - {id: r4, kind: vibes}\n", true},
		{"bad severity", "rules:\n  - {id: r5, kind: valid_pattern, allowed: [BarChart], severity: extreme}\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRules(write(t, "rules.yaml", tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	specPath := filepath.Join(dir, "spec.yaml")
	require.NoError(t, os.WriteFile(specPath, []byte(specYAML), 0644))

	in, err := Load(Paths{Spec: specPath})
	require.NoError(t, err)
	assert.NotNil(t, in.Spec)
	assert.Nil(t, in.Schema)

	_, err = Load(Paths{})
	assert.Error(t, err)

	_, err = Load(Paths{Spec: filepath.Join(dir, "missing.yaml")})
	assert.Error(t, err)
}

func TestValidateSpecificationDuplicates(t *testing.T) {
	spec := &types.Specification{Components: []types.ComponentSpec{
		{Name: "Chart"}, {Name: "Panel", Children: []types.ComponentSpec{{Name: "Chart"}}},
	}}
	assert.Error(t, ValidateSpecification(spec))
}
