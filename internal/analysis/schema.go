package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"forge/internal/logging"
	"forge/internal/types"
	"forge/internal/world"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// SCHEMA ALIGNER
// =============================================================================

// DefaultSchemaCacheSize bounds the inferred-schema cache.
const DefaultSchemaCacheSize = 256

// DefaultFieldProps are JSX props whose string value names a data field.
var DefaultFieldProps = []string{"dataKey", "field", "xKey", "yKey", "valueKey", "nameKey", "categoryKey", "accessor"}

// valueProps carry the measured quantity of numeric-only components.
var valueProps = map[string]bool{"dataKey": true, "valueKey": true, "yKey": true, "value": true}

// numericComponents render a magnitude and need a number field.
var numericComponents = map[string]bool{
	"Bar": true, "Line": true, "Area": true, "Scatter": true, "Radar": true,
	"BarChart": true, "LineChart": true, "AreaChart": true, "ScatterChart": true,
	"Histogram": true, "Gauge": true, "Sparkline": true, "Progress": true, "Meter": true,
}

// SchemaAligner checks field references against the schema. Declared
// columns define which fields exist. When only sample rows are given,
// column types are inferred and cached by a fingerprint of the samples.
type SchemaAligner struct {
	fieldProps map[string]bool
	cache      *lru.Cache[string, map[string]string]
}

// NewSchemaAligner creates an aligner. A nil or empty fieldProps uses
// DefaultFieldProps.
func NewSchemaAligner(cacheSize int, fieldProps []string) *SchemaAligner {
	if cacheSize <= 0 {
		cacheSize = DefaultSchemaCacheSize
	}
	if len(fieldProps) == 0 {
		fieldProps = DefaultFieldProps
	}
	cache, err := lru.New[string, map[string]string](cacheSize)
	if err != nil {
		logging.AnalysisWarn("schema cache disabled: %v", err)
	}
	fp := make(map[string]bool, len(fieldProps))
	for _, p := range fieldProps {
		fp[p] = true
	}
	return &SchemaAligner{fieldProps: fp, cache: cache}
}

func (s *SchemaAligner) Name() string { return SourceSchema }

func (s *SchemaAligner) AllowedKinds() []types.ConflictKind {
	return []types.ConflictKind{
		types.KindSchemaFieldNonexistent,
		types.KindTypeMismatch,
		types.KindNumericCategoricalMismatch,
	}
}

func (s *SchemaAligner) Analyze(in Input) []types.Conflict {
	if in.Schema.Empty() {
		return nil
	}
	columns, inferred := s.Columns(in.Schema)
	var out []types.Conflict

	// Declared column types contradicted by the samples.
	if len(in.Schema.Columns) > 0 && len(in.Schema.Samples) > 0 {
		for _, col := range in.Schema.ColumnNames() {
			declared := NormalizeType(in.Schema.Columns[col])
			if got, ok := inferred[col]; ok && declared != "" && got != declared {
				out = append(out, newConflict(SourceSchema, types.KindTypeMismatch, types.SeverityMedium, types.TargetBoth,
					"schema."+col, "", "column %s is declared %s but sample values are %s", col, declared, got))
			}
		}
	}

	for _, node := range flatten(in.Spec) {
		c := node.Comp
		for _, b := range c.Bindings {
			if b.Field == "" {
				continue
			}
			path := c.Name + ".bindings." + b.Prop
			colType, ok := columns[b.Field]
			if !ok {
				out = append(out, newConflict(SourceSchema, types.KindSchemaFieldNonexistent, types.SeverityHigh, types.TargetSpec,
					path, c.File, "%s binds %s to field %s which is not in the data", c.Name, b.Prop, b.Field))
				continue
			}
			if want := NormalizeType(b.Type); want != "" && colType != "" && want != colType {
				out = append(out, newConflict(SourceSchema, types.KindTypeMismatch, types.SeverityMedium, types.TargetBoth,
					path, c.File, "%s expects %s to be %s but the data has %s", c.Name, b.Field, want, colType))
			}
			numericUse := b.Kind == types.BindingNumeric || (numericComponents[c.TypeName()] && valueProps[b.Prop])
			if numericUse && colType != "" && colType != types.ColumnNumber {
				out = append(out, newConflict(SourceSchema, types.KindNumericCategoricalMismatch, types.SeverityHigh, types.TargetBoth,
					path+".numeric", c.File, "%s needs a numeric field but %s is %s", c.Name, b.Field, colType))
			}
		}
	}

	if in.Model == nil {
		return out
	}
	for _, ref := range in.Model.AllElements() {
		for _, a := range ref.Element.Attributes {
			if !s.fieldProps[a.Name] || a.Kind != world.AttrString || a.Value == "" {
				continue
			}
			path := elementPath(ref) + "." + a.Name
			colType, ok := columns[a.Value]
			if !ok {
				out = append(out, newConflict(SourceSchema, types.KindSchemaFieldNonexistent, types.SeverityHigh, types.TargetImplementation,
					path, ref.Artifact, "<%s %s=%q> references a field that is not in the data", ref.Element.Name, a.Name, a.Value))
				continue
			}
			if numericComponents[ref.Element.Name] && valueProps[a.Name] && colType != "" && colType != types.ColumnNumber {
				out = append(out, newConflict(SourceSchema, types.KindNumericCategoricalMismatch, types.SeverityHigh, types.TargetImplementation,
					path+".numeric", ref.Artifact, "<%s> plots %s which is %s, not a number", ref.Element.Name, a.Value, colType))
			}
		}
	}
	return out
}

// Columns resolves the effective column types. Declared columns are
// authoritative: when any are declared, sample-only columns do not exist.
// Without declared columns the inferred types stand in. The inferred map
// is returned separately for the declared-versus-sample comparison.
func (s *SchemaAligner) Columns(schema *types.SchemaContext) (effective, inferred map[string]string) {
	inferred = s.infer(schema.Samples)
	if len(schema.Columns) == 0 {
		effective = make(map[string]string, len(inferred))
		for col, t := range inferred {
			effective[col] = t
		}
		return effective, inferred
	}
	effective = make(map[string]string, len(schema.Columns))
	for col, t := range schema.Columns {
		effective[col] = NormalizeType(t)
		if effective[col] == "" {
			effective[col] = inferred[col]
		}
	}
	return effective, inferred
}

func (s *SchemaAligner) infer(samples []map[string]any) map[string]string {
	if len(samples) == 0 {
		return map[string]string{}
	}
	key := fingerprint(samples)
	if s.cache != nil && key != "" {
		if cols, ok := s.cache.Get(key); ok {
			return cols
		}
	}
	cols := InferColumns(samples)
	if s.cache != nil && key != "" {
		s.cache.Add(key, cols)
	}
	return cols
}

func fingerprint(samples []map[string]any) string {
	data, err := json.Marshal(samples)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// typeOrder breaks ties between equally common value types.
var typeOrder = []string{types.ColumnString, types.ColumnNumber, types.ColumnDate, types.ColumnBoolean}

// InferColumns assigns each column the most common type among its non-null
// sample values.
func InferColumns(samples []map[string]any) map[string]string {
	counts := make(map[string]map[string]int)
	for _, row := range samples {
		for col, v := range row {
			if counts[col] == nil {
				counts[col] = make(map[string]int)
			}
			if t := valueType(v); t != "" {
				counts[col][t]++
			}
		}
	}
	out := make(map[string]string, len(counts))
	for col, byType := range counts {
		best, bestN := types.ColumnString, 0
		for _, t := range typeOrder {
			if byType[t] > bestN {
				best, bestN = t, byType[t]
			}
		}
		out[col] = best
	}
	return out
}

func valueType(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		return types.ColumnBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return types.ColumnNumber
	case time.Time:
		return types.ColumnDate
	case string:
		return stringType(x)
	}
	return types.ColumnString
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05", "2006/01/02", "01/02/2006"}

func stringType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return types.ColumnNumber
	}
	if s == "true" || s == "false" {
		return types.ColumnBoolean
	}
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return types.ColumnDate
		}
	}
	return types.ColumnString
}

// NormalizeType maps type spellings onto the four column types. Unknown
// spellings normalize to "".
func NormalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "number", "numeric", "int", "integer", "float", "double", "decimal":
		return types.ColumnNumber
	case "string", "str", "text", "categorical", "category":
		return types.ColumnString
	case "bool", "boolean":
		return types.ColumnBoolean
	case "date", "datetime", "timestamp", "time":
		return types.ColumnDate
	}
	return ""
}

// SortedColumns renders a column map as "name:type" pairs.
func SortedColumns(cols map[string]string) []string {
	out := make([]string, 0, len(cols))
	for c, t := range cols {
		out = append(out, c+":"+t)
	}
	sort.Strings(out)
	return out
}
