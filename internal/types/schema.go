package types

import "sort"

// Schema column types recognized by the analyzers.
const (
	ColumnNumber  = "number"
	ColumnString  = "string"
	ColumnBoolean = "boolean"
	ColumnDate    = "date"
)

// SchemaContext describes the data a UI binds to. Columns may be empty, in
// which case the analyzers infer types from Samples.
type SchemaContext struct {
	Columns map[string]string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Samples []map[string]any  `json:"samples,omitempty" yaml:"samples,omitempty"`
}

// Empty reports whether no schema information is available.
func (s *SchemaContext) Empty() bool {
	return s == nil || (len(s.Columns) == 0 && len(s.Samples) == 0)
}

// ColumnNames returns the declared columns, sorted.
func (s *SchemaContext) ColumnNames() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.Columns))
	for c := range s.Columns {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// RuleKind selects how a DomainRule is evaluated.
type RuleKind string

const (
	RuleRequiredField        RuleKind = "required_field"
	RuleForbiddenCombination RuleKind = "forbidden_combination"
	RuleLabeling             RuleKind = "labeling"
	RuleValidPattern         RuleKind = "valid_pattern"
)

// DomainRules is a set of domain constraints.
type DomainRules struct {
	Rules []DomainRule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// DomainRule is one constraint. Which fields matter depends on Kind:
// required_field uses Field, forbidden_combination uses Combination features
// (type:, prop:, field:, kind:, event:), labeling uses Prop and Pattern,
// valid_pattern uses Allowed. AppliesTo restricts the rule to one component
// type; empty matches all.
type DomainRule struct {
	ID          string   `json:"id" yaml:"id"`
	Kind        RuleKind `json:"kind" yaml:"kind"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Severity    Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
	AppliesTo   string   `json:"applies_to,omitempty" yaml:"applies_to,omitempty"`
	Field       string   `json:"field,omitempty" yaml:"field,omitempty"`
	Prop        string   `json:"prop,omitempty" yaml:"prop,omitempty"`
	Combination []string `json:"combination,omitempty" yaml:"combination,omitempty"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Allowed     []string `json:"allowed,omitempty" yaml:"allowed,omitempty"`
}

// SeverityOr returns the rule severity or def when unset.
func (r DomainRule) SeverityOr(def Severity) Severity {
	if r.Severity == "" {
		return def
	}
	return r.Severity
}

// Applies reports whether the rule targets componentType.
func (r DomainRule) Applies(componentType string) bool {
	return r.AppliesTo == "" || r.AppliesTo == componentType
}
