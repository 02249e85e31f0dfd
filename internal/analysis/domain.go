package analysis

import (
	"fmt"
	"regexp"
	"sync"

	"forge/internal/types"
	"forge/internal/world"
)

// =============================================================================
// DOMAIN CHECKER
// =============================================================================

// DomainChecker evaluates domain rules against spec components and rendered
// implementation elements.
//
// Every subject is reduced to a feature set ("type:BarChart", "prop:title",
// "field:revenue", "kind:numeric", "event:onClick"); forbidden combinations
// match when all listed features are present.
type DomainChecker struct {
	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// NewDomainChecker creates the checker.
func NewDomainChecker() *DomainChecker {
	return &DomainChecker{patterns: make(map[string]*regexp.Regexp)}
}

func (d *DomainChecker) Name() string { return SourceDomain }

func (d *DomainChecker) AllowedKinds() []types.ConflictKind {
	return []types.ConflictKind{
		types.KindInvalidDomainAssumption,
		types.KindDangerousCombination,
		types.KindIncorrectLabeling,
		types.KindOutOfDomainPattern,
	}
}

// subject is one thing a rule is evaluated against.
type subject struct {
	Type     string
	Path     string
	Artifact string
	Target   types.Target
	Labels   map[string]labelValue
	Features map[string]bool
	// Library is set for implementation elements imported from a package.
	Library bool
	Spec    bool
}

type labelValue struct {
	Value   string
	Literal bool
}

func (d *DomainChecker) Analyze(in Input) []types.Conflict {
	if in.Rules == nil || len(in.Rules.Rules) == 0 {
		return nil
	}
	subjects := append(specSubjects(in), implSubjects(in)...)
	columns := d.columns(in.Schema)

	var out []types.Conflict
	for _, rule := range in.Rules.Rules {
		switch rule.Kind {
		case types.RuleRequiredField:
			out = append(out, d.requiredField(rule, subjects, columns)...)
		case types.RuleForbiddenCombination:
			out = append(out, d.forbidden(rule, subjects)...)
		case types.RuleLabeling:
			out = append(out, d.labeling(rule, subjects)...)
		case types.RuleValidPattern:
			out = append(out, d.validPattern(rule, subjects)...)
		}
	}
	return out
}

// columns lists the fields the data has. Declared columns win over the
// keys seen in sample rows.
func (d *DomainChecker) columns(schema *types.SchemaContext) map[string]bool {
	if schema.Empty() {
		return nil
	}
	out := make(map[string]bool)
	for c := range schema.Columns {
		out[c] = true
	}
	if len(out) > 0 {
		return out
	}
	for _, row := range schema.Samples {
		for c := range row {
			out[c] = true
		}
	}
	return out
}

func (d *DomainChecker) requiredField(rule types.DomainRule, subjects []subject, columns map[string]bool) []types.Conflict {
	sev := rule.SeverityOr(types.SeverityMedium)
	if rule.AppliesTo == "" {
		// A global requirement is an assumption about the data itself.
		if columns != nil && !columns[rule.Field] {
			return []types.Conflict{newConflict(SourceDomain, types.KindInvalidDomainAssumption, sev, types.TargetSpec,
				"rule."+rule.ID, "", "rule %s requires field %s but the data has no such column", rule.ID, rule.Field)}
		}
		return nil
	}
	var out []types.Conflict
	for _, s := range subjects {
		if s.Type != rule.AppliesTo || s.Features["field:"+rule.Field] {
			continue
		}
		out = append(out, newConflict(SourceDomain, types.KindInvalidDomainAssumption, sev, s.Target,
			s.Path+".rule."+rule.ID, s.Artifact, "%s must use field %s (%s)", s.Type, rule.Field, ruleText(rule)))
	}
	return out
}

func (d *DomainChecker) forbidden(rule types.DomainRule, subjects []subject) []types.Conflict {
	sev := rule.SeverityOr(types.SeverityHigh)
	var out []types.Conflict
	for _, s := range subjects {
		if !rule.Applies(s.Type) {
			continue
		}
		all := true
		for _, f := range rule.Combination {
			if !s.Features[f] {
				all = false
				break
			}
		}
		if all {
			out = append(out, newConflict(SourceDomain, types.KindDangerousCombination, sev, s.Target,
				s.Path+".rule."+rule.ID, s.Artifact, "%s combines %v (%s)", s.Type, rule.Combination, ruleText(rule)))
		}
	}
	return out
}

func (d *DomainChecker) labeling(rule types.DomainRule, subjects []subject) []types.Conflict {
	sev := rule.SeverityOr(types.SeverityMedium)
	re := d.pattern(rule.Pattern)
	var out []types.Conflict
	for _, s := range subjects {
		if !rule.Applies(s.Type) || (rule.AppliesTo == "" && !s.Spec) {
			continue
		}
		label, ok := s.Labels[rule.Prop]
		switch {
		case !ok:
			out = append(out, newConflict(SourceDomain, types.KindIncorrectLabeling, sev, s.Target,
				s.Path+".rule."+rule.ID, s.Artifact, "%s has no %s (%s)", s.Type, rule.Prop, ruleText(rule)))
		case re != nil && label.Literal && !re.MatchString(label.Value):
			out = append(out, newConflict(SourceDomain, types.KindIncorrectLabeling, sev, s.Target,
				s.Path+".rule."+rule.ID, s.Artifact, "%s %s %q does not match %s", s.Type, rule.Prop, label.Value, rule.Pattern))
		}
	}
	return out
}

func (d *DomainChecker) validPattern(rule types.DomainRule, subjects []subject) []types.Conflict {
	sev := rule.SeverityOr(types.SeverityMedium)
	allowed := make(map[string]bool, len(rule.Allowed))
	for _, a := range rule.Allowed {
		allowed[a] = true
	}
	var out []types.Conflict
	for _, s := range subjects {
		if !rule.Applies(s.Type) || !(s.Spec || s.Library) || allowed[s.Type] {
			continue
		}
		out = append(out, newConflict(SourceDomain, types.KindOutOfDomainPattern, sev, s.Target,
			s.Path+".rule."+rule.ID, s.Artifact, "%s is not an accepted pattern (%s)", s.Type, ruleText(rule)))
	}
	return out
}

func (d *DomainChecker) pattern(expr string) *regexp.Regexp {
	if expr == "" {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if re, ok := d.patterns[expr]; ok {
		return re
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}
	d.patterns[expr] = re
	return re
}

func ruleText(rule types.DomainRule) string {
	if rule.Description != "" {
		return rule.Description
	}
	return fmt.Sprintf("rule %s", rule.ID)
}

// =============================================================================
// SUBJECTS
// =============================================================================

func specSubjects(in Input) []subject {
	var out []subject
	for _, node := range flatten(in.Spec) {
		c := node.Comp
		s := subject{
			Type:     c.TypeName(),
			Path:     c.Name,
			Artifact: c.File,
			Target:   types.TargetSpec,
			Labels:   make(map[string]labelValue),
			Features: map[string]bool{"type:" + c.TypeName(): true},
			Spec:     true,
		}
		for k, v := range c.Props {
			s.Features["prop:"+k] = true
			if str, ok := v.(string); ok {
				s.Labels[k] = labelValue{Value: str, Literal: true}
			} else {
				s.Labels[k] = labelValue{Value: fmt.Sprint(v)}
			}
		}
		for _, b := range c.Bindings {
			s.Features["prop:"+b.Prop] = true
			s.Features["field:"+b.Field] = true
			if b.Kind != "" {
				s.Features["kind:"+string(b.Kind)] = true
			}
		}
		for _, i := range c.Interactions {
			s.Features["event:"+i.Event] = true
		}
		out = append(out, s)
	}
	return out
}

func implSubjects(in Input) []subject {
	if in.Model == nil {
		return nil
	}
	var columns map[string]string
	if !in.Schema.Empty() {
		columns, _ = NewSchemaAligner(1, nil).Columns(in.Schema)
	}
	fieldProps := make(map[string]bool)
	for _, p := range DefaultFieldProps {
		fieldProps[p] = true
	}

	var out []subject
	for _, m := range in.Model.Modules() {
		for _, el := range m.Elements {
			if !world.IsComponentName(el.Name) {
				continue
			}
			imp, imported := m.ImportFor(el.Name)
			s := subject{
				Type:     el.Name,
				Path:     fmt.Sprintf("%s:%s@%d", m.Artifact, el.Name, el.Line),
				Artifact: m.Artifact,
				Target:   types.TargetImplementation,
				Labels:   make(map[string]labelValue),
				Features: map[string]bool{"type:" + el.Name: true},
				Library:  imported && !imp.Relative(),
			}
			for _, a := range el.Attributes {
				s.Features["prop:"+a.Name] = true
				s.Labels[a.Name] = labelValue{Value: a.Value, Literal: a.Kind == world.AttrString}
				if isEventProp(a.Name) {
					s.Features["event:"+a.Name] = true
				}
				if fieldProps[a.Name] && a.Kind == world.AttrString {
					s.Features["field:"+a.Value] = true
					if kind := kindOf(columns[a.Value]); kind != "" {
						s.Features["kind:"+kind] = true
					}
				}
			}
			out = append(out, s)
		}
	}
	return out
}

func kindOf(column string) string {
	switch column {
	case types.ColumnNumber:
		return string(types.BindingNumeric)
	case types.ColumnString, types.ColumnBoolean:
		return string(types.BindingCategorical)
	case types.ColumnDate:
		return string(types.BindingTemporal)
	}
	return ""
}
