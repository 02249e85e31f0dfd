// Package knowledge loads the inputs a session runs against: the UI
// specification, the data schema context and the domain rules. Files may be
// YAML or JSON; yaml.v3 reads both.
package knowledge

import (
	"fmt"
	"os"
	"regexp"

	"forge/internal/session"
	"forge/internal/types"

	"gopkg.in/yaml.v3"
)

// Paths names the knowledge files for one run. Schema and Rules are optional.
type Paths struct {
	Spec   string
	Schema string
	Rules  string
}

func decode(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// LoadSpecification reads and validates a specification file.
func LoadSpecification(path string) (*types.Specification, error) {
	var spec types.Specification
	if err := decode(path, &spec); err != nil {
		return nil, err
	}
	if err := ValidateSpecification(&spec); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &spec, nil
}

// LoadSchema reads a schema context file.
func LoadSchema(path string) (*types.SchemaContext, error) {
	var schema types.SchemaContext
	if err := decode(path, &schema); err != nil {
		return nil, err
	}
	return &schema, nil
}

// LoadRules reads and validates a domain rules file.
func LoadRules(path string) (*types.DomainRules, error) {
	var rules types.DomainRules
	if err := decode(path, &rules); err != nil {
		return nil, err
	}
	if err := ValidateRules(&rules); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &rules, nil
}

// Load reads every configured file into session inputs.
func Load(p Paths) (session.Inputs, error) {
	var in session.Inputs
	if p.Spec == "" {
		return in, fmt.Errorf("a specification file is required")
	}
	spec, err := LoadSpecification(p.Spec)
	if err != nil {
		return in, err
	}
	in.Spec = spec
	if p.Schema != "" {
		if in.Schema, err = LoadSchema(p.Schema); err != nil {
			return in, err
		}
	}
	if p.Rules != "" {
		if in.Rules, err = LoadRules(p.Rules); err != nil {
			return in, err
		}
	}
	return in, nil
}

// ValidateSpecification checks component names are present and unique.
func ValidateSpecification(spec *types.Specification) error {
	seen := map[string]bool{}
	var err error
	spec.Walk(func(c types.ComponentSpec, _ []string) {
		if err != nil {
			return
		}
		switch {
		case c.Name == "":
			err = fmt.Errorf("component without a name")
		case seen[c.Name]:
			err = fmt.Errorf("duplicate component %q", c.Name)
		}
		seen[c.Name] = true
	})
	return err
}

// ValidateRules checks each rule carries what its kind needs.
func ValidateRules(rules *types.DomainRules) error {
	for i, r := range rules.Rules {
		id := r.ID
		if id == "" {
			id = fmt.Sprintf("#%d", i)
		}
		if r.Severity != "" && r.Severity.Rank() == 0 {
			return fmt.Errorf("rule %s: unknown severity %q", id, r.Severity)
		}
		switch r.Kind {
		case types.RuleRequiredField:
			if r.Field == "" {
				return fmt.Errorf("rule %s: required_field needs field", id)
			}
		case types.RuleForbiddenCombination:
			if len(r.Combination) < 2 {
				return fmt.Errorf("rule %s: forbidden_combination needs at least two features", id)
			}
		case types.RuleLabeling:
			if r.Prop == "" {
				return fmt.Errorf("rule %s: labeling needs prop", id)
			}
			if r.Pattern != "" {
				if _, err := regexp.Compile(r.Pattern); err != nil {
					return fmt.Errorf("rule %s: bad pattern: %w", id, err)
				}
			}
		case types.RuleValidPattern:
			if len(r.Allowed) == 0 {
				return fmt.Errorf("rule %s: valid_pattern needs allowed", id)
			}
		default:
			return fmt.Errorf("rule %s: unknown kind %q", id, r.Kind)
		}
	}
	return nil
}
