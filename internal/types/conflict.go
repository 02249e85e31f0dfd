// Package types provides shared type definitions used across forge packages.
// This package exists to break import cycles between session, skills, analysis
// and the orchestrator. Types here are plain data with no complex dependencies.
package types

import (
	"fmt"
	"strings"
)

// =============================================================================
// SEVERITY & TARGET
// =============================================================================

// Severity grades how badly a conflict blocks acceptance.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ParseSeverity accepts case-insensitive severity names.
func ParseSeverity(v string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(v))) {
	case SeverityLow:
		return SeverityLow, nil
	case SeverityMedium:
		return SeverityMedium, nil
	case SeverityHigh:
		return SeverityHigh, nil
	}
	return "", fmt.Errorf("unknown severity %q", v)
}

// Target names which producer owns the fix for a conflict.
type Target string

const (
	TargetSpec           Target = "SPEC"
	TargetImplementation Target = "IMPLEMENTATION"
	TargetBoth           Target = "BOTH"
)

// Valid reports whether t is one of the three conflict targets.
func (t Target) Valid() bool {
	return t == TargetSpec || t == TargetImplementation || t == TargetBoth
}

// Touches reports whether a conflict with target t concerns side.
func (t Target) Touches(side Target) bool {
	return t == side || t == TargetBoth
}

// =============================================================================
// CONFLICT TAXONOMY
// =============================================================================

// ConflictKind is the closed taxonomy of detectable mismatches.
type ConflictKind string

const (
	KindStructuralMismatch         ConflictKind = "structural_mismatch"
	KindMissingElement             ConflictKind = "missing_element"
	KindPropMismatch               ConflictKind = "prop_mismatch"
	KindIncorrectDataBinding       ConflictKind = "incorrect_data_binding"
	KindInteractionMismatch        ConflictKind = "interaction_mismatch"
	KindSchemaFieldNonexistent     ConflictKind = "schema_field_nonexistent"
	KindTypeMismatch               ConflictKind = "type_mismatch"
	KindNumericCategoricalMismatch ConflictKind = "numeric_categorical_mismatch"
	KindInvalidDomainAssumption    ConflictKind = "invalid_domain_assumption"
	KindDangerousCombination       ConflictKind = "dangerous_combination"
	KindIncorrectLabeling          ConflictKind = "incorrect_labeling"
	KindOutOfDomainPattern         ConflictKind = "out_of_domain_pattern"
	KindMissingDependency          ConflictKind = "missing_dependency"
	KindMissingRequiredProp        ConflictKind = "missing_required_prop"
	KindInvalidEventContract       ConflictKind = "invalid_event_contract"
)

// AllConflictKinds lists the taxonomy in declaration order.
var AllConflictKinds = []ConflictKind{
	KindStructuralMismatch,
	KindMissingElement,
	KindPropMismatch,
	KindIncorrectDataBinding,
	KindInteractionMismatch,
	KindSchemaFieldNonexistent,
	KindTypeMismatch,
	KindNumericCategoricalMismatch,
	KindInvalidDomainAssumption,
	KindDangerousCombination,
	KindIncorrectLabeling,
	KindOutOfDomainPattern,
	KindMissingDependency,
	KindMissingRequiredProp,
	KindInvalidEventContract,
}

// Valid reports membership in the taxonomy.
func (k ConflictKind) Valid() bool {
	for _, known := range AllConflictKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ConflictStatus tracks whether a conflict still shows up in analysis.
type ConflictStatus string

const (
	ConflictOpen     ConflictStatus = "open"
	ConflictResolved ConflictStatus = "resolved"
)

// Conflict is a detected mismatch between specification, implementation,
// schema or domain rules.
type Conflict struct {
	ID          string       `json:"id,omitempty" yaml:"id,omitempty"`
	Kind        ConflictKind `json:"kind" yaml:"kind"`
	Source      string       `json:"source" yaml:"source"`
	Description string       `json:"description" yaml:"description"`
	Severity    Severity     `json:"severity" yaml:"severity"`
	Target      Target       `json:"target" yaml:"target"`
	Path        string       `json:"path" yaml:"path"`

	// Artifact names the implementation file implicated, when one is known.
	Artifact     string         `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Status       ConflictStatus `json:"status,omitempty" yaml:"status,omitempty"`
	DetectedStep int            `json:"detected_step,omitempty" yaml:"detected_step,omitempty"`
}

// ConflictKey identifies a conflict for deduplication.
type ConflictKey struct {
	Kind ConflictKind
	Path string
}

// Key returns the (kind, path) deduplication key.
func (c Conflict) Key() ConflictKey {
	return ConflictKey{Kind: c.Kind, Path: c.Path}
}

// IsOpen reports whether the conflict is unresolved. An empty status counts as open.
func (c Conflict) IsOpen() bool {
	return c.Status == "" || c.Status == ConflictOpen
}

// String renders a single-line summary for logs.
func (c Conflict) String() string {
	return fmt.Sprintf("[%s/%s] %s %s: %s", c.Severity, c.Target, c.Kind, c.Path, c.Description)
}
