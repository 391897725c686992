package ast

import "strings"

// Operator combines the per-field results of a compatibility rule's if-clause.
type Operator string

const (
	// OperatorAnd requires every if-clause field to be satisfied.
	OperatorAnd Operator = "and"

	// OperatorOr requires at least one if-clause field to be satisfied.
	OperatorOr Operator = "or"
)

// FieldConstraint is the constraint specification for a single field.
// Interpretation of the specification belongs to the constraint evaluator
// (pkg/rules/constraint by default); the resolution core passes it through
// untouched.
type FieldConstraint struct {
	// Required marks the field as mandatory for the instrument.
	Required bool `yaml:"required,omitempty"`

	// Type is the expected value type: "integer", "number", "text" or "date".
	Type string `yaml:"type,omitempty"`

	// Allowed is the closed set of permitted values.
	Allowed []any `yaml:"allowed,omitempty"`

	// Min is the inclusive lower bound for numeric values.
	Min *float64 `yaml:"min,omitempty"`

	// Max is the inclusive upper bound for numeric values.
	Max *float64 `yaml:"max,omitempty"`

	// Pattern is a regular expression the value must match.
	Pattern string `yaml:"pattern,omitempty"`
}

// CompatibilityRule is a conditional cross-field rule: when the if-clause is
// satisfied, every field in the then-clause must satisfy its constraint.
type CompatibilityRule struct {
	// Name is an optional identifier used in violations and logs.
	Name string `yaml:"name,omitempty"`

	// If maps field names to the constraints that trigger the rule.
	If map[string]FieldConstraint `yaml:"if"`

	// Then maps field names to the constraints enforced when triggered.
	Then map[string]FieldConstraint `yaml:"then"`

	// Operator combines the if-clause fields. Defaults to OperatorAnd.
	Operator Operator `yaml:"operator,omitempty"`
}

// EffectiveOperator returns the rule's operator, defaulting to AND.
func (r *CompatibilityRule) EffectiveOperator() Operator {
	if strings.EqualFold(string(r.Operator), string(OperatorOr)) {
		return OperatorOr
	}
	return OperatorAnd
}

// RuleSet is the parsed rule document for one (category, instrument[,
// variant]) combination: field constraints plus compatibility rules.
// A RuleSet returned by the resolver is immutable by convention; use Clone
// before mutating.
type RuleSet struct {
	// Fields maps canonical field names to their constraint specifications.
	Fields map[string]FieldConstraint `yaml:"fields"`

	// Compatibility is the list of cross-field conditional rules.
	Compatibility []CompatibilityRule `yaml:"compatibility,omitempty"`
}

// Clone returns a deep-enough copy of the rule set. Constraint values inside
// Allowed slices are shared; they are never mutated downstream.
func (rs *RuleSet) Clone() *RuleSet {
	if rs == nil {
		return nil
	}
	out := &RuleSet{
		Fields: make(map[string]FieldConstraint, len(rs.Fields)),
	}
	for name, c := range rs.Fields {
		out.Fields[name] = c
	}
	if len(rs.Compatibility) > 0 {
		out.Compatibility = make([]CompatibilityRule, len(rs.Compatibility))
		copy(out.Compatibility, rs.Compatibility)
	}
	return out
}

// Merge overlays a variant rule set on top of the base. Variant field entries
// override same-named base entries; base-only entries survive. A variant with
// a non-empty compatibility list replaces the base list, otherwise the base
// list is kept. Neither input is mutated.
func (rs *RuleSet) Merge(variant *RuleSet) *RuleSet {
	merged := rs.Clone()
	if variant == nil {
		return merged
	}
	for name, c := range variant.Fields {
		merged.Fields[name] = c
	}
	if len(variant.Compatibility) > 0 {
		merged.Compatibility = make([]CompatibilityRule, len(variant.Compatibility))
		copy(merged.Compatibility, variant.Compatibility)
	}
	return merged
}

// CanonicalFieldName normalizes a field name for lookup: lower-cased with
// surrounding whitespace removed. Applied once at parse time so downstream
// lookups are exact-match.
func CanonicalFieldName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
