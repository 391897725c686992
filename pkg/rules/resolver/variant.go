package resolver

import (
	"meridian-hq/veristat/pkg/rules/ast"
)

// Fallback reasons reported when a dynamic instrument degrades to its base
// rule set.
const (
	// ReasonMissingField means the record has no discriminant field at all.
	ReasonMissingField = "missing_field"

	// ReasonEmptyValue means the discriminant field is present but empty,
	// null or NaN.
	ReasonEmptyValue = "empty_value"

	// ReasonUnmappedValue means the discriminant value is not declared in
	// the instrument's variant map.
	ReasonUnmappedValue = "unmapped_value"

	// ReasonVariantNotFound means the discriminant resolved but the variant
	// rule document does not exist on disk.
	ReasonVariantNotFound = "variant_not_found"
)

// Discriminant is the outcome of reading a dynamic instrument's discriminant
// field from a record.
type Discriminant struct {
	// Value is the canonical discriminant value, empty when the field is
	// missing or empty.
	Value string

	// Resolved reports whether Value maps to a declared variant.
	Resolved bool

	// RuleID is the variant rule file identifier when Resolved.
	RuleID string

	// Reason is the fallback reason when not Resolved.
	Reason string
}

// VariantResolver extracts discriminant values from records and maps them to
// variant rule file identifiers. For static instruments every method reports
// an unresolved outcome; an unresolved discriminant is a normal condition,
// never an error.
type VariantResolver struct{}

// NewVariantResolver creates a variant resolver.
func NewVariantResolver() *VariantResolver {
	return &VariantResolver{}
}

// Discriminate classifies the record's discriminant for the instrument.
func (v *VariantResolver) Discriminate(inst *ast.Instrument, rec *ast.Record) Discriminant {
	if inst == nil || !inst.IsDynamic() {
		return Discriminant{}
	}

	raw, present := rec.Value(inst.DiscriminantField)
	if !present {
		return Discriminant{Reason: ReasonMissingField}
	}

	value := ast.CanonicalValue(raw)
	if value == "" {
		return Discriminant{Reason: ReasonEmptyValue}
	}

	ruleID, ok := inst.Variants[value]
	if !ok {
		return Discriminant{Value: value, Reason: ReasonUnmappedValue}
	}

	return Discriminant{Value: value, Resolved: true, RuleID: ruleID}
}

// DiscriminantValue returns the canonical discriminant value for the record,
// and whether it resolved to a declared variant.
func (v *VariantResolver) DiscriminantValue(inst *ast.Instrument, rec *ast.Record) (string, bool) {
	d := v.Discriminate(inst, rec)
	return d.Value, d.Resolved
}

// VariantRuleID returns the rule file identifier declared for the given
// discriminant value.
func (v *VariantResolver) VariantRuleID(inst *ast.Instrument, value string) (string, bool) {
	if inst == nil || !inst.IsDynamic() {
		return "", false
	}
	ruleID, ok := inst.Variants[value]
	return ruleID, ok
}
