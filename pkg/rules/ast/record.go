package ast

import (
	"math"
	"strconv"
	"strings"
)

// Record is a single clinical-research record: a loose mapping from field
// name to value annotated with its category. A record frequently carries
// fields belonging to instruments other than the one being validated
// (cross-form fields); those are looked up with the same semantics as the
// instrument's own fields.
type Record struct {
	// ID identifies the record for reporting. Optional.
	ID string `yaml:"id,omitempty"`

	// Category is the record's packet classification, assigned before
	// resolution and never mutated.
	Category string `yaml:"category"`

	// Fields maps canonical field names to raw values.
	Fields map[string]any `yaml:"fields"`
}

// Value returns the raw value for a field and whether the field is present
// at all. Field names are canonicalized before lookup.
func (r *Record) Value(field string) (any, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[CanonicalFieldName(field)]
	return v, ok
}

// Canonicalize rewrites the record's field keys to canonical form. Call once
// after ingesting a record from an external source.
func (r *Record) Canonicalize() {
	if r == nil || r.Fields == nil {
		return
	}
	fields := make(map[string]any, len(r.Fields))
	for name, v := range r.Fields {
		fields[CanonicalFieldName(name)] = v
	}
	r.Fields = fields
}

// IsMissing reports whether a field value counts as missing for condition
// evaluation: nil, empty string, or NaN. A present-but-missing value must
// never be conflated with a present value that fails its constraint.
func IsMissing(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case float64:
		return math.IsNaN(val)
	case float32:
		return math.IsNaN(float64(val))
	default:
		return false
	}
}

// CanonicalValue renders a scalar value as the canonical string used for
// discriminant comparison, so a record holding 1, 1.0 or "1" selects the
// same variant. Missing values canonicalize to the empty string.
func CanonicalValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if math.IsNaN(val) {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return CanonicalValue(float64(val))
	default:
		return ""
	}
}
