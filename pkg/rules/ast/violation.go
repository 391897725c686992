package ast

import "fmt"

// Violation is a single validation failure for one field of one record.
type Violation struct {
	// Field is the canonical name of the offending field.
	Field string `json:"field"`

	// Rule identifies the rule that produced the violation, either a
	// compatibility rule name or a field-constraint identifier.
	Rule string `json:"rule"`

	// Message is the human-readable description.
	Message string `json:"message"`
}

// String implements fmt.Stringer.
func (v Violation) String() string {
	return fmt.Sprintf("%s: %s (%s)", v.Field, v.Message, v.Rule)
}
