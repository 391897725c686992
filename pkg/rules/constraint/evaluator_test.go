package constraint

import (
	"testing"

	"meridian-hq/veristat/pkg/rules/ast"
)

func floatPtr(f float64) *float64 { return &f }

func TestEvaluateEmptySpec(t *testing.T) {
	d := NewDefault()

	for _, v := range []any{1, "anything", true, 3.14} {
		ok, err := d.Evaluate(v, ast.FieldConstraint{})
		if err != nil {
			t.Fatalf("Evaluate(%v, empty) error = %v", v, err)
		}
		if !ok {
			t.Errorf("Evaluate(%v, empty) = false, want true", v)
		}
	}
}

func TestEvaluateType(t *testing.T) {
	tests := []struct {
		name  string
		value any
		typ   string
		want  bool
	}{
		{"int is integer", 3, "integer", true},
		{"whole float is integer", 3.0, "integer", true},
		{"numeric string is integer", "3", "integer", true},
		{"fractional is not integer", 3.5, "integer", false},
		{"text is not integer", "abc", "integer", false},
		{"fractional is number", 3.5, "number", true},
		{"numeric string is number", "3.5", "number", true},
		{"string is text", "abc", "text", true},
		{"int is not text", 3, "text", false},
		{"iso date", "2024-03-15", "date", true},
		{"us date", "03/15/2024", "date", true},
		{"bad date", "15-03-2024", "date", false},
		{"non-string date", 20240315, "date", false},
	}

	d := NewDefault()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := d.Evaluate(tt.value, ast.FieldConstraint{Type: tt.typ})
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if ok != tt.want {
				t.Errorf("Evaluate(%v, type=%s) = %v, want %v", tt.value, tt.typ, ok, tt.want)
			}
		})
	}
}

func TestEvaluateUnknownTypeIsError(t *testing.T) {
	d := NewDefault()

	_, err := d.Evaluate(1, ast.FieldConstraint{Type: "quaternion"})
	if err == nil {
		t.Fatal("Evaluate with unknown type returned nil error")
	}
}

func TestEvaluateAllowed(t *testing.T) {
	spec := ast.FieldConstraint{Allowed: []any{0, 1, "9"}}

	tests := []struct {
		value any
		want  bool
	}{
		{1, true},
		{1.0, true},
		{"1", true},
		{9, true},
		{"9", true},
		{2, false},
		{"no", false},
	}

	d := NewDefault()
	for _, tt := range tests {
		ok, err := d.Evaluate(tt.value, spec)
		if err != nil {
			t.Fatalf("Evaluate(%v) error = %v", tt.value, err)
		}
		if ok != tt.want {
			t.Errorf("Evaluate(%v, allowed) = %v, want %v", tt.value, ok, tt.want)
		}
	}
}

func TestEvaluateRange(t *testing.T) {
	spec := ast.FieldConstraint{Min: floatPtr(0), Max: floatPtr(30)}

	tests := []struct {
		value any
		want  bool
	}{
		{0, true},
		{30, true},
		{15.5, true},
		{"12", true},
		{-1, false},
		{31, false},
		{"not a number", false},
	}

	d := NewDefault()
	for _, tt := range tests {
		ok, err := d.Evaluate(tt.value, spec)
		if err != nil {
			t.Fatalf("Evaluate(%v) error = %v", tt.value, err)
		}
		if ok != tt.want {
			t.Errorf("Evaluate(%v, 0..30) = %v, want %v", tt.value, ok, tt.want)
		}
	}
}

func TestEvaluatePattern(t *testing.T) {
	spec := ast.FieldConstraint{Pattern: `^[A-Z]{2}\d{4}$`}

	d := NewDefault()

	ok, err := d.Evaluate("AB1234", spec)
	if err != nil || !ok {
		t.Errorf("Evaluate(AB1234) = %v, %v; want true, nil", ok, err)
	}

	ok, err = d.Evaluate("nope", spec)
	if err != nil || ok {
		t.Errorf("Evaluate(nope) = %v, %v; want false, nil", ok, err)
	}
}

func TestEvaluateInvalidPatternIsError(t *testing.T) {
	d := NewDefault()

	_, err := d.Evaluate("x", ast.FieldConstraint{Pattern: "(unclosed"})
	if err == nil {
		t.Fatal("Evaluate with invalid pattern returned nil error")
	}

	// The failed pattern must not poison the cache for valid ones.
	ok, err := d.Evaluate("x", ast.FieldConstraint{Pattern: "^x$"})
	if err != nil || !ok {
		t.Errorf("Evaluate after invalid pattern = %v, %v; want true, nil", ok, err)
	}
}

func TestEvaluateCombinedChecks(t *testing.T) {
	spec := ast.FieldConstraint{
		Type: "integer",
		Min:  floatPtr(1),
		Max:  floatPtr(5),
	}

	d := NewDefault()

	ok, err := d.Evaluate(3, spec)
	if err != nil || !ok {
		t.Errorf("Evaluate(3) = %v, %v; want true, nil", ok, err)
	}

	// Passes type, fails range.
	ok, err = d.Evaluate(9, spec)
	if err != nil || ok {
		t.Errorf("Evaluate(9) = %v, %v; want false, nil", ok, err)
	}

	// Fails type before range is consulted.
	ok, err = d.Evaluate(2.5, spec)
	if err != nil || ok {
		t.Errorf("Evaluate(2.5) = %v, %v; want false, nil", ok, err)
	}
}
