package ast

import (
	"math"
	"testing"
)

func TestRecordValueCanonicalLookup(t *testing.T) {
	rec := &Record{
		Category: "initial",
		Fields: map[string]any{
			"apnea": 1,
		},
	}

	if _, ok := rec.Value("APNEA"); !ok {
		t.Error("lookup by upper-cased name failed")
	}
	if _, ok := rec.Value("  apnea "); !ok {
		t.Error("lookup with surrounding whitespace failed")
	}
	if _, ok := rec.Value("missing"); ok {
		t.Error("lookup of absent field succeeded")
	}
}

func TestRecordCanonicalize(t *testing.T) {
	rec := &Record{
		Fields: map[string]any{
			"  Visit ": "v1",
			"AGE":      42,
		},
	}
	rec.Canonicalize()

	if _, ok := rec.Fields["visit"]; !ok {
		t.Error("Canonicalize did not rewrite whitespace key")
	}
	if _, ok := rec.Fields["age"]; !ok {
		t.Error("Canonicalize did not lower-case key")
	}
	if len(rec.Fields) != 2 {
		t.Errorf("Canonicalize produced %d keys, want 2", len(rec.Fields))
	}
}

func TestIsMissing(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, true},
		{"empty string", "", true},
		{"whitespace string", "   ", true},
		{"nan", math.NaN(), true},
		{"zero", 0, false},
		{"zero float", 0.0, false},
		{"false", false, false},
		{"text", "x", false},
	}

	for _, tt := range tests {
		if got := IsMissing(tt.v); got != tt.want {
			t.Errorf("%s: IsMissing(%v) = %v, want %v", tt.name, tt.v, got, tt.want)
		}
	}
}

func TestCanonicalValueNumericEquivalence(t *testing.T) {
	want := CanonicalValue(1)
	for _, v := range []any{1, int64(1), 1.0, float32(1), "1"} {
		if got := CanonicalValue(v); got != want {
			t.Errorf("CanonicalValue(%T %v) = %q, want %q", v, v, got, want)
		}
	}
}

func TestCanonicalValueMissing(t *testing.T) {
	for _, v := range []any{nil, "", "  ", math.NaN()} {
		if got := CanonicalValue(v); got != "" {
			t.Errorf("CanonicalValue(%v) = %q, want empty", v, got)
		}
	}
}

func TestCanonicalValueScalars(t *testing.T) {
	tests := []struct {
		v    any
		want string
	}{
		{true, "true"},
		{2.5, "2.5"},
		{"  abc ", "abc"},
		{int64(-3), "-3"},
	}

	for _, tt := range tests {
		if got := CanonicalValue(tt.v); got != tt.want {
			t.Errorf("CanonicalValue(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
