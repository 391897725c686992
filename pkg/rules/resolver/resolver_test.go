package resolver

import (
	"math"
	"testing"

	"meridian-hq/veristat/pkg/rules/ast"
	"meridian-hq/veristat/pkg/rules/store"
)

// newTestTree builds a rule tree with a static and a dynamic instrument:
//
//	initial/demographics.yaml  static base
//	initial/sleep.yaml         dynamic base
//	initial/sleep_v2.yaml      variant for sleepformver=2
//	followup/sleep.yaml        dynamic base, different constraints
//
// Variant "3" is declared in the instrument but has no file on disk.
func newTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeRuleFile(t, root, "initial", "demographics", `
fields:
  age:
    required: true
    type: integer
`)
	writeRuleFile(t, root, "initial", "sleep", `
fields:
  apnea:
    required: true
    type: integer
    min: 0
    max: 30
  site:
    required: true
`)
	writeRuleFile(t, root, "initial", "sleep_v2", `
fields:
  apnea:
    required: true
    type: integer
    min: 1
    max: 90
  ahi:
    type: number
`)
	writeRuleFile(t, root, "followup", "sleep", `
fields:
  apnea:
    min: 5
`)

	return root
}

func testInstruments() (*ast.Instrument, *ast.Instrument) {
	static := &ast.Instrument{Name: "demographics", Kind: ast.KindStatic}
	dynamic := &ast.Instrument{
		Name:              "sleep",
		Kind:              ast.KindDynamic,
		DiscriminantField: "sleepformver",
		Variants: map[string]string{
			"1": "sleep_v1",
			"2": "sleep_v2",
			"3": "sleep_v3",
		},
	}
	return static, dynamic
}

func newTestResolver(t *testing.T, root string) (*HierarchicalRuleResolver, *CategoryRuleRouter) {
	t.Helper()
	st := store.New(store.DefaultConfig(root))
	router := NewCategoryRuleRouter(st, nil, nil)
	return New(st, router, nil, nil, nil, nil), router
}

func sleepRecord(value any) *ast.Record {
	rec := &ast.Record{
		ID:       "r1",
		Category: "initial",
		Fields:   map[string]any{"apnea": 3},
	}
	if value != noRecordField {
		rec.Fields["sleepformver"] = value
	}
	return rec
}

// noRecordField marks "leave the discriminant out entirely".
var noRecordField = struct{}{}

func TestResolveStatic(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	static, _ := testInstruments()

	rec := &ast.Record{Category: "initial", Fields: map[string]any{"age": 40}}
	resolved, err := r.Resolve("initial", static, rec)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if resolved.FellBack || resolved.Variant != "" {
		t.Errorf("static resolution = %+v, want plain base", resolved)
	}
	if !resolved.Rules.Fields["age"].Required {
		t.Error("base rules not loaded")
	}
}

func TestResolveVariantMerge(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	_, dynamic := testInstruments()

	resolved, err := r.Resolve("initial", dynamic, sleepRecord(2))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if resolved.FellBack {
		t.Fatalf("resolution fell back: %+v", resolved)
	}
	if resolved.Variant != "sleep_v2" || resolved.Discriminant != "2" {
		t.Errorf("resolution = %+v, want variant sleep_v2", resolved)
	}

	// Variant entry overrides the base entry.
	if got := *resolved.Rules.Fields["apnea"].Min; got != 1 {
		t.Errorf("merged apnea min = %v, want 1", got)
	}
	// Variant-only entry present.
	if _, ok := resolved.Rules.Fields["ahi"]; !ok {
		t.Error("variant-only field ahi missing")
	}
	// Base-only entry survives.
	if !resolved.Rules.Fields["site"].Required {
		t.Error("base-only field site lost in merge")
	}
}

func TestResolveIdempotent(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	_, dynamic := testInstruments()

	first, err := r.Resolve("initial", dynamic, sleepRecord(2))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	second, err := r.Resolve("initial", dynamic, sleepRecord(2))
	if err != nil {
		t.Fatalf("Resolve() second call error = %v", err)
	}

	if first != second {
		t.Error("repeated resolution returned a different entry")
	}
}

func TestResolveDiscriminantCanonicalEquivalence(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	_, dynamic := testInstruments()

	first, err := r.Resolve("initial", dynamic, sleepRecord(2))
	if err != nil {
		t.Fatalf("Resolve(2) error = %v", err)
	}

	for _, raw := range []any{2.0, "2", " 2 "} {
		resolved, err := r.Resolve("initial", dynamic, sleepRecord(raw))
		if err != nil {
			t.Fatalf("Resolve(%v) error = %v", raw, err)
		}
		if resolved != first {
			t.Errorf("Resolve(%T %v) produced a different entry", raw, raw)
		}
	}
}

func TestResolveFallbackReasons(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		reason string
	}{
		{"missing field", noRecordField, ReasonMissingField},
		{"nil value", nil, ReasonEmptyValue},
		{"empty string", "", ReasonEmptyValue},
		{"nan", math.NaN(), ReasonEmptyValue},
		{"unmapped value", 9, ReasonUnmappedValue},
		{"variant file missing", 3, ReasonVariantNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, router := newTestResolver(t, newTestTree(t))
			_, dynamic := testInstruments()

			resolved, err := r.Resolve("initial", dynamic, sleepRecord(tt.value))
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}

			if !resolved.FellBack || resolved.FallbackReason != tt.reason {
				t.Fatalf("resolution = %+v, want fallback %q", resolved, tt.reason)
			}
			if resolved.Variant != "" {
				t.Errorf("fallback carries variant %q", resolved.Variant)
			}

			// Fallback serves exactly the base rule set.
			base, err := router.BaseRules("initial", "sleep")
			if err != nil {
				t.Fatalf("BaseRules() error = %v", err)
			}
			if resolved.Rules != base {
				t.Error("fallback rules differ from base rules")
			}
		})
	}
}

func TestResolveMissingBaseIsError(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	_, dynamic := testInstruments()

	rec := &ast.Record{Category: "baseline", Fields: map[string]any{"sleepformver": 2}}
	_, err := r.Resolve("baseline", dynamic, rec)
	if !store.IsNotFound(err) {
		t.Fatalf("Resolve() with no base file = %v, want not-found error", err)
	}
}

func TestResolveMalformedVariantIsError(t *testing.T) {
	root := newTestTree(t)
	writeRuleFile(t, root, "initial", "sleep_v3", "fields: [broken\n")

	r, _ := newTestResolver(t, root)
	_, dynamic := testInstruments()

	_, err := r.Resolve("initial", dynamic, sleepRecord(3))
	if err == nil {
		t.Fatal("Resolve() with malformed variant returned nil error")
	}
	if store.IsNotFound(err) {
		t.Error("malformed variant reported as not-found")
	}
}

func TestResolveCategoryIsolation(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	_, dynamic := testInstruments()

	initial, err := r.Resolve("initial", dynamic, sleepRecord(noRecordField))
	if err != nil {
		t.Fatalf("Resolve(initial) error = %v", err)
	}

	followupRec := &ast.Record{Category: "followup", Fields: map[string]any{}}
	followup, err := r.Resolve("followup", dynamic, followupRec)
	if err != nil {
		t.Fatalf("Resolve(followup) error = %v", err)
	}

	if initial.Rules == followup.Rules {
		t.Error("categories share a rule set")
	}
	if *followup.Rules.Fields["apnea"].Min != 5 {
		t.Errorf("followup apnea min = %v, want 5", *followup.Rules.Fields["apnea"].Min)
	}
}

func TestPreload(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	static, dynamic := testInstruments()

	if err := r.Preload("initial", static); err != nil {
		t.Fatalf("Preload(static) error = %v", err)
	}
	if err := r.Preload("initial", dynamic); err != nil {
		t.Fatalf("Preload(dynamic) error = %v", err)
	}

	// sleep_v2 resolves; sleep_v1 and sleep_v3 have no file and preload as
	// fallbacks. Together with the static entry that is at least 3 entries.
	if got := r.CacheStats().Entries; got < 3 {
		t.Errorf("cache entries after preload = %d, want >= 3", got)
	}

	resolved, err := r.Resolve("initial", dynamic, sleepRecord(2))
	if err != nil {
		t.Fatalf("Resolve() after preload error = %v", err)
	}
	if resolved.Variant != "sleep_v2" {
		t.Errorf("post-preload resolution = %+v", resolved)
	}
}

func TestPreloadMissingBaseIsError(t *testing.T) {
	r, _ := newTestResolver(t, newTestTree(t))
	_, dynamic := testInstruments()

	if err := r.Preload("baseline", dynamic); !store.IsNotFound(err) {
		t.Fatalf("Preload() with no base = %v, want not-found error", err)
	}
}

func TestClearCache(t *testing.T) {
	root := newTestTree(t)
	r, router := newTestResolver(t, root)
	_, dynamic := testInstruments()

	if _, err := r.Resolve("initial", dynamic, sleepRecord(2)); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if r.CacheStats().Entries == 0 {
		t.Fatal("no cache entries before clear")
	}

	r.ClearCache()

	if got := r.CacheStats().Entries; got != 0 {
		t.Errorf("entries after clear = %d, want 0", got)
	}
	if got := router.CacheStats().Entries; got != 0 {
		t.Errorf("router entries after clear = %d, want 0", got)
	}

	// Rule edits are picked up after a clear.
	writeRuleFile(t, root, "initial", "sleep_v2", `
fields:
  apnea:
    min: 7
`)
	resolved, err := r.Resolve("initial", dynamic, sleepRecord(2))
	if err != nil {
		t.Fatalf("Resolve() after clear error = %v", err)
	}
	if got := *resolved.Rules.Fields["apnea"].Min; got != 7 {
		t.Errorf("post-clear apnea min = %v, want 7", got)
	}
}
