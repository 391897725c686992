package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"meridian-hq/veristat/pkg/rules/ast"
	"meridian-hq/veristat/pkg/rules/constraint"
	"meridian-hq/veristat/pkg/rules/resolver"
	"meridian-hq/veristat/pkg/rules/store"
)

func writeRuleFile(t *testing.T, root, category, name, content string) {
	t.Helper()
	dir := filepath.Join(root, category)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write rule file: %v", err)
	}
}

// newTestEngine builds an engine over a small rule tree:
//
//	initial/sleep.yaml     base with field and compatibility rules
//	initial/sleep_v2.yaml  variant tightening the apnea range
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	root := t.TempDir()

	writeRuleFile(t, root, "initial", "sleep", `
fields:
  apnea:
    required: true
    type: integer
    min: 0
    max: 30
  site:
    type: text
compatibility:
  - name: apnea-requires-diagnosis
    if:
      apneadx:
        allowed: [1]
    then:
      apnea:
        min: 1
`)
	writeRuleFile(t, root, "initial", "sleep_v2", `
fields:
  apnea:
    required: true
    type: integer
    min: 0
    max: 90
`)

	st := store.New(store.DefaultConfig(root))
	router := resolver.NewCategoryRuleRouter(st, nil, nil)
	res := resolver.New(st, router, nil, nil, nil, nil)
	return New(res, constraint.NewDefault(), nil, nil, nil)
}

func sleepInstrument() *ast.Instrument {
	return &ast.Instrument{
		Name:              "sleep",
		Kind:              ast.KindDynamic,
		DiscriminantField: "sleepformver",
		Variants:          map[string]string{"2": "sleep_v2"},
	}
}

func TestValidateRecordClean(t *testing.T) {
	e := newTestEngine(t)

	rec := &ast.Record{
		ID:       "r1",
		Category: "initial",
		Fields:   map[string]any{"apnea": 5, "site": "mayo", "sleepformver": 2},
	}
	result, err := e.ValidateRecord(context.Background(), sleepInstrument(), rec)
	if err != nil {
		t.Fatalf("ValidateRecord() error = %v", err)
	}

	if len(result.Violations) != 0 {
		t.Errorf("violations = %+v, want none", result.Violations)
	}
	if result.Variant != "sleep_v2" || result.FellBack {
		t.Errorf("result = %+v, want variant sleep_v2", result)
	}
	if result.RecordID != "r1" || result.Category != "initial" || result.Instrument != "sleep" {
		t.Errorf("result identity = %+v", result)
	}
}

func TestValidateRecordRequiredFieldMissing(t *testing.T) {
	e := newTestEngine(t)

	rec := &ast.Record{
		ID:       "r2",
		Category: "initial",
		Fields:   map[string]any{"sleepformver": 2},
	}
	result, err := e.ValidateRecord(context.Background(), sleepInstrument(), rec)
	if err != nil {
		t.Fatalf("ValidateRecord() error = %v", err)
	}

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %+v, want one", result.Violations)
	}
	v := result.Violations[0]
	if v.Field != "apnea" || v.Rule != "field:apnea" {
		t.Errorf("violation = %+v", v)
	}
}

func TestValidateRecordConstraintViolation(t *testing.T) {
	e := newTestEngine(t)

	// 40 exceeds the base max of 30; the record falls back (no discriminant)
	// so the variant's looser max of 90 must not apply.
	rec := &ast.Record{
		ID:       "r3",
		Category: "initial",
		Fields:   map[string]any{"apnea": 40},
	}
	result, err := e.ValidateRecord(context.Background(), sleepInstrument(), rec)
	if err != nil {
		t.Fatalf("ValidateRecord() error = %v", err)
	}

	if !result.FellBack {
		t.Error("result did not report fallback")
	}
	if len(result.Violations) != 1 || result.Violations[0].Field != "apnea" {
		t.Errorf("violations = %+v, want one on apnea", result.Violations)
	}
}

func TestValidateRecordVariantRelaxesConstraint(t *testing.T) {
	e := newTestEngine(t)

	// The same value passes under the variant's max of 90.
	rec := &ast.Record{
		ID:       "r4",
		Category: "initial",
		Fields:   map[string]any{"apnea": 40, "sleepformver": 2},
	}
	result, err := e.ValidateRecord(context.Background(), sleepInstrument(), rec)
	if err != nil {
		t.Fatalf("ValidateRecord() error = %v", err)
	}

	if len(result.Violations) != 0 {
		t.Errorf("violations = %+v, want none under variant rules", result.Violations)
	}
}

func TestValidateRecordConditionalViolation(t *testing.T) {
	e := newTestEngine(t)

	rec := &ast.Record{
		ID:       "r5",
		Category: "initial",
		Fields:   map[string]any{"apnea": 0, "apneadx": 1},
	}
	result, err := e.ValidateRecord(context.Background(), sleepInstrument(), rec)
	if err != nil {
		t.Fatalf("ValidateRecord() error = %v", err)
	}

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %+v, want one", result.Violations)
	}
	if result.Violations[0].Rule != "apnea-requires-diagnosis" {
		t.Errorf("violation = %+v", result.Violations[0])
	}
}

func TestValidateRecordConditionalVacuous(t *testing.T) {
	e := newTestEngine(t)

	// apneadx absent: apnea=0 is fine.
	rec := &ast.Record{
		ID:       "r6",
		Category: "initial",
		Fields:   map[string]any{"apnea": 0},
	}
	result, err := e.ValidateRecord(context.Background(), sleepInstrument(), rec)
	if err != nil {
		t.Fatalf("ValidateRecord() error = %v", err)
	}

	if len(result.Violations) != 0 {
		t.Errorf("violations = %+v, want none", result.Violations)
	}
}

func TestValidateRecordMissingBaseIsError(t *testing.T) {
	e := newTestEngine(t)

	rec := &ast.Record{
		ID:       "r7",
		Category: "baseline",
		Fields:   map[string]any{"apnea": 1},
	}
	_, err := e.ValidateRecord(context.Background(), sleepInstrument(), rec)
	if !store.IsNotFound(err) {
		t.Fatalf("ValidateRecord() = %v, want not-found error", err)
	}
}

func TestValidateBatchOrderAndIsolation(t *testing.T) {
	e := newTestEngine(t)
	inst := sleepInstrument()

	items := []BatchItem{
		{Instrument: inst, Record: &ast.Record{ID: "a", Category: "initial", Fields: map[string]any{"apnea": 1}}},
		{Instrument: inst, Record: &ast.Record{ID: "b", Category: "baseline", Fields: map[string]any{"apnea": 1}}},
		{Instrument: inst, Record: &ast.Record{ID: "c", Category: "initial", Fields: map[string]any{"apnea": 40}}},
	}

	results := e.ValidateBatch(context.Background(), items)

	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if results[0].Err != nil || results[0].Result.RecordID != "a" {
		t.Errorf("results[0] = %+v", results[0])
	}
	if !store.IsNotFound(results[1].Err) {
		t.Errorf("results[1].Err = %v, want not-found", results[1].Err)
	}
	if results[2].Err != nil || len(results[2].Result.Violations) != 1 {
		t.Errorf("results[2] = %+v", results[2])
	}
}

func TestValidateBatchEmpty(t *testing.T) {
	e := newTestEngine(t)

	results := e.ValidateBatch(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("results = %+v, want empty", results)
	}
}

func TestValidateBatchManyRecords(t *testing.T) {
	e := newTestEngine(t)
	inst := sleepInstrument()

	items := make([]BatchItem, 50)
	for i := range items {
		items[i] = BatchItem{
			Instrument: inst,
			Record: &ast.Record{
				ID:       string(rune('a' + i%26)),
				Category: "initial",
				Fields:   map[string]any{"apnea": i % 31, "sleepformver": 2},
			},
		}
	}

	results := e.ValidateBatch(context.Background(), items)
	for i, br := range results {
		if br.Err != nil {
			t.Fatalf("results[%d].Err = %v", i, br.Err)
		}
		if len(br.Result.Violations) != 0 {
			t.Errorf("results[%d] violations = %+v", i, br.Result.Violations)
		}
	}
}
