package conditional

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"meridian-hq/veristat/pkg/rules/ast"
	"meridian-hq/veristat/pkg/rules/constraint"
)

// Evaluator evaluates compatibility rules against records. It never fails a
// record: malformed rules and unevaluable constraints are logged (once per
// rule) and skipped, and everything else reduces to violations or silence.
// Safe for concurrent use across disjoint records.
type Evaluator struct {
	constraints constraint.Evaluator
	logger      *slog.Logger

	// skipped tracks malformed or unevaluable rules already logged, keyed by
	// rule identifier. Configuration errors are per-run, not per-record.
	skipped sync.Map
}

// New creates a conditional rule evaluator over the given constraint
// primitive.
func New(constraints constraint.Evaluator, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		constraints: constraints,
		logger:      logger.With("component", "rules.conditional"),
	}
}

// Evaluate applies every compatibility rule to the record and returns the
// violations from rules whose if-clause is satisfied. Within a rule, fields
// are visited in lexicographic order so results and short-circuit behavior
// are reproducible.
func (e *Evaluator) Evaluate(rec *ast.Record, rules []ast.CompatibilityRule) []ast.Violation {
	var violations []ast.Violation

	for i := range rules {
		rule := &rules[i]
		id := ruleID(rule, i)

		if len(rule.If) == 0 || len(rule.Then) == 0 {
			e.skipOnce(id, "compatibility rule missing if or then clause")
			continue
		}

		if !e.ifSatisfied(rec, rule, id) {
			// Vacuously true: the then-clause is not evaluated.
			continue
		}

		for _, field := range sortedFields(rule.Then) {
			spec := rule.Then[field]
			value, present := rec.Value(field)
			if !present || ast.IsMissing(value) {
				violations = append(violations, ast.Violation{
					Field:   field,
					Rule:    id,
					Message: "required by compatibility rule but missing",
				})
				continue
			}

			ok, err := e.constraints.Evaluate(value, spec)
			if err != nil {
				e.skipOnce(id, fmt.Sprintf("unevaluable then-constraint on %q: %v", field, err))
				continue
			}
			if !ok {
				violations = append(violations, ast.Violation{
					Field:   field,
					Rule:    id,
					Message: fmt.Sprintf("value %v does not satisfy compatibility rule", value),
				})
			}
		}
	}

	return violations
}

// ifSatisfied combines the per-field condition results under the rule's
// operator. AND short-circuits on the first unsatisfied field; OR keeps
// scanning past missing fields until one satisfies.
func (e *Evaluator) ifSatisfied(rec *ast.Record, rule *ast.CompatibilityRule, id string) bool {
	fields := sortedFields(rule.If)

	if rule.EffectiveOperator() == ast.OperatorOr {
		for _, field := range fields {
			if e.fieldSatisfied(rec, field, rule.If[field], id) {
				return true
			}
		}
		return false
	}

	for _, field := range fields {
		if !e.fieldSatisfied(rec, field, rule.If[field], id) {
			return false
		}
	}
	return true
}

// fieldSatisfied reports whether one if-clause field's condition holds.
// Absent, empty, null and NaN values are not satisfied; this applies to
// cross-form fields exactly as to the instrument's own.
func (e *Evaluator) fieldSatisfied(rec *ast.Record, field string, spec ast.FieldConstraint, id string) bool {
	value, present := rec.Value(field)
	if !present || ast.IsMissing(value) {
		return false
	}

	ok, err := e.constraints.Evaluate(value, spec)
	if err != nil {
		// The primitive's contract: an error marks the constraint itself as
		// unevaluable, treated as not satisfied.
		e.skipOnce(id, fmt.Sprintf("unevaluable if-constraint on %q: %v", field, err))
		return false
	}
	return ok
}

// skipOnce logs a configuration-level problem for a rule exactly once.
func (e *Evaluator) skipOnce(id, message string) {
	if _, loaded := e.skipped.LoadOrStore(id+"\x1f"+message, struct{}{}); loaded {
		return
	}
	e.logger.Warn("compatibility rule skipped",
		"rule", id,
		"reason", message,
	)
}

// ruleID returns the rule's identifier for violations and logs.
func ruleID(rule *ast.CompatibilityRule, index int) string {
	if rule.Name != "" {
		return rule.Name
	}
	return fmt.Sprintf("compat[%d]", index)
}

// sortedFields returns the clause's field names in lexicographic order.
func sortedFields(clause map[string]ast.FieldConstraint) []string {
	fields := make([]string, 0, len(clause))
	for field := range clause {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
