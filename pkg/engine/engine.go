package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"meridian-hq/veristat/pkg/rules/ast"
	"meridian-hq/veristat/pkg/rules/conditional"
	"meridian-hq/veristat/pkg/rules/constraint"
	"meridian-hq/veristat/pkg/rules/resolver"
	"meridian-hq/veristat/pkg/telemetry/metrics"
)

// Config contains configuration for the validation engine.
type Config struct {
	// Workers is the batch worker pool size (default: 4).
	Workers int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{Workers: 4}
}

// Result is the outcome of validating one record.
type Result struct {
	// RecordID echoes the record's identifier.
	RecordID string `json:"record_id"`

	// Category and Instrument identify what the record was validated as.
	Category   string `json:"category"`
	Instrument string `json:"instrument"`

	// Variant is the variant rule file used, empty for base resolutions.
	Variant string `json:"variant,omitempty"`

	// FellBack reports that resolution degraded to base rules.
	FellBack bool `json:"fell_back,omitempty"`

	// Violations is the merged list from field-level and compatibility
	// checks. Empty for a clean record.
	Violations []ast.Violation `json:"violations"`

	// Duration is the wall-clock validation time for the record.
	Duration time.Duration `json:"duration"`
}

// Engine validates records against resolved rule sets.
type Engine struct {
	resolver    *resolver.HierarchicalRuleResolver
	conditional *conditional.Evaluator
	constraints constraint.Evaluator
	config      *Config
	logger      *slog.Logger
	validation  *metrics.ValidationMetrics

	// fieldWarned guards once-per-field logging of unevaluable field
	// constraints.
	fieldWarned sync.Map
}

// New creates a validation engine. The metrics collector may be nil.
func New(res *resolver.HierarchicalRuleResolver, constraints constraint.Evaluator, config *Config, logger *slog.Logger, validation *metrics.ValidationMetrics) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver:    res,
		conditional: conditional.New(constraints, logger),
		constraints: constraints,
		config:      config,
		logger:      logger.With("component", "engine"),
		validation:  validation,
	}
}

// ValidateRecord validates a single record as the given instrument. The only
// error condition is a failed base-rule resolution; every recoverable
// condition reduces to violations or silence.
func (e *Engine) ValidateRecord(ctx context.Context, inst *ast.Instrument, rec *ast.Record) (*Result, error) {
	start := time.Now()

	resolved, err := e.resolver.Resolve(rec.Category, inst, rec)
	if err != nil {
		return nil, err
	}

	fieldViolations := e.checkFields(inst, resolved.Rules, rec)
	compatViolations := e.conditional.Evaluate(rec, resolved.Rules.Compatibility)

	violations := make([]ast.Violation, 0, len(fieldViolations)+len(compatViolations))
	violations = append(violations, fieldViolations...)
	violations = append(violations, compatViolations...)

	duration := time.Since(start)
	e.validation.RecordValidation(rec.Category, inst.Name, duration)
	e.validation.RecordViolations(rec.Category, inst.Name, "field", len(fieldViolations))
	e.validation.RecordViolations(rec.Category, inst.Name, "compatibility", len(compatViolations))

	e.logger.Debug("record validated",
		"record_id", rec.ID,
		"category", rec.Category,
		"instrument", inst.Name,
		"violations", len(violations),
		"fell_back", resolved.FellBack,
	)

	return &Result{
		RecordID:   rec.ID,
		Category:   rec.Category,
		Instrument: inst.Name,
		Variant:    resolved.Variant,
		FellBack:   resolved.FellBack,
		Violations: violations,
		Duration:   duration,
	}, nil
}

// checkFields applies the resolved field-level constraints to the record.
// Missing values violate only Required constraints; present values are
// evaluated through the constraint primitive.
func (e *Engine) checkFields(inst *ast.Instrument, rules *ast.RuleSet, rec *ast.Record) []ast.Violation {
	var violations []ast.Violation

	fields := make([]string, 0, len(rules.Fields))
	for field := range rules.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		spec := rules.Fields[field]

		value, present := rec.Value(field)
		if !present || ast.IsMissing(value) {
			if spec.Required {
				violations = append(violations, ast.Violation{
					Field:   field,
					Rule:    "field:" + field,
					Message: "required field is missing",
				})
			}
			continue
		}

		ok, err := e.constraints.Evaluate(value, spec)
		if err != nil {
			e.warnFieldOnce(inst.Name, field, err)
			continue
		}
		if !ok {
			violations = append(violations, ast.Violation{
				Field:   field,
				Rule:    "field:" + field,
				Message: fmt.Sprintf("value %v does not satisfy field constraint", value),
			})
		}
	}

	return violations
}

// warnFieldOnce logs an unevaluable field constraint once per (instrument,
// field).
func (e *Engine) warnFieldOnce(instrument, field string, err error) {
	key := instrument + "\x1f" + field
	if _, loaded := e.fieldWarned.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	e.logger.Warn("field constraint unevaluable, skipping",
		"instrument", instrument,
		"field", field,
		"error", err,
	)
}
