package constraint

import (
	"fmt"
	"regexp"
	"sync"

	"meridian-hq/veristat/pkg/rules/ast"
)

// Evaluator is the constraint-evaluation primitive: given a present,
// non-missing field value and a constraint specification, it reports whether
// the value satisfies the constraint.
//
// Contract: a returned error means the constraint itself could not be
// evaluated (invalid pattern, unknown type name), not that the value failed.
// Callers evaluating if-clauses treat an unevaluable constraint as "not
// satisfied"; the error is surfaced for logging.
type Evaluator interface {
	Evaluate(value any, spec ast.FieldConstraint) (bool, error)
}

// Default is the built-in Evaluator. It checks, in order: type, allowed-value
// set, numeric range, regex pattern. An empty specification is satisfied by
// any value. Compiled patterns are cached; safe for concurrent use.
type Default struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// NewDefault creates the default constraint evaluator.
func NewDefault() *Default {
	return &Default{patterns: make(map[string]*regexp.Regexp)}
}

// Evaluate implements Evaluator.
func (d *Default) Evaluate(value any, spec ast.FieldConstraint) (bool, error) {
	if spec.Type != "" {
		ok, err := matchesType(value, spec.Type)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}

	if len(spec.Allowed) > 0 {
		if !inAllowed(value, spec.Allowed) {
			return false, nil
		}
	}

	if spec.Min != nil || spec.Max != nil {
		num, ok := toFloat64(value)
		if !ok {
			return false, nil
		}
		if spec.Min != nil && num < *spec.Min {
			return false, nil
		}
		if spec.Max != nil && num > *spec.Max {
			return false, nil
		}
	}

	if spec.Pattern != "" {
		re, err := d.compile(spec.Pattern)
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", spec.Pattern, err)
		}
		if !re.MatchString(toString(value)) {
			return false, nil
		}
	}

	return true, nil
}

// compile returns a cached compiled pattern, compiling on first use.
func (d *Default) compile(pattern string) (*regexp.Regexp, error) {
	d.mu.RLock()
	re, ok := d.patterns[pattern]
	d.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.patterns[pattern] = re
	d.mu.Unlock()
	return re, nil
}
