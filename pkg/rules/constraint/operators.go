package constraint

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// inAllowed checks membership of value in the allowed set, comparing
// numerically where both sides convert (so a record's "1" matches an allowed
// 1, and 1 matches 1.0).
func inAllowed(value any, allowed []any) bool {
	for _, candidate := range allowed {
		if equalValues(value, candidate) {
			return true
		}
	}
	return false
}

// equalValues compares two loosely typed values: numeric comparison when both
// sides convert to float64, string comparison otherwise, reflect.DeepEqual
// as the last resort.
func equalValues(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}

	aNum, aOK := toFloat64(a)
	bNum, bOK := toFloat64(b)
	if aOK && bOK {
		return aNum == bNum
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return strings.TrimSpace(aStr) == strings.TrimSpace(bStr)
	}

	return reflect.DeepEqual(a, b)
}

// toFloat64 converts a value to float64, accepting numeric strings.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) {
			return 0, false
		}
		return val, true
	case float32:
		return toFloat64(float64(val))
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case string:
		num, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return num, true
	default:
		return 0, false
	}
}

// toString renders a value for pattern matching.
func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(v)
	}
}

// matchesType checks a value against a named type. Unknown type names are an
// evaluation error per the Evaluator contract.
func matchesType(value any, typeName string) (bool, error) {
	switch strings.ToLower(typeName) {
	case "integer":
		num, ok := toFloat64(value)
		return ok && num == math.Trunc(num), nil
	case "number":
		_, ok := toFloat64(value)
		return ok, nil
	case "text":
		_, ok := value.(string)
		return ok, nil
	case "date":
		s, ok := value.(string)
		if !ok {
			return false, nil
		}
		for _, layout := range []string{"2006-01-02", "01/02/2006"} {
			if _, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown constraint type %q", typeName)
	}
}
