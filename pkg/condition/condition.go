// Package condition evaluates single comparisons against a dotted-path
// lookup in a context map. It backs both workflow condition nodes and
// definition validation.
package condition

import (
	"strconv"
	"strings"

	"github.com/chatrail/chatrail/pkg/template"
)

// Operator enumerates the supported comparison operators.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
)

// Known reports whether op is one of the closed operator set.
func Known(op Operator) bool {
	switch op {
	case OperatorEquals, OperatorNotEquals, OperatorContains,
		OperatorGreaterThan, OperatorLessThan:
		return true
	default:
		return false
	}
}

// Evaluate resolves field as a dotted path in ctx and compares the found
// value against expected. A missing path yields an untyped nil on the left
// side. contains coerces both sides to string; greater_than/less_than
// coerce both sides to number and are false when either side is not
// numeric. Unknown operators are false (fail closed).
func Evaluate(ctx map[string]any, field string, op Operator, expected any) bool {
	actual, _ := template.Lookup(ctx, field)

	switch op {
	case OperatorEquals:
		return looseEqual(actual, expected)
	case OperatorNotEquals:
		return !looseEqual(actual, expected)
	case OperatorContains:
		return strings.Contains(template.Stringify(actual), template.Stringify(expected))
	case OperatorGreaterThan:
		left, leftOK := toNumber(actual)
		right, rightOK := toNumber(expected)

		return leftOK && rightOK && left > right
	case OperatorLessThan:
		left, leftOK := toNumber(actual)
		right, rightOK := toNumber(expected)

		return leftOK && rightOK && left < right
	default:
		return false
	}
}

// looseEqual compares scalar values across the int/float representations
// JSON decoding produces.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}

	leftNum, leftOK := toNumber(a)
	rightNum, rightOK := toNumber(b)

	if leftOK && rightOK {
		return leftNum == rightNum
	}

	return a == b
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		return parsed, true
	default:
		return 0, false
	}
}
