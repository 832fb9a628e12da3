package events

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/maestrohq/maestro/pkg/config"
)

// evalConditions reports whether every condition of a mapping holds
// against the event data. Conditions are pure, declarative predicates;
// a missing field fails the condition.
func evalConditions(conditions []config.EventConditionConfig, data map[string]any) bool {
	for _, cond := range conditions {
		if !evalCondition(cond, data) {
			return false
		}
	}
	return true
}

func evalCondition(cond config.EventConditionConfig, data map[string]any) bool {
	value, ok := data[cond.Field]
	if !ok {
		return false
	}

	switch cond.Op {
	case "eq":
		return equalValues(value, cond.Value)
	case "ne":
		return !equalValues(value, cond.Value)
	case "contains":
		s, ok1 := asString(value)
		sub, ok2 := asString(cond.Value)
		return ok1 && ok2 && strings.Contains(s, sub)
	case "gt", "gte", "lt", "lte":
		a, ok1 := asFloat(value)
		b, ok2 := asFloat(cond.Value)
		if !ok1 || !ok2 {
			return false
		}
		switch cond.Op {
		case "gt":
			return a > b
		case "gte":
			return a >= b
		case "lt":
			return a < b
		default:
			return a <= b
		}
	default:
		return false
	}
}

// equalValues compares numerically when both sides are numeric, else as
// strings. Event data arrives from JSON, so numbers are float64 and a
// literal comparison against a YAML int would always fail.
func equalValues(a, b any) bool {
	if fa, ok1 := asFloat(a); ok1 {
		if fb, ok2 := asFloat(b); ok2 {
			return fa == fb
		}
	}
	sa, ok1 := asString(a)
	sb, ok2 := asString(b)
	return ok1 && ok2 && sa == sb
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64, float32, int, int64:
		return fmt.Sprintf("%v", x), true
	default:
		return "", false
	}
}
