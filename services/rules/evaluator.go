// Package rules implements the condition evaluator: pure, deterministic
// matching of typed conditions against a flattened document context.
package rules

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/petroflow/billing-control-plane/models"
	"github.com/petroflow/billing-control-plane/services"
)

// Config holds evaluator construction options
type Config struct {
	// AllowRegexOperator enables the regex operator. Off in every deployed
	// environment; evaluating regex while off is an explicit error, never a
	// silent skip.
	AllowRegexOperator bool
}

// Evaluator evaluates individual conditions against a context mapping.
// It performs no I/O and holds no mutable state.
type Evaluator struct {
	allowRegex bool
}

// NewEvaluator creates an Evaluator with the given capability flags
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{allowRegex: cfg.AllowRegexOperator}
}

// Evaluate evaluates one condition against the context. A coercion failure on
// a comparison operator yields (false, nil); a disabled or unknown operator
// yields an error so callers can record it rather than mistake it for a
// non-match.
func (e *Evaluator) Evaluate(cond models.Condition, context map[string]any) (bool, error) {
	if cond.Field == "" {
		return false, fmt.Errorf("condition field must not be empty")
	}

	actual := context[cond.Field]

	switch cond.Operator {
	case models.OperatorEquals:
		return valuesEqual(actual, cond.Value), nil

	case models.OperatorNotEquals:
		return !valuesEqual(actual, cond.Value), nil

	case models.OperatorGT, models.OperatorGTE, models.OperatorLT, models.OperatorLTE:
		left, lok := toFloat(actual)
		right, rok := toFloat(cond.Value)
		if !lok || !rok {
			return false, nil
		}
		switch cond.Operator {
		case models.OperatorGT:
			return left > right, nil
		case models.OperatorGTE:
			return left >= right, nil
		case models.OperatorLT:
			return left < right, nil
		default:
			return left <= right, nil
		}

	case models.OperatorIncludes:
		return strings.Contains(stringify(actual), stringify(cond.Value)), nil

	case models.OperatorRegex:
		if !e.allowRegex {
			return false, services.ErrRegexOperatorDisabled
		}
		pattern, ok := cond.Value.(string)
		if !ok {
			return false, fmt.Errorf("regex condition value must be a string")
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("invalid regex pattern: %w", err)
		}
		return re.MatchString(stringify(actual)), nil

	default:
		// Schema validation rejects unknown operators before evaluation;
		// reaching this arm is a programming error, surfaced loudly.
		return false, fmt.Errorf("unsupported operator %q", cond.Operator)
	}
}

// ParseCondition decodes and validates one raw condition definition
func ParseCondition(raw json.RawMessage) (models.Condition, error) {
	var cond models.Condition
	if err := json.Unmarshal(raw, &cond); err != nil {
		return models.Condition{}, fmt.Errorf("malformed condition: %w", err)
	}
	if cond.Field == "" {
		return models.Condition{}, fmt.Errorf("condition field must not be empty")
	}
	if !models.ValidOperator(cond.Operator) {
		return models.Condition{}, fmt.Errorf("unknown operator %q", cond.Operator)
	}
	return cond, nil
}

// HasStringExpression reports whether any entry in the conditions mapping is
// a raw string rather than a structured condition object. A raw string marks
// a legacy arbitrary-expression policy, which must reject the whole
// evaluation request upstream.
func HasStringExpression(conditions models.ConditionSet) bool {
	for _, raw := range conditions {
		trimmed := strings.TrimSpace(string(raw))
		if strings.HasPrefix(trimmed, `"`) {
			return true
		}
	}
	return false
}

// valuesEqual compares two context values. JSON decoding produces float64 for
// every number, but document fields arrive as native Go ints and floats, so
// numeric values compare by magnitude across kinds. Everything else is strict.
func valuesEqual(a, b any) bool {
	af, aok := asNumber(a)
	bf, bok := asNumber(b)
	if aok && bok {
		return af == bf
	}
	if aok != bok {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// asNumber reports a value that is already numeric. Unlike toFloat it does
// not coerce strings, keeping equals strict.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// toFloat coerces a value to a float for ordered comparisons. Numeric strings
// coerce; anything else fails and makes the comparison false.
func toFloat(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	switch s := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	case bool:
		if s {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// stringify renders a context value as text for substring and regex matching
func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}
