package engine

import (
	"fmt"
	"math"

	"fx-signal-engine/internal/indicator"
	"fx-signal-engine/internal/patterns"
)

// Comparison tolerance for == and !=.
const equalityTolerance = 1e-3

// Default relative tolerance for the near operator.
const defaultNearTolerance = 0.01

// EvaluateCondition scores one condition against the snapshot, returning a
// value in [0,1] and a diagnostic string. Missing indicators, missing
// references and coercion failures all score 0.0; nothing propagates.
func EvaluateCondition(snap indicator.Snapshot, cond *patterns.Condition) (score float64, detail string) {
	defer func() {
		if r := recover(); r != nil {
			score, detail = 0.0, fmt.Sprintf("evaluation panic: %v", r)
		}
	}()

	timeframe := cond.Timeframe
	if timeframe == "" {
		timeframe = "1d"
	}

	raw, ok := snap.Lookup(cond.Indicator, timeframe)
	if !ok {
		return 0.0, fmt.Sprintf("indicator %q not found", cond.Indicator)
	}

	reference, refDetail, ok := resolveReference(snap, cond, timeframe)
	if !ok {
		return 0.0, refDetail
	}

	switch cond.Operator {
	case ">", "<", ">=", "<=", "==", "!=", "near", "engulfs", "breaks",
		"was_consistently_above", "was_consistently_below":
		return scoreScalar(cond, raw, reference)
	case "between", "not_between":
		return scoreBetween(cond, raw, reference)
	case "all_above", "all_below", "any_above", "any_below", "oscillates_around":
		return scoreWindow(cond, raw, reference)
	}
	return 0.0, fmt.Sprintf("unknown operator %q", cond.Operator)
}

// resolveReference resolves the comparison target: a named indicator when
// Reference is set, otherwise the literal Value. The multiplier scales a
// numeric reference in place.
func resolveReference(snap indicator.Snapshot, cond *patterns.Condition, timeframe string) (interface{}, string, bool) {
	var reference interface{}
	if cond.Reference != "" {
		v, ok := snap.Lookup(cond.Reference, timeframe)
		if !ok {
			return nil, fmt.Sprintf("reference %q not found", cond.Reference), false
		}
		reference = v
	} else if cond.Value != nil {
		reference = cond.Value
	} else {
		return nil, "condition has neither reference nor value", false
	}

	if cond.Multiplier != nil {
		switch reference.(type) {
		case []float64, []interface{}:
			// Ranges keep their shape; the multiplier only scales scalars.
		default:
			if f, ok := toFloat(reference); ok {
				reference = f * *cond.Multiplier
			}
		}
	}
	return reference, "", true
}

func scoreScalar(cond *patterns.Condition, raw, reference interface{}) (float64, string) {
	value, okV := toFloat(raw)
	ref, okR := toFloat(reference)
	if !okV || !okR {
		// String equality still makes sense for state tags.
		if cond.Operator == "==" || cond.Operator == "!=" {
			vs, okVS := raw.(string)
			rs, okRS := reference.(string)
			if okVS && okRS {
				if (vs == rs) == (cond.Operator == "==") {
					return 1.0, fmt.Sprintf("%q %s %q", vs, cond.Operator, rs)
				}
				return 0.0, fmt.Sprintf("%q %s %q failed", vs, cond.Operator, rs)
			}
		}
		return 0.0, "non-numeric operands"
	}
	if math.IsNaN(value) || math.IsNaN(ref) {
		return 0.0, "NaN operand"
	}

	holds := false
	switch cond.Operator {
	case ">", "breaks", "was_consistently_above":
		holds = value > ref
	case "<", "was_consistently_below":
		holds = value < ref
	case ">=":
		holds = value >= ref
	case "<=":
		holds = value <= ref
	case "==":
		holds = math.Abs(value-ref) <= equalityTolerance
	case "!=":
		holds = math.Abs(value-ref) > equalityTolerance
	case "near":
		tolerance := defaultNearTolerance
		if cond.Tolerance != nil {
			tolerance = *cond.Tolerance
		}
		holds = math.Abs(value-ref) <= tolerance*math.Abs(ref)
	case "engulfs":
		holds = math.Abs(value) > math.Abs(ref)*1.1
	}

	if holds {
		return 1.0, fmt.Sprintf("%.6g %s %.6g", value, cond.Operator, ref)
	}
	return 0.0, fmt.Sprintf("%.6g %s %.6g failed", value, cond.Operator, ref)
}

func scoreBetween(cond *patterns.Condition, raw, reference interface{}) (float64, string) {
	value, okV := toFloat(raw)
	bounds, okB := toFloats(reference)
	if !okV || !okB || len(bounds) != 2 {
		return 0.0, "between requires a numeric value and a 2-element range"
	}
	if math.IsNaN(value) || math.IsNaN(bounds[0]) || math.IsNaN(bounds[1]) {
		return 0.0, "NaN operand"
	}

	lo, hi := bounds[0], bounds[1]
	if lo > hi {
		lo, hi = hi, lo
	}
	inside := value >= lo && value <= hi
	if inside == (cond.Operator == "between") {
		return 1.0, fmt.Sprintf("%.6g %s [%.6g, %.6g]", value, cond.Operator, lo, hi)
	}
	return 0.0, fmt.Sprintf("%.6g %s [%.6g, %.6g] failed", value, cond.Operator, lo, hi)
}

// scoreWindow handles operators that logically consume a time-series window.
// A scalar indicator is treated as a 1-element window.
func scoreWindow(cond *patterns.Condition, raw, reference interface{}) (float64, string) {
	values, okV := toFloats(raw)
	ref, okR := toFloat(reference)
	if !okV || !okR || len(values) == 0 {
		return 0.0, "non-numeric operands"
	}

	window := cond.Periods
	if cond.Operator == "oscillates_around" {
		window = cond.LookbackPeriods
	}
	if window > 0 && window < len(values) {
		values = values[len(values)-window:]
	}

	var above, below int
	for _, v := range values {
		if math.IsNaN(v) {
			return 0.0, "NaN in window"
		}
		if v > ref {
			above++
		}
		if v < ref {
			below++
		}
	}

	holds := false
	switch cond.Operator {
	case "all_above":
		holds = above == len(values)
	case "all_below":
		holds = below == len(values)
	case "any_above":
		holds = above > 0
	case "any_below":
		holds = below > 0
	case "oscillates_around":
		holds = above > 0 && below > 0
	}

	if holds {
		return 1.0, fmt.Sprintf("%s over %d values vs %.6g", cond.Operator, len(values), ref)
	}
	return 0.0, fmt.Sprintf("%s over %d values vs %.6g failed", cond.Operator, len(values), ref)
}

// toFloat coerces snapshot and YAML values to float64. Lists coerce to
// their latest element.
func toFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1.0, true
		}
		return 0.0, true
	case []float64:
		if len(t) == 0 {
			return 0, false
		}
		return t[len(t)-1], !math.IsNaN(t[len(t)-1])
	}
	return 0, false
}

// toFloats coerces to a numeric window; scalars become 1-element windows.
func toFloats(v interface{}) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return t, len(t) > 0
	case []interface{}:
		out := make([]float64, 0, len(t))
		for _, item := range t {
			f, ok := toFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, len(out) > 0
	}
	if f, ok := toFloat(v); ok {
		return []float64{f}, true
	}
	return nil, false
}
