package service

import (
	"fmt"
	"strconv"

	"github.com/labsense-server/internal/domain"
)

// EvaluateThreshold applies one threshold conjunct to a reading. The
// returned error indicates a malformed threshold, which means the catalog
// validation was bypassed; it is never a normal non-match.
func EvaluateThreshold(t domain.Threshold, r domain.Reading) (bool, error) {
	switch t.Operator {
	case domain.OpGreaterThan:
		if t.Value == nil {
			return false, fmt.Errorf("threshold on %s: operator %s requires a value", t.TestID, t.Operator)
		}
		return r.Value > *t.Value, nil
	case domain.OpLessThan:
		if t.Value == nil {
			return false, fmt.Errorf("threshold on %s: operator %s requires a value", t.TestID, t.Operator)
		}
		return r.Value < *t.Value, nil
	case domain.OpGreaterOrEqual:
		if t.Value == nil {
			return false, fmt.Errorf("threshold on %s: operator %s requires a value", t.TestID, t.Operator)
		}
		return r.Value >= *t.Value, nil
	case domain.OpLessOrEqual:
		if t.Value == nil {
			return false, fmt.Errorf("threshold on %s: operator %s requires a value", t.TestID, t.Operator)
		}
		return r.Value <= *t.Value, nil
	case domain.OpBetween:
		if t.ValueMin == nil || t.ValueMax == nil {
			return false, fmt.Errorf("threshold on %s: operator %s requires both bounds", t.TestID, t.Operator)
		}
		return r.Value >= *t.ValueMin && r.Value <= *t.ValueMax, nil
	case domain.OpAbnormalFlag:
		return r.Flag.IsSet(), nil
	default:
		return false, fmt.Errorf("threshold on %s: unsupported operator %q", t.TestID, t.Operator)
	}
}

// describeThreshold renders the comparison for evidence strings, e.g.
// "< 12" or "between 100 and 125".
func describeThreshold(t domain.Threshold) string {
	switch t.Operator {
	case domain.OpGreaterThan:
		return "> " + formatValue(t.Value)
	case domain.OpLessThan:
		return "< " + formatValue(t.Value)
	case domain.OpGreaterOrEqual:
		return ">= " + formatValue(t.Value)
	case domain.OpLessOrEqual:
		return "<= " + formatValue(t.Value)
	case domain.OpBetween:
		return "between " + formatValue(t.ValueMin) + " and " + formatValue(t.ValueMax)
	case domain.OpAbnormalFlag:
		return "analyzer flag present"
	default:
		return string(t.Operator)
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "?"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
