package propsage

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// FilterCriteria is a declarative filter specification keyed by column
// name. Entry forms:
//
//   - scalar: exact equality
//   - []any: set membership
//   - string containing '*': case-insensitive substring match after all
//     '*' characters are stripped (not a glob)
//   - map with optional "min", "max", "values" keys: range predicates,
//     applied in that order as a conjunction
type FilterCriteria map[string]any

// FilterTrace is the human-readable log of predicates applied by Filter,
// in application order.
type FilterTrace struct {
	OriginalRows   int      `json:"original_rows"`
	FiltersApplied []string `json:"filters_applied"`
	FilteredRows   int      `json:"filtered_rows"`
	Error          string   `json:"error,omitempty"`
}

// Filter applies a filter specification to a dataset and returns the
// filtered view plus a trace of applied predicates. The input dataset is
// never mutated.
//
// A predicate against a column absent from the dataset matches no rows
// (fail-closed). An internal failure — typically a range comparison over a
// non-coercible value — is non-fatal: the ORIGINAL unfiltered dataset is
// returned with an error note in the trace.
func Filter(d *Dataset, criteria FilterCriteria) (out *Dataset, trace FilterTrace) {
	trace = FilterTrace{
		OriginalRows:   d.Len(),
		FiltersApplied: []string{},
	}
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("filtering panicked, returning unfiltered data", "panic", r)
			trace.Error = fmt.Sprintf("internal error: %v", r)
			trace.FilteredRows = d.Len()
			out = d
		}
	}()

	keep := make([]int, d.Len())
	for i := range keep {
		keep[i] = i
	}

	// Criteria arrive as a JSON object; iterate columns in sorted order so
	// the trace is deterministic for identical input.
	columns := make([]string, 0, len(criteria))
	for col := range criteria {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	for _, col := range columns {
		var err error
		keep, err = applyColumnFilter(d, keep, col, criteria[col], &trace)
		if err != nil {
			zap.S().Errorw("filtering failed, returning unfiltered data",
				"column", col, "error", err)
			trace.Error = err.Error()
			trace.FilteredRows = d.Len()
			return d, trace
		}
	}

	trace.FilteredRows = len(keep)
	return d.narrow(keep), trace
}

func applyColumnFilter(d *Dataset, keep []int, col string, spec any, trace *FilterTrace) ([]int, error) {
	known := d.HasColumn(col)

	switch v := spec.(type) {
	case map[string]any:
		// Composite range: min, then max, then values, each narrowing
		// independently.
		if minVal, ok := v["min"]; ok {
			bound, ok := asNumber(minVal)
			if !ok {
				return nil, NewNonNumericError(col, minVal)
			}
			var err error
			keep, err = narrowNumeric(d, keep, col, known, func(x float64) bool { return x >= bound })
			if err != nil {
				return nil, err
			}
			trace.FiltersApplied = append(trace.FiltersApplied, fmt.Sprintf("%s >= %v", col, minVal))
		}
		if maxVal, ok := v["max"]; ok {
			bound, ok := asNumber(maxVal)
			if !ok {
				return nil, NewNonNumericError(col, maxVal)
			}
			var err error
			keep, err = narrowNumeric(d, keep, col, known, func(x float64) bool { return x <= bound })
			if err != nil {
				return nil, err
			}
			trace.FiltersApplied = append(trace.FiltersApplied, fmt.Sprintf("%s <= %v", col, maxVal))
		}
		if values, ok := v["values"]; ok {
			set, ok := values.([]any)
			if !ok {
				return nil, NewError(ErrorTypeMalformedInput, ErrCodeFilterFailed,
					fmt.Sprintf("values entry for column %q is not a list", col))
			}
			keep = narrowMembership(d, keep, col, known, set)
			trace.FiltersApplied = append(trace.FiltersApplied, fmt.Sprintf("%s in %v", col, set))
		}
		return keep, nil

	case []any:
		keep = narrowMembership(d, keep, col, known, v)
		trace.FiltersApplied = append(trace.FiltersApplied, fmt.Sprintf("%s in %v", col, v))
		return keep, nil

	case string:
		if strings.Contains(v, "*") {
			pattern := strings.ToLower(strings.ReplaceAll(v, "*", ""))
			keep = narrowRows(d, keep, known, func(row Record) bool {
				cell, ok := row[col]
				return ok && strings.Contains(strings.ToLower(stringify(cell)), pattern)
			})
			trace.FiltersApplied = append(trace.FiltersApplied, fmt.Sprintf("%s contains %s", col, strings.ReplaceAll(v, "*", "")))
			return keep, nil
		}
		keep = narrowRows(d, keep, known, func(row Record) bool {
			cell, ok := row[col]
			return ok && equalScalar(cell, v)
		})
		trace.FiltersApplied = append(trace.FiltersApplied, fmt.Sprintf("%s = %v", col, v))
		return keep, nil

	default:
		keep = narrowRows(d, keep, known, func(row Record) bool {
			cell, ok := row[col]
			return ok && equalScalar(cell, v)
		})
		trace.FiltersApplied = append(trace.FiltersApplied, fmt.Sprintf("%s = %v", col, v))
		return keep, nil
	}
}

// narrowRows keeps the indices whose row satisfies pred. An unknown column
// keeps nothing.
func narrowRows(d *Dataset, keep []int, known bool, pred func(Record) bool) []int {
	if !known {
		return nil
	}
	out := keep[:0:0]
	for _, i := range keep {
		if pred(d.rows[i]) {
			out = append(out, i)
		}
	}
	return out
}

// narrowNumeric keeps rows whose coerced cell satisfies pred. A null or
// non-coercible cell is a type error, matching the behavior of comparing
// text against a number bound.
func narrowNumeric(d *Dataset, keep []int, col string, known bool, pred func(float64) bool) ([]int, error) {
	if !known {
		return nil, nil
	}
	out := keep[:0:0]
	for _, i := range keep {
		cell, ok := d.rows[i][col]
		if !ok || isNull(cell) {
			return nil, NewNonNumericError(col, cell)
		}
		x, ok := asNumber(cell)
		if !ok {
			return nil, NewNonNumericError(col, cell)
		}
		if pred(x) {
			out = append(out, i)
		}
	}
	return out, nil
}

func narrowMembership(d *Dataset, keep []int, col string, known bool, set []any) []int {
	return narrowRows(d, keep, known, func(row Record) bool {
		cell, ok := row[col]
		if !ok {
			return false
		}
		for _, candidate := range set {
			if equalScalar(cell, candidate) {
				return true
			}
		}
		return false
	})
}

// equalScalar compares two scalar cell values. Numbers of different Go
// types compare numerically; strings never compare equal to numbers.
// Non-scalar values (decoded JSON arrays or objects) never compare equal:
// == on two uncomparable dynamic types would panic.
func equalScalar(a, b any) bool {
	an, aIsNum := typedNumber(a)
	bn, bIsNum := typedNumber(b)
	if aIsNum && bIsNum {
		return an == bn
	}
	if aIsNum != bIsNum {
		return false
	}
	if !comparableValue(a) || !comparableValue(b) {
		return false
	}
	return a == b
}

func comparableValue(v any) bool {
	return v == nil || reflect.TypeOf(v).Comparable()
}

// typedNumber is like asNumber but only accepts values that are already
// numbers; numeric strings stay strings for equality purposes.
func typedNumber(v any) (float64, bool) {
	switch v.(type) {
	case string:
		return 0, false
	default:
		return asNumber(v)
	}
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
