package propsage

import (
	"encoding/json"
	"math"
	"sort"
)

// ColumnStats holds descriptive statistics for one numeric column. Std is
// the sample standard deviation (N-1 denominator); for a single-row column
// it is NaN, which is a valid output, not an error.
type ColumnStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Std    float64 `json:"std"`
}

// MarshalJSON renders NaN as null so summaries stay valid JSON when
// persisted or returned over the wire.
func (s ColumnStats) MarshalJSON() ([]byte, error) {
	render := func(x float64) any {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	}
	return json.Marshal(map[string]any{
		"min":    render(s.Min),
		"max":    render(s.Max),
		"mean":   render(s.Mean),
		"median": render(s.Median),
		"std":    render(s.Std),
	})
}

// SummaryReport is the per-dataset statistics payload.
type SummaryReport struct {
	TotalRecords   int                    `json:"total_records"`
	Columns        []string               `json:"columns"`
	NumericColumns []string               `json:"numeric_columns"`
	Statistics     map[string]ColumnStats `json:"statistics"`
}

// Summarize computes min/max/mean/median/std per numeric column. Nulls are
// skipped within a column; a NaN std for one column never aborts the
// statistics of the others. An empty dataset yields zero counts and empty
// statistics.
func Summarize(d *Dataset) SummaryReport {
	report := SummaryReport{
		TotalRecords:   d.Len(),
		Columns:        []string{},
		NumericColumns: []string{},
		Statistics:     map[string]ColumnStats{},
	}
	if d.Len() == 0 {
		return report
	}

	report.Columns = d.Columns()
	roles := Classify(d)
	report.NumericColumns = roles.Numeric

	for _, col := range roles.Numeric {
		values := make([]float64, 0, d.Len())
		for _, row := range d.rows {
			cell, ok := row[col]
			if !ok || isNull(cell) {
				continue
			}
			if x, ok := asNumber(cell); ok {
				values = append(values, x)
			}
		}
		if len(values) == 0 {
			continue
		}
		report.Statistics[col] = computeStats(values)
	}
	return report
}

func computeStats(values []float64) ColumnStats {
	minV, maxV := values[0], values[0]
	sum := 0.0
	for _, x := range values {
		if x < minV {
			minV = x
		}
		if x > maxV {
			maxV = x
		}
		sum += x
	}
	mean := sum / float64(len(values))

	variance := math.NaN()
	if len(values) > 1 {
		ss := 0.0
		for _, x := range values {
			diff := x - mean
			ss += diff * diff
		}
		variance = ss / float64(len(values)-1)
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		median = sorted[mid]
	} else {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return ColumnStats{
		Min:    minV,
		Max:    maxV,
		Mean:   mean,
		Median: median,
		Std:    math.Sqrt(variance),
	}
}
