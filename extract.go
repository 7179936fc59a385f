package propsage

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// chartWindowRows caps how many rows of the working view feed the chart.
	chartWindowRows = 10
	// tableSampleRows caps the table payload.
	tableSampleRows = 5
	// chartBaseYear is the synthetic x-axis origin: one consecutive year per
	// chart-window row, starting here.
	chartBaseYear = 2021
	// minTokenLen: query tokens this short are skipped during location
	// matching ("in", "the", "and"...).
	minTokenLen = 4
)

// ChartSeries is the paired numeric series the extractor emits for the
// conversational flow: equal-length years/prices/demand sequences.
type ChartSeries struct {
	Years  []int     `json:"years"`
	Prices []float64 `json:"prices"`
	Demand []float64 `json:"demand"`
}

// Extract turns a free-text query plus a dataset into a best-effort chart
// series and a table sample, without any declared schema.
//
// The heuristic: classify columns; if a location-like column exists, scan
// the query tokens (lower-cased, length > 3) against the FIRST location
// column and narrow to the rows matching the FIRST token that matches
// anything, then stop scanning. Chart columns follow a fallback ladder
// (price role, then first numeric; demand role, then second numeric, then a
// synthetic series). The table is the head of the working view, falling
// back to the head of the original data so it is never absent while the
// original dataset has rows.
//
// Failures are silent and non-fatal: any internal error collapses the
// extraction to (nil, nil) and is only logged.
func Extract(d *Dataset, query string) (chart *ChartSeries, table []Record) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("extraction failed", "panic", r, "query", query)
			chart = nil
			table = nil
		}
	}()

	if d.Len() == 0 {
		return nil, nil
	}

	roles := Classify(d)
	working := d

	if len(roles.Location) > 0 {
		working = narrowByQuery(d, roles.Location[0], query)
	}

	if working.Len() > 0 {
		chart = buildChartSeries(working, roles)
	}

	if working.Len() > 0 {
		table = working.Head(tableSampleRows)
	} else {
		table = d.Head(tableSampleRows)
	}
	return chart, table
}

// narrowByQuery narrows the dataset to the rows whose location cell
// contains a query token. The first token that matches at least one row
// wins; later tokens are never applied, even if they would also match.
func narrowByQuery(d *Dataset, locationCol, query string) *Dataset {
	for _, token := range strings.Fields(strings.ToLower(query)) {
		if len(token) < minTokenLen {
			continue
		}
		var keep []int
		for i, row := range d.rows {
			cell := stringify(row[locationCol])
			if strings.Contains(strings.ToLower(cell), token) {
				keep = append(keep, i)
			}
		}
		if len(keep) > 0 {
			zap.S().Debugw("narrowed by location token",
				"token", token, "rows", len(keep))
			return d.narrow(keep)
		}
	}
	return d
}

func buildChartSeries(working *Dataset, roles Roles) *ChartSeries {
	window := working.Head(chartWindowRows)

	years := make([]int, len(window))
	for i := range window {
		years[i] = chartBaseYear + i
	}

	priceCol := firstOf(roles.Price, roles.Numeric, 0)
	demandCol := firstOf(roles.Demand, roles.Numeric, 1)

	if priceCol != "" {
		prices := windowNumbers(window, priceCol)
		var demand []float64
		if demandCol != "" {
			demand = windowNumbers(window, demandCol)
		} else {
			demand = make([]float64, len(prices))
			for i := range demand {
				demand[i] = 1.5 * float64(i)
			}
		}
		if len(demand) > len(prices) {
			demand = demand[:len(prices)]
		}
		return &ChartSeries{Years: years, Prices: prices, Demand: demand}
	}

	// No price candidate at all: fall back to the first two numeric columns
	// positionally, with no synthetic series.
	if len(roles.Numeric) >= 2 {
		prices := windowNumbers(window, roles.Numeric[0])
		demand := windowNumbers(window, roles.Numeric[1])
		if len(demand) > len(prices) {
			demand = demand[:len(prices)]
		}
		return &ChartSeries{Years: years, Prices: prices, Demand: demand}
	}

	return nil
}

// firstOf picks the first column of the preferred role, falling back to the
// numeric column at the given index.
func firstOf(preferred, numeric []string, fallbackIdx int) string {
	if len(preferred) > 0 {
		return preferred[0]
	}
	if fallbackIdx < len(numeric) {
		return numeric[fallbackIdx]
	}
	return ""
}

// windowNumbers coerces a column over the chart window; nulls become 0.
func windowNumbers(window []Record, col string) []float64 {
	out := make([]float64, len(window))
	for i, row := range window {
		if x, ok := asNumber(row[col]); ok {
			out[i] = x
		}
	}
	return out
}
