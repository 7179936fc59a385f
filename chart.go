package propsage

import (
	"fmt"
)

// ChartRequest selects the columns and style for a generic chart.
type ChartRequest struct {
	Type    string `json:"chart_type"`
	XColumn string `json:"x_column"`
	YColumn string `json:"y_column"`
	GroupBy string `json:"group_by,omitempty"`
}

// ChartDataset is one series of a chart payload, shaped for chart.js-style
// consumers.
type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor any       `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
}

// ChartPayload is a chart-ready structure: labels plus datasets.
type ChartPayload struct {
	Type     string         `json:"type"`
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// chartPalette is the fixed cyclic palette reused modulo count.
var chartPalette = []string{
	"rgba(255, 99, 132, 0.7)",
	"rgba(54, 162, 235, 0.7)",
	"rgba(255, 206, 86, 0.7)",
	"rgba(75, 192, 192, 0.7)",
	"rgba(153, 102, 255, 0.7)",
	"rgba(255, 159, 64, 0.7)",
	"rgba(199, 199, 199, 0.7)",
	"rgba(83, 102, 255, 0.7)",
	"rgba(255, 99, 132, 0.7)",
	"rgba(54, 162, 235, 0.7)",
}

const (
	lineBorderColor     = "rgba(75, 192, 192, 1)"
	lineBackgroundColor = "rgba(75, 192, 192, 0.1)"
)

// BuildChart produces a chart payload from a dataset. Any failure (missing
// column, non-numeric y value) is returned as a typed error; the HTTP layer
// serializes it as an {error: message} body rather than a payload.
//
// Pie charts without a group-by deduplicate labels but emit y values in raw
// row order, so labels and data lengths can disagree when x has duplicates.
// That mismatch is inherited behavior, kept deliberately; see the package
// tests.
func BuildChart(d *Dataset, req ChartRequest) (*ChartPayload, error) {
	if req.GroupBy != "" && d.HasColumn(req.GroupBy) {
		return buildGroupedChart(d, req)
	}

	if !d.HasColumn(req.XColumn) {
		return nil, NewUnknownColumnError(req.XColumn)
	}
	if !d.HasColumn(req.YColumn) {
		return nil, NewUnknownColumnError(req.YColumn)
	}

	values, err := columnNumbers(d, req.YColumn)
	if err != nil {
		return nil, err
	}

	if req.Type == "pie" {
		labels := distinctLabels(d, req.XColumn)
		return &ChartPayload{
			Type:   "pie",
			Labels: labels,
			Datasets: []ChartDataset{{
				Label:           req.YColumn,
				Data:            values,
				BackgroundColor: paletteColors(len(labels)),
			}},
		}, nil
	}

	labels := make([]string, 0, d.Len())
	for _, row := range d.rows {
		labels = append(labels, stringify(row[req.XColumn]))
	}
	return &ChartPayload{
		Type:   req.Type,
		Labels: labels,
		Datasets: []ChartDataset{{
			Label:           req.YColumn,
			Data:            values,
			BorderColor:     lineBorderColor,
			BackgroundColor: lineBackgroundColor,
		}},
	}, nil
}

// buildGroupedChart sums the y column per group key. Group order is the
// key's first appearance in row order, which is stable and deterministic
// for identical input.
func buildGroupedChart(d *Dataset, req ChartRequest) (*ChartPayload, error) {
	if !d.HasColumn(req.YColumn) {
		return nil, NewUnknownColumnError(req.YColumn)
	}

	var keys []string
	sums := make(map[string]float64)
	for _, row := range d.rows {
		key := stringify(row[req.GroupBy])
		if _, ok := sums[key]; !ok {
			keys = append(keys, key)
			sums[key] = 0
		}
		// Nulls and non-numerics contribute 0 to the group sum.
		if x, ok := asNumber(row[req.YColumn]); ok {
			sums[key] += x
		}
	}

	data := make([]float64, 0, len(keys))
	for _, key := range keys {
		data = append(data, sums[key])
	}
	return &ChartPayload{
		Type:   req.Type,
		Labels: keys,
		Datasets: []ChartDataset{{
			Label:           req.YColumn,
			Data:            data,
			BackgroundColor: paletteColors(len(keys)),
		}},
	}, nil
}

// columnNumbers coerces a column to floats in row order. Nulls become 0; a
// non-coercible value fails the whole chart.
func columnNumbers(d *Dataset, col string) ([]float64, error) {
	out := make([]float64, 0, d.Len())
	for _, row := range d.rows {
		cell := row[col]
		if isNull(cell) {
			out = append(out, 0)
			continue
		}
		x, ok := asNumber(cell)
		if !ok {
			return nil, NewNonNumericError(col, cell)
		}
		out = append(out, x)
	}
	return out, nil
}

func distinctLabels(d *Dataset, col string) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, row := range d.rows {
		label := stringify(row[col])
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	return labels
}

func paletteColors(count int) []string {
	colors := make([]string, count)
	for i := 0; i < count; i++ {
		colors[i] = chartPalette[i%len(chartPalette)]
	}
	return colors
}

// ChartError is the serialized form of a chart failure, preserving the
// {error: message} wire shape consumers expect.
type ChartError struct {
	Error string `json:"error"`
}

// ChartErrorPayload converts an error into the {error} body.
func ChartErrorPayload(err error) ChartError {
	if err == nil {
		return ChartError{Error: "unknown error"}
	}
	return ChartError{Error: fmt.Sprintf("%v", err)}
}
