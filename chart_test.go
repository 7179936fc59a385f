package propsage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartDataset() *Dataset {
	rows := []Record{
		{"city": "Austin", "price": 100.0},
		{"city": "Denver", "price": 200.0},
		{"city": "Austin", "price": 50.0},
	}
	return NewDatasetWithColumns([]string{"city", "price"}, rows)
}

func TestBuildChartBar(t *testing.T) {
	payload, err := BuildChart(chartDataset(), ChartRequest{
		Type: "bar", XColumn: "city", YColumn: "price",
	})
	require.NoError(t, err)

	assert.Equal(t, "bar", payload.Type)
	assert.Equal(t, []string{"Austin", "Denver", "Austin"}, payload.Labels)
	require.Len(t, payload.Datasets, 1)
	assert.Equal(t, "price", payload.Datasets[0].Label)
	assert.Equal(t, []float64{100, 200, 50}, payload.Datasets[0].Data)
	assert.Equal(t, lineBorderColor, payload.Datasets[0].BorderColor)
}

func TestBuildChartPieLabelDataMismatch(t *testing.T) {
	// Pie labels deduplicate while data stays in raw row order, so the
	// lengths disagree when x has duplicates. Inherited behavior, kept.
	payload, err := BuildChart(chartDataset(), ChartRequest{
		Type: "pie", XColumn: "city", YColumn: "price",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Austin", "Denver"}, payload.Labels)
	assert.Equal(t, []float64{100, 200, 50}, payload.Datasets[0].Data)
	colors, ok := payload.Datasets[0].BackgroundColor.([]string)
	require.True(t, ok)
	assert.Len(t, colors, 2)
}

func TestBuildChartGroupedSums(t *testing.T) {
	payload, err := BuildChart(chartDataset(), ChartRequest{
		Type: "bar", XColumn: "city", YColumn: "price", GroupBy: "city",
	})
	require.NoError(t, err)

	// Group order is first appearance in row order.
	assert.Equal(t, []string{"Austin", "Denver"}, payload.Labels)
	assert.Equal(t, []float64{150, 200}, payload.Datasets[0].Data)
}

func TestBuildChartGroupedSkipsNonNumeric(t *testing.T) {
	rows := []Record{
		{"g": "a", "v": 10.0},
		{"g": "a", "v": nil},
		{"g": "a", "v": "bad"},
		{"g": "b", "v": 5.0},
	}
	d := NewDatasetWithColumns([]string{"g", "v"}, rows)

	payload, err := BuildChart(d, ChartRequest{Type: "bar", YColumn: "v", GroupBy: "g"})
	require.NoError(t, err)

	// Nulls and non-numerics contribute 0 to the group sum instead of
	// failing the chart.
	assert.Equal(t, []float64{10, 5}, payload.Datasets[0].Data)
}

func TestBuildChartUnknownGroupByFallsThrough(t *testing.T) {
	payload, err := BuildChart(chartDataset(), ChartRequest{
		Type: "bar", XColumn: "city", YColumn: "price", GroupBy: "missing",
	})
	require.NoError(t, err)

	// Unknown group-by degrades to the ungrouped chart.
	assert.Len(t, payload.Labels, 3)
}

func TestBuildChartUnknownColumn(t *testing.T) {
	_, err := BuildChart(chartDataset(), ChartRequest{
		Type: "bar", XColumn: "missing", YColumn: "price",
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeUnknownColumn))

	_, err = BuildChart(chartDataset(), ChartRequest{
		Type: "bar", XColumn: "city", YColumn: "missing",
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeUnknownColumn))
}

func TestBuildChartNonNumericY(t *testing.T) {
	_, err := BuildChart(chartDataset(), ChartRequest{
		Type: "bar", XColumn: "price", YColumn: "city",
	})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, ErrorTypeMalformedInput))
}

func TestBuildChartNullYBecomesZero(t *testing.T) {
	rows := []Record{
		{"x": "a", "y": 1.0},
		{"x": "b", "y": nil},
		{"x": "c", "y": ""},
	}
	d := NewDatasetWithColumns([]string{"x", "y"}, rows)

	payload, err := BuildChart(d, ChartRequest{Type: "line", XColumn: "x", YColumn: "y"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, payload.Datasets[0].Data)
}

func TestPaletteCycles(t *testing.T) {
	colors := paletteColors(len(chartPalette) + 3)
	assert.Equal(t, colors[0], colors[len(chartPalette)])
}

func TestChartErrorPayload(t *testing.T) {
	payload := ChartErrorPayload(NewUnknownColumnError("x"))
	assert.Contains(t, payload.Error, "x")

	assert.Equal(t, "unknown error", ChartErrorPayload(nil).Error)
}
