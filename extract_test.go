package propsage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marketDataset() *Dataset {
	rows := []Record{
		{"location": "Austin", "price": 100.0, "demand": 5.0},
		{"location": "Austin", "price": 110.0, "demand": 6.0},
		{"location": "Denver", "price": 200.0, "demand": 7.0},
		{"location": "Denver", "price": 210.0, "demand": 8.0},
	}
	return NewDatasetWithColumns([]string{"location", "price", "demand"}, rows)
}

func TestExtractNarrowsByFirstMatchingToken(t *testing.T) {
	// "compare" never matches a location cell; "austin" is the first token
	// that does, and "denver" is never applied after it.
	chart, table := Extract(marketDataset(), "Compare Austin and Denver")

	require.NotNil(t, chart)
	assert.Equal(t, []float64{100, 110}, chart.Prices)
	assert.Equal(t, []float64{5, 6}, chart.Demand)
	require.Len(t, table, 2)
	assert.Equal(t, "Austin", table[0]["location"])
}

func TestExtractShortTokensSkipped(t *testing.T) {
	rows := []Record{
		{"location": "Rio", "price": 10.0, "demand": 1.0},
		{"location": "Oslo", "price": 20.0, "demand": 2.0},
	}
	d := NewDatasetWithColumns([]string{"location", "price", "demand"}, rows)

	// "rio" has length 3: below the token threshold, never matched.
	chart, table := Extract(d, "how is rio")

	require.NotNil(t, chart)
	assert.Equal(t, []float64{10, 20}, chart.Prices)
	assert.Len(t, table, 2)
}

func TestExtractYearsStartAt2021(t *testing.T) {
	chart, _ := Extract(marketDataset(), "market trends")

	require.NotNil(t, chart)
	require.Len(t, chart.Years, 4)
	assert.Equal(t, 2021, chart.Years[0])
	assert.Equal(t, 2024, chart.Years[3])
}

func TestExtractChartWindowCapped(t *testing.T) {
	rows := make([]Record, 25)
	for i := range rows {
		rows[i] = Record{"location": "Austin", "price": float64(i), "demand": 1.0}
	}
	d := NewDatasetWithColumns([]string{"location", "price", "demand"}, rows)

	chart, table := Extract(d, "austin prices")

	require.NotNil(t, chart)
	assert.Len(t, chart.Prices, 10)
	assert.Len(t, chart.Years, 10)
	assert.Len(t, table, 5)
}

func TestExtractSyntheticDemand(t *testing.T) {
	// One numeric column with no demand-like name: it becomes the price
	// series and demand is synthesized as 1.5*i.
	rows := []Record{
		{"location": "Austin", "units": 10.0},
		{"location": "Austin", "units": 20.0},
		{"location": "Austin", "units": 30.0},
	}
	d := NewDatasetWithColumns([]string{"location", "units"}, rows)

	chart, _ := Extract(d, "austin inventory")

	require.NotNil(t, chart)
	assert.Equal(t, []float64{10, 20, 30}, chart.Prices)
	assert.Equal(t, []float64{0, 1.5, 3}, chart.Demand)
}

func TestExtractPriceRolePreferredOverPosition(t *testing.T) {
	rows := []Record{
		{"location": "Austin", "beds": 3.0, "listing_price": 100.0},
		{"location": "Austin", "beds": 4.0, "listing_price": 200.0},
	}
	d := NewDatasetWithColumns([]string{"location", "beds", "listing_price"}, rows)

	chart, _ := Extract(d, "austin")

	require.NotNil(t, chart)
	// listing_price wins over the positionally-first numeric column.
	assert.Equal(t, []float64{100, 200}, chart.Prices)
}

func TestExtractNoNumericColumns(t *testing.T) {
	rows := []Record{
		{"location": "Austin", "agent": "Kim"},
		{"location": "Denver", "agent": "Lee"},
	}
	d := NewDatasetWithColumns([]string{"location", "agent"}, rows)

	chart, table := Extract(d, "austin")

	assert.Nil(t, chart)
	// The table survives even when no chart can be built.
	require.Len(t, table, 1)
	assert.Equal(t, "Austin", table[0]["location"])
}

func TestExtractNoTokenMatchKeepsFullData(t *testing.T) {
	chart, table := Extract(marketDataset(), "seattle outlook")

	require.NotNil(t, chart)
	assert.Len(t, chart.Prices, 4)
	assert.Len(t, table, 4)
}

func TestExtractEmptyDataset(t *testing.T) {
	chart, table := Extract(NewDataset(nil), "anything")

	assert.Nil(t, chart)
	assert.Nil(t, table)
}

func TestExtractNoLocationColumn(t *testing.T) {
	rows := []Record{
		{"price": 100.0, "demand": 1.0},
		{"price": 200.0, "demand": 2.0},
	}
	d := NewDatasetWithColumns([]string{"price", "demand"}, rows)

	chart, table := Extract(d, "austin market")

	require.NotNil(t, chart)
	assert.Equal(t, []float64{100, 200}, chart.Prices)
	assert.Equal(t, []float64{1, 2}, chart.Demand)
	assert.Len(t, table, 2)
}
