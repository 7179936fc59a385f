package propsage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyRoles(t *testing.T) {
	rows := []Record{
		{"Location": "Austin", "Price": 250000.0, "Demand Score": 8.1, "Notes": "good"},
		{"Location": "Denver", "Price": 310000.0, "Demand Score": 7.4, "Notes": ""},
	}
	d := NewDatasetWithColumns([]string{"Location", "Price", "Demand Score", "Notes"}, rows)

	roles := Classify(d)

	assert.Equal(t, []string{"Price", "Demand Score"}, roles.Numeric)
	assert.Equal(t, []string{"Location", "Notes"}, roles.Textual)
	assert.Equal(t, []string{"Location"}, roles.Location)
	assert.Equal(t, []string{"Price"}, roles.Price)
	assert.Equal(t, []string{"Demand Score"}, roles.Demand)
}

func TestClassifyPriceRequiresNumeric(t *testing.T) {
	// A textual column named like a price column carries no price role.
	rows := []Record{
		{"price_band": "low", "cost": 12.0},
	}
	d := NewDatasetWithColumns([]string{"price_band", "cost"}, rows)

	roles := Classify(d)

	assert.Equal(t, []string{"cost"}, roles.Price)
	assert.NotContains(t, roles.Price, "price_band")
}

func TestClassifyLocationIgnoresNumericness(t *testing.T) {
	rows := []Record{
		{"area_code": 78701.0, "city": "Austin"},
	}
	d := NewDatasetWithColumns([]string{"area_code", "city"}, rows)

	roles := Classify(d)

	// Both match location keywords regardless of column type.
	assert.Equal(t, []string{"area_code", "city"}, roles.Location)
}

func TestClassifyColumnCanCarrySeveralRoles(t *testing.T) {
	rows := []Record{{"value_score": 9.0}}
	d := NewDatasetWithColumns([]string{"value_score"}, rows)

	roles := Classify(d)

	assert.Contains(t, roles.Price, "value_score")
	assert.Contains(t, roles.Demand, "value_score")
	assert.Contains(t, roles.Numeric, "value_score")
}

func TestClassifyIsIdempotent(t *testing.T) {
	rows := []Record{
		{"location": "Austin", "price": 100.0},
		{"location": "Denver", "price": 200.0},
	}
	d := NewDatasetWithColumns([]string{"location", "price"}, rows)

	first := Classify(d)
	second := Classify(d)

	assert.Equal(t, first, second)
}

func TestClassifyEmptyDataset(t *testing.T) {
	roles := Classify(NewDataset(nil))

	assert.Empty(t, roles.Numeric)
	assert.Empty(t, roles.Textual)
	assert.Empty(t, roles.Location)
	assert.Empty(t, roles.Price)
	assert.Empty(t, roles.Demand)
}
