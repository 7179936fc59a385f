package propsage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportCSV(t *testing.T) {
	columns := []string{"location", "price", "sold"}
	rows := []Record{
		{"location": "Austin", "price": 250000.0, "sold": true},
		{"location": "Denver", "price": 310500.5},
	}

	data, err := ExportCSV(columns, rows)
	require.NoError(t, err)

	assert.Equal(t,
		"location,price,sold\n"+
			"Austin,250000,true\n"+
			"Denver,310500.5,\n",
		string(data))
}

func TestExportCSVEmptyRows(t *testing.T) {
	data, err := ExportCSV([]string{"a", "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", string(data))
}

func TestExportCSVQuoting(t *testing.T) {
	data, err := ExportCSV([]string{"note"}, []Record{
		{"note": "3 beds, 2 baths"},
	})
	require.NoError(t, err)
	assert.Equal(t, "note\n\"3 beds, 2 baths\"\n", string(data))
}

func TestCSVCellFloats(t *testing.T) {
	assert.Equal(t, "1200", csvCell(1200.0))
	assert.Equal(t, "10.5", csvCell(10.5))
	assert.Equal(t, "", csvCell(nil))
	assert.Equal(t, "x", csvCell("x"))
}
