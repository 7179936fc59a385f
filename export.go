package propsage

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
)

// ExportCSV renders records as CSV bytes with a header row, using the given
// column order. Cells missing from a record render empty; floats render
// without an exponent and without trailing zeros.
func ExportCSV(columns []string, rows []Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(columns); err != nil {
		return nil, NewInternalError(ErrCodeExportFailed, err)
	}
	line := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			line[i] = csvCell(row[col])
		}
		if err := w.Write(line); err != nil {
			return nil, NewInternalError(ErrCodeExportFailed, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, NewInternalError(ErrCodeExportFailed, err)
	}
	return buf.Bytes(), nil
}

func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatFloat(x, 'f', -1, 64)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return stringify(x)
	}
}
