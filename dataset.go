package propsage

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Record is one row of an uploaded dataset: column name -> scalar value.
// Missing values are represented as nil or the empty string, never as an
// error; uploads normalise blanks to "" before the dataset is built.
type Record map[string]any

// Dataset is the in-memory columnar view over one uploaded dataset.
// It is built fresh per request from persisted records and is never
// mutated afterwards, so concurrent reads need no coordination.
type Dataset struct {
	columns []string
	rows    []Record
	numeric map[string]bool
}

// NewDataset builds a Dataset from an ordered sequence of records.
// Column order is the first-seen union across all records. Numeric
// sniffing happens once here: a column is numeric iff it has at least one
// non-null value and every non-null value coerces to a number.
func NewDataset(rows []Record) *Dataset {
	d := &Dataset{
		rows:    rows,
		numeric: make(map[string]bool),
	}

	seen := make(map[string]struct{})
	for _, row := range rows {
		for _, col := range recordKeysInOrder(row) {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			d.columns = append(d.columns, col)
		}
	}

	for _, col := range d.columns {
		d.numeric[col] = sniffNumeric(rows, col)
	}
	return d
}

// NewDatasetWithColumns builds a Dataset with an explicit column order, as
// declared by the storage collaborator. Columns present in rows but absent
// from the declared list are appended in first-seen order.
func NewDatasetWithColumns(columns []string, rows []Record) *Dataset {
	d := &Dataset{
		rows:    rows,
		numeric: make(map[string]bool),
	}
	seen := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		d.columns = append(d.columns, col)
	}
	for _, row := range rows {
		for _, col := range recordKeysInOrder(row) {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			d.columns = append(d.columns, col)
		}
	}
	for _, col := range d.columns {
		d.numeric[col] = sniffNumeric(rows, col)
	}
	return d
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Columns returns the column names in stable first-seen order.
func (d *Dataset) Columns() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Rows returns the backing rows in ingestion order. Callers must treat the
// result as read-only.
func (d *Dataset) Rows() []Record {
	if d == nil {
		return nil
	}
	return d.rows
}

// Head returns the first n rows (fewer if the dataset is shorter).
func (d *Dataset) Head(n int) []Record {
	if d == nil || n <= 0 {
		return nil
	}
	if n > len(d.rows) {
		n = len(d.rows)
	}
	out := make([]Record, n)
	copy(out, d.rows[:n])
	return out
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.numeric[name]
	return ok
}

// IsNumeric reports whether the named column sniffed as numeric at build
// time. Sniffing is per-column, not per-cell: a single non-coercible value
// demotes the whole column.
func (d *Dataset) IsNumeric(name string) bool {
	if d == nil {
		return false
	}
	return d.numeric[name]
}

// narrow returns a view over the rows at the given indices, preserving
// column order and the numeric sniff. Rows are shared, not copied.
func (d *Dataset) narrow(keep []int) *Dataset {
	rows := make([]Record, 0, len(keep))
	for _, i := range keep {
		rows = append(rows, d.rows[i])
	}
	return &Dataset{columns: d.columns, rows: rows, numeric: d.numeric}
}

func sniffNumeric(rows []Record, col string) bool {
	nonNull := 0
	for _, row := range rows {
		v, ok := row[col]
		if !ok || isNull(v) {
			continue
		}
		nonNull++
		if _, ok := asNumber(v); !ok {
			return false
		}
	}
	return nonNull > 0
}

// isNull reports whether a cell value stands for "missing". Uploads store
// blanks as "" (the original ingestion convention), so both nil and the
// empty string count.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// asNumber attempts numeric coercion of a scalar cell value. Numeric
// strings coerce; booleans do not.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// recordKeysInOrder returns the keys of a record in a deterministic order.
// Go map iteration is randomized, so "first seen" within a single record is
// pinned by the declared column list when available and by sorted order
// otherwise; NewDatasetWithColumns is the preferred constructor for stored
// uploads, which carry the declared column list.
func recordKeysInOrder(row Record) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
