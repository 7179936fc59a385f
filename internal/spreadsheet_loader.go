package internal

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/propsage/propsage"
)

// SpreadsheetLoader parses uploaded tabular files into column order plus
// records. Supported formats: .csv, .tsv, .json (array of objects), .xlsx.
// Cells that parse as numbers become float64; blank cells become "" so null
// handling is uniform downstream.
type SpreadsheetLoader struct {
	maxRows int
}

func NewSpreadsheetLoader(cfg propsage.UploadConfig) *SpreadsheetLoader {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = 50000
	}
	return &SpreadsheetLoader{maxRows: maxRows}
}

// Load parses the file content, dispatching on the file name extension.
func (l *SpreadsheetLoader) Load(fileName string, r io.Reader) ([]string, []propsage.Record, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return l.loadDelimited(r, ',')
	case ".tsv":
		return l.loadDelimited(r, '\t')
	case ".json":
		return l.loadJSON(r)
	case ".xlsx":
		return l.loadXLSX(r)
	default:
		return nil, nil, propsage.NewError(propsage.ErrorTypeValidation,
			propsage.ErrCodeInvalidRequest,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(fileName)))
	}
}

func (l *SpreadsheetLoader) loadDelimited(r io.Reader, comma rune) ([]string, []propsage.Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows []propsage.Record
	for len(rows) < l.maxRows {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", len(rows)+2, err)
		}
		record := make(propsage.Record, len(columns))
		for i, col := range columns {
			if i < len(fields) {
				record[col] = coerceCell(fields[i])
			} else {
				record[col] = ""
			}
		}
		rows = append(rows, record)
	}
	return columns, rows, nil
}

func (l *SpreadsheetLoader) loadJSON(r io.Reader) ([]string, []propsage.Record, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("decode json: %w", err)
	}
	if len(raw) > l.maxRows {
		raw = raw[:l.maxRows]
	}

	// Column order: keys of the first record, then any later additions in
	// first-seen order.
	var columns []string
	seen := make(map[string]bool)
	rows := make([]propsage.Record, len(raw))
	for i, obj := range raw {
		record := make(propsage.Record, len(obj))
		for k, v := range obj {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
			record[k] = coerceJSONValue(v)
		}
		rows[i] = record
	}
	for _, record := range rows {
		for _, col := range columns {
			if _, ok := record[col]; !ok {
				record[col] = ""
			}
		}
	}
	return columns, rows, nil
}

func (l *SpreadsheetLoader) loadXLSX(r io.Reader) ([]string, []propsage.Record, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read xlsx: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, nil, fmt.Errorf("open xlsx: %w", err)
	}

	shared := parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml"))
	sheetXML := readZipFile(zr, firstSheetPath(zr))
	if len(sheetXML) == 0 {
		return nil, nil, fmt.Errorf("xlsx has no readable worksheet")
	}

	rr := newSheetRowReader(sheetXML, shared)
	header, ok := rr.Next()
	if !ok || len(header) == 0 {
		return nil, nil, nil
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	var rows []propsage.Record
	for len(rows) < l.maxRows {
		cells, ok := rr.Next()
		if !ok {
			break
		}
		record := make(propsage.Record, len(columns))
		for i, col := range columns {
			if i < len(cells) {
				record[col] = coerceCell(cells[i])
			} else {
				record[col] = ""
			}
		}
		rows = append(rows, record)
	}
	return columns, rows, nil
}

// coerceJSONValue keeps decoded scalars as-is (null becomes "") and
// flattens nested arrays/objects to their JSON text, so every stored cell
// stays a scalar.
func coerceJSONValue(v any) any {
	switch v.(type) {
	case nil:
		return ""
	case string, float64, bool:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// coerceCell turns a raw text cell into float64 when it parses as a number,
// otherwise keeps the trimmed string. Blank stays "".
func coerceCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	if x, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return x
	}
	return trimmed
}

// firstSheetPath resolves the worksheet referenced by the first sheet entry
// of the workbook, falling back to the conventional sheet1.xml path.
func firstSheetPath(zr *zip.Reader) string {
	sheets := parseWorkbookSheets(readZipFile(zr, "xl/workbook.xml"))
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	if len(sheets) > 0 {
		if target, ok := rels[sheets[0].rid]; ok {
			if !strings.HasPrefix(target, "xl/") {
				target = "xl/" + strings.TrimPrefix(target, "/")
			}
			return target
		}
	}
	return "xl/worksheets/sheet1.xml"
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				return nil
			}
			return data
		}
	}
	return nil
}

type workbookSheet struct {
	name string
	rid  string
}

func parseWorkbookSheets(data []byte) []workbookSheet {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var sheets []workbookSheet
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "sheet" {
			var s workbookSheet
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "name":
					s.name = a.Value
				case "id":
					s.rid = a.Value
				}
			}
			sheets = append(sheets, s)
		}
	}
}

func parseRelationships(data []byte) map[string]string {
	rels := make(map[string]string)
	if len(data) == 0 {
		return rels
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return rels
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "Relationship" {
			var id, target string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "Id":
					id = a.Value
				case "Target":
					target = a.Value
				}
			}
			if id != "" {
				rels[id] = target
			}
		}
	}
}

func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	var inT bool
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "si" {
				buf.Reset()
			}
			if se.Name.Local == "t" {
				inT = true
			}
		case xml.EndElement:
			if se.Name.Local == "t" {
				inT = false
			}
			if se.Name.Local == "si" {
				out = append(out, buf.String())
				buf.Reset()
			}
		case xml.CharData:
			if inT {
				buf.Write([]byte(se))
			}
		}
	}
}

// sheetRowReader streams <row> elements out of one worksheet document,
// resolving shared strings and sparse cell references.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
	inRow  bool
	curRow []string
	maxCol int
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]string, bool) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				r.inRow = true
				r.curRow = nil
				r.maxCol = 0
			}
			if r.inRow && se.Name.Local == "c" {
				var rAttr, tAttr string
				for _, a := range se.Attr {
					switch a.Name.Local {
					case "r":
						rAttr = a.Value
					case "t":
						tAttr = a.Value
					}
				}
				colIdx := colIndexFromRef(rAttr)
				if colIdx+1 > r.maxCol {
					r.maxCol = colIdx + 1
				}
				val := r.readCellValue(tAttr)
				if len(r.curRow) <= colIdx {
					tmp := make([]string, colIdx+1)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.curRow[colIdx] = val
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				if len(r.curRow) < r.maxCol {
					tmp := make([]string, r.maxCol)
					copy(tmp, r.curRow)
					r.curRow = tmp
				}
				r.inRow = false
				return r.curRow, true
			}
		}
	}
}

func (r *sheetRowReader) readCellValue(tAttr string) string {
	var val string
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				var sb strings.Builder
				for {
					tk, er := r.dec.Token()
					if er != nil {
						break
					}
					if ed, ok := tk.(xml.EndElement); ok && (ed.Name.Local == "v" || ed.Name.Local == "t") {
						break
					}
					if ch, ok := tk.(xml.CharData); ok {
						sb.Write([]byte(ch))
					}
				}
				val = sb.String()
			}
		case xml.EndElement:
			if se.Name.Local == "c" {
				if tAttr == "s" {
					idx, err := strconv.Atoi(val)
					if err == nil && idx >= 0 && idx < len(r.shared) {
						return r.shared[idx]
					}
					return ""
				}
				return val
			}
		}
	}
}

// colIndexFromRef converts a cell reference like "C12" to a 0-based column
// index. An empty reference maps to column 0.
func colIndexFromRef(ref string) int {
	i := 0
	for i < len(ref) {
		c := ref[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') {
			i++
			continue
		}
		break
	}
	s := strings.ToUpper(ref[:i])
	idx := 0
	for j := 0; j < len(s); j++ {
		idx = idx*26 + int(s[j]-'A'+1)
	}
	if idx == 0 {
		return 0
	}
	return idx - 1
}
