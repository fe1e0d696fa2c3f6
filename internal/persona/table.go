package persona

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a loosely typed tabular upload: a header row plus string cells.
// Rows may be ragged; a cell past the end of a row reads as missing.
type Table struct {
	Header  []string
	Records [][]string
}

// ReadCSV parses a CSV stream into a Table. Stray quotes inside a field are
// kept as text, so only I/O failures are reported; cell contents are left for
// Clean to judge.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &EmptyDataError{Reason: "No columns to parse from file"}
	}
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: reading header: %w", err)
	}

	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		header[i] = strings.TrimSpace(name)
	}

	table := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ReadCSV: reading record %d: %w", len(table.Records)+1, err)
		}
		table.Records = append(table.Records, record)
	}

	return table, nil
}

// Column returns the index of the named column, or -1 when absent.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// cell returns the trimmed value at (row, col) and whether it is present.
func (t *Table) cell(row, col int) (string, bool) {
	record := t.Records[row]
	if col < 0 || col >= len(record) {
		return "", false
	}
	v := strings.TrimSpace(record[col])
	if _, missing := missingMarkers[v]; missing {
		return "", false
	}
	return v, true
}

// missingMarkers mirrors the usual CSV spellings of an empty value.
var missingMarkers = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
	"None": {},
}
