package persona

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	ColumnTimestamp = "timestamp"
	ColumnAmount    = "amount"
	ColumnCategory  = "category"
)

// RequiredColumns are the columns every upload must carry.
var RequiredColumns = []string{ColumnTimestamp, ColumnAmount, ColumnCategory}

// Clean validates the table structure and coerces it into a TransactionSet.
//
// Malformed cells never fail the call: an unparseable timestamp or amount, an
// empty cell, or a category outside the accepted set simply drops the row.
// Only a missing column (SchemaError) or an empty result (EmptyDataError) fail.
func Clean(t *Table) (TransactionSet, error) {
	cols := make(map[string]int, len(RequiredColumns))
	var missing []string
	for _, name := range RequiredColumns {
		idx := t.Column(name)
		if idx < 0 {
			missing = append(missing, name)
			continue
		}
		cols[name] = idx
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Required: RequiredColumns, Missing: missing}
	}

	set := make(TransactionSet, 0, len(t.Records))
	for i := range t.Records {
		row, ok := cleanRow(t, i, cols)
		if !ok {
			continue
		}
		set = append(set, row)
	}

	if len(set) == 0 {
		return nil, &EmptyDataError{Reason: "No valid transactions found after preprocessing."}
	}
	return set, nil
}

func cleanRow(t *Table, i int, cols map[string]int) (TransactionRow, bool) {
	rawTS, ok := t.cell(i, cols[ColumnTimestamp])
	if !ok {
		return TransactionRow{}, false
	}
	ts, ok := ParseTimestamp(rawTS)
	if !ok {
		return TransactionRow{}, false
	}

	rawAmount, ok := t.cell(i, cols[ColumnAmount])
	if !ok {
		return TransactionRow{}, false
	}
	amount, ok := ParseAmount(rawAmount)
	if !ok {
		return TransactionRow{}, false
	}

	rawCategory, ok := t.cell(i, cols[ColumnCategory])
	if !ok {
		return TransactionRow{}, false
	}
	category, ok := ParseCategory(rawCategory)
	if !ok {
		return TransactionRow{}, false
	}

	return TransactionRow{Timestamp: ts, Amount: amount, Category: category}, true
}

// groupedAmount matches numbers written with comma thousands separators.
var groupedAmount = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// ParseAmount coerces a numeric cell. Commas are accepted only as thousands
// separators ("1,250.50"); a decimal comma such as "12,50" is unparseable.
// NaN and infinities count as missing.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !groupedAmount.MatchString(s) {
			return 0, false
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// timestampLayouts are tried in order. Ambiguous numeric dates are read day first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006 3:04:05 PM",
	"2/1/2006 3:04 PM",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006",
	// day-first is only a preference: 01/15/2024 still parses month first
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseTimestamp parses a date/time cell, reporting false instead of an error
// when no known layout matches.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
