package persona

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReadCSV(t *testing.T, data string) *Table {
	t.Helper()
	table, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	return table
}

func TestClean_MissingCategoryColumn(t *testing.T) {
	table := mustReadCSV(t, "timestamp,amount\n2024-01-01,10\n")

	set, err := Clean(table)
	require.Error(t, err)
	assert.Nil(t, set)

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"category"}, schemaErr.Missing)
	assert.Equal(t, RequiredColumns, schemaErr.Required)
	assert.Contains(t, err.Error(), "timestamp, amount, category")
}

func TestClean_AllRowsOutsideCategorySet(t *testing.T) {
	table := mustReadCSV(t, "timestamp,amount,category\n2024-01-01,10,Other\n2024-01-02,20,Other\n")

	_, err := Clean(table)
	var emptyErr *EmptyDataError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, "No valid transactions found after preprocessing.", err.Error())
}

func TestClean_DropsMalformedRows(t *testing.T) {
	data := strings.Join([]string{
		"id,timestamp,amount,category,note",
		"1,2024-01-15 10:00:00,100,Survival,ok",
		"2,not a date,50,Joy,bad timestamp",
		"3,2024-01-16,abc,Joy,bad amount",
		"4,2024-01-17,NaN,Joy,nan amount",
		"5,2024-01-18,20,,missing category",
		"6,2024-01-19,20,joy,wrong case",
		"7,,20,Joy,missing timestamp",
		"8,2024-01-20",
		"9,20/01/2024 22:15,\"1,250.50\",Impulse,day first",
	}, "\n")

	set, err := Clean(mustReadCSV(t, data))
	require.NoError(t, err)
	require.Len(t, set, 2)

	assert.Equal(t, 100.0, set[0].Amount)
	assert.Equal(t, CategorySurvival, set[0].Category)

	assert.Equal(t, 1250.50, set[1].Amount)
	assert.Equal(t, CategoryImpulse, set[1].Category)
	assert.Equal(t, time.January, set[1].Timestamp.Month())
	assert.Equal(t, 20, set[1].Timestamp.Day())
	assert.Equal(t, 22, set[1].Timestamp.Hour())
}

func TestClean_StrayQuoteInExtraColumn(t *testing.T) {
	data := strings.Join([]string{
		"timestamp,amount,category,note",
		"2024-01-03 10:00,100,Survival,5\" screen",
		"2024-01-04 11:00,40,Joy,plain",
		"2024-01-05 12:00,\"12,50\",Joy,decimal comma",
	}, "\n")

	table, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, table.Records, 3)
	assert.Equal(t, "5\" screen", table.Records[0][3])

	set, err := Clean(table)
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, 100.0, set[0].Amount)
	assert.Equal(t, 40.0, set[1].Amount)
}

func TestClean_HeaderWithBOMAndSpaces(t *testing.T) {
	table := mustReadCSV(t, "\ufefftimestamp , amount,category\n2024-03-01,5,Growth\n")

	set, err := Clean(table)
	require.NoError(t, err)
	require.Len(t, set, 1)
	assert.Equal(t, CategoryGrowth, set[0].Category)
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	var emptyErr *EmptyDataError
	assert.True(t, errors.As(err, &emptyErr))
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in    string
		ok    bool
		month time.Month
		day   int
	}{
		{"2024-02-03", true, time.February, 3},
		{"2024-02-03T08:15:00Z", true, time.February, 3},
		{"2024-02-03T08:15:00+05:30", true, time.February, 3},
		{"03/02/2024", true, time.February, 3},
		{"3/2/2024 8:15", true, time.February, 3},
		{"03-02-2024 08:15:00", true, time.February, 3},
		{"02/13/2024", true, time.February, 13},
		{"3 Feb 2024", true, time.February, 3},
		{"yesterday", false, 0, 0},
		{"2024-13-45", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.month, got.Month())
				assert.Equal(t, tt.day, got.Day())
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42", 42, true},
		{" -3.5 ", -3.5, true},
		{"1,000", 1000, true},
		{"-12,345,678.9", -12345678.9, true},
		{"12,50", 0, false},
		{"1,00,000", 0, false},
		{"1000,5", 0, false},
		{"1e3", 1000, true},
		{"Inf", 0, false},
		{"NaN", 0, false},
		{"twelve", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
