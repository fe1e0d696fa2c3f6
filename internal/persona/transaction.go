package persona

import (
	"time"
)

// Category is the spending bucket a transaction was tagged with.
type Category string

const (
	CategorySurvival Category = "Survival"
	CategoryGrowth   Category = "Growth"
	CategoryJoy      Category = "Joy"
	CategoryImpulse  Category = "Impulse"
)

// Categories lists the accepted categories.
var Categories = []Category{CategorySurvival, CategoryGrowth, CategoryJoy, CategoryImpulse}

// ParseCategory matches s against the accepted categories, case-sensitively.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// TransactionRow is one cleaned ledger entry.
type TransactionRow struct {
	Timestamp time.Time
	Amount    float64
	Category  Category
}

// TransactionSet is the cleaned, non-empty ledger for a single request.
type TransactionSet []TransactionRow

// Period returns the earliest and latest timestamps in the set.
func (s TransactionSet) Period() (first, last time.Time) {
	for i, row := range s {
		if i == 0 || row.Timestamp.Before(first) {
			first = row.Timestamp
		}
		if i == 0 || row.Timestamp.After(last) {
			last = row.Timestamp
		}
	}
	return first, last
}
