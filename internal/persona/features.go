package persona

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// FeatureVector is the twelve-field behavioural summary of a TransactionSet.
// Field order is the order the scaler was fitted with; see FeatureNames.
type FeatureVector struct {
	TotalSpend             float64 `json:"total_spend"`
	ImpulseSpendingPct     float64 `json:"impulse_spending_pct"`
	JoySpendingPct         float64 `json:"joy_spending_pct"`
	GrowthSpendingPct      float64 `json:"growth_spending_pct"`
	SurvivalSpendingPct    float64 `json:"survival_spending_pct"`
	TransactionFrequency   float64 `json:"transaction_frequency"`
	AvgTransactionValue    float64 `json:"avg_transaction_value"`
	AvgImpulseAmount       float64 `json:"avg_impulse_amount"`
	WeekendSpendingPct     float64 `json:"weekend_spending_pct"`
	LateNightSpendingPct   float64 `json:"late_night_spending_pct"`
	MedianTransactionValue float64 `json:"median_transaction_value"`
	StdTransactionValue    float64 `json:"std_transaction_value"`
}

var featureNames = []string{
	"total_spend",
	"impulse_spending_pct",
	"joy_spending_pct",
	"growth_spending_pct",
	"survival_spending_pct",
	"transaction_frequency",
	"avg_transaction_value",
	"avg_impulse_amount",
	"weekend_spending_pct",
	"late_night_spending_pct",
	"median_transaction_value",
	"std_transaction_value",
}

// FeatureNames returns the feature names in vector order.
func FeatureNames() []string {
	names := make([]string, len(featureNames))
	copy(names, featureNames)
	return names
}

// Values returns the features in the order given by FeatureNames.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.TotalSpend,
		f.ImpulseSpendingPct,
		f.JoySpendingPct,
		f.GrowthSpendingPct,
		f.SurvivalSpendingPct,
		f.TransactionFrequency,
		f.AvgTransactionValue,
		f.AvgImpulseAmount,
		f.WeekendSpendingPct,
		f.LateNightSpendingPct,
		f.MedianTransactionValue,
		f.StdTransactionValue,
	}
}

// Late-night window is [lateNightStart, 24) ∪ [0, lateNightEnd).
const (
	lateNightStart = 22
	lateNightEnd   = 4
)

type yearMonth struct {
	year  int
	month time.Month
}

// Extract computes the FeatureVector of a cleaned, non-empty set.
// Every computation is total over validated input; ratios go through share.
func Extract(set TransactionSet) FeatureVector {
	var (
		total      decimal.Decimal
		weekend    decimal.Decimal
		lateNight  decimal.Decimal
		impulseN   int64
		byCategory = make(map[Category]decimal.Decimal, len(Categories))
		months     = make(map[yearMonth]struct{})
		amounts    = make([]float64, 0, len(set))
	)

	for _, row := range set {
		amt := decimal.NewFromFloat(row.Amount)
		total = total.Add(amt)
		byCategory[row.Category] = byCategory[row.Category].Add(amt)
		if row.Category == CategoryImpulse {
			impulseN++
		}

		switch row.Timestamp.Weekday() {
		case time.Saturday, time.Sunday:
			weekend = weekend.Add(amt)
		}
		if h := row.Timestamp.Hour(); h >= lateNightStart || h < lateNightEnd {
			lateNight = lateNight.Add(amt)
		}

		months[yearMonth{row.Timestamp.Year(), row.Timestamp.Month()}] = struct{}{}
		amounts = append(amounts, row.Amount)
	}

	fv := FeatureVector{
		TotalSpend:             total.InexactFloat64(),
		ImpulseSpendingPct:     share(byCategory[CategoryImpulse], total),
		JoySpendingPct:         share(byCategory[CategoryJoy], total),
		GrowthSpendingPct:      share(byCategory[CategoryGrowth], total),
		SurvivalSpendingPct:    share(byCategory[CategorySurvival], total),
		TransactionFrequency:   float64(max(len(months), 1)),
		AvgTransactionValue:    stat.Mean(amounts, nil),
		WeekendSpendingPct:     share(weekend, total),
		LateNightSpendingPct:   share(lateNight, total),
		MedianTransactionValue: median(amounts),
	}
	if impulseN > 0 {
		fv.AvgImpulseAmount = byCategory[CategoryImpulse].Div(decimal.NewFromInt(impulseN)).InexactFloat64()
	}
	if len(amounts) > 1 {
		fv.StdTransactionValue = stat.StdDev(amounts, nil)
	}
	return fv
}

// share is part/total, or 0 when total is exactly zero.
func share(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Div(total).InexactFloat64()
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
