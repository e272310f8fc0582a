package chart

import (
	"tally/internal/core"
	"tally/internal/stats"
)

// UncategorizedLabel names the ring slice of expenses without a known category.
const UncategorizedLabel = "Uncategorized"

// UncategorizedColor is the neutral color of that slice.
const UncategorizedColor = "#9E9E9E"

// TrendColor is the bar color of trend charts.
const TrendColor = "#6750A4"

// RingData turns an aggregate into ring input: categories largest first,
// followed by the uncategorized remainder when there is one.
func RingData(agg core.Aggregate) []Datum {
	sorted := stats.SortedBreakdown(agg.Breakdown)
	out := make([]Datum, 0, len(sorted)+1)
	for _, b := range sorted {
		out = append(out, Datum{Label: b.Name, Value: b.Amount.Major(), Color: b.Color})
	}
	if agg.Uncategorized.Cents > 0 {
		out = append(out, Datum{Label: UncategorizedLabel, Value: agg.Uncategorized.Major(), Color: UncategorizedColor})
	}
	return out
}

// TrendData labels each trend bucket of w.
func TrendData(w core.Window, trend core.Trend) []Datum {
	labels := w.BucketLabels()
	out := make([]Datum, len(trend))
	for i, v := range trend {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		out[i] = Datum{Label: label, Value: v, Color: TrendColor}
	}
	return out
}

// Equal reports whether two datasets hold the same values in the same order.
func Equal(a, b []Datum) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
