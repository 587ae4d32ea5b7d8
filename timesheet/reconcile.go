package timesheet

import (
	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
)

// =============================================================================
// RECONCILIATION - Entered hours vs. reference totals
// =============================================================================

// ReferenceTotals maps a day to the hours an external system recorded.
type ReferenceTotals map[calendar.Day]decimal.Decimal

var minutesPerHour = decimal.NewFromInt(60)

// ToleranceHours converts a tolerance in minutes to hours.
func ToleranceHours(minutes decimal.Decimal) decimal.Decimal {
	return minutes.Div(minutesPerHour)
}

// DailyTotals sums hours per day across every entry, including company tasks.
func DailyTotals(entries []Entry) map[calendar.Day]decimal.Decimal {
	totals := make(map[calendar.Day]decimal.Decimal)
	for _, e := range entries {
		totals[e.Day] = totals[e.Day].Add(e.Hours)
	}
	return totals
}

// Reconcile checks every day of period present in reference. Days missing
// from reference are not checked. The result is ordered by day and empty
// when everything is within tolerance (difference ≤ tolerance passes).
func Reconcile(entries []Entry, period calendar.Period, reference ReferenceTotals, tolerance decimal.Decimal) []DayMismatch {
	if len(reference) == 0 {
		return nil
	}
	totals := DailyTotals(entries)

	var mismatches []DayMismatch
	for _, day := range period.Days() {
		ref, ok := reference[day]
		if !ok {
			continue
		}
		entered := totals[day]
		diff := entered.Sub(ref).Abs()
		if diff.GreaterThan(tolerance) {
			mismatches = append(mismatches, DayMismatch{
				Day:        day,
				Entered:    entered,
				Reference:  ref,
				Difference: diff,
				Tolerance:  tolerance,
			})
		}
	}
	return mismatches
}
