/*
Package costing is the wage costing engine.

PURPOSE:
  Turns hours worked into money. Given a worker, a work day and hours, it finds
  the hourly rate in effect on that day and applies the overhead ("burden")
  percentage to produce labor cost and fully-loaded total cost.

KEY CONCEPTS IN THIS FILE (types.go):
  - WorkerID: Type-safe worker identifier
  - Work:     The inputs to a cost calculation (who, when, how long)
  - Cost:     The four cost figures (rate, overhead, labor, total)

FORMULA:
  labor = hours × rate
  total = labor × (1 + overhead/100)

  Only labor and total are rounded (2 places, half-even). Rate and overhead
  are kept exactly as configured. Report sums add the rounded row values.

SNAPSHOTS:
  A Cost captured at submission time is frozen onto the entry and never
  recomputed, so later rate or overhead changes do not rewrite history.
  Unsubmitted entries are costed live for display only.

MISSING RATES:
  A worker with no rate effective on the day is costed at 0. This is not an
  error; Cost.RateMissing is set so callers can surface it.

SEE ALSO:
  - rate.go:   Rate history and effective-rate lookup
  - engine.go: Engine (snapshot and display costing)
*/
package costing

import (
	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// WorkerID identifies the person whose hours are being costed.
type WorkerID string

// =============================================================================
// WORK - Inputs to a cost calculation
// =============================================================================

// Work is the subset of a time entry the engine needs.
type Work struct {
	Worker WorkerID
	Day    calendar.Day
	Hours  decimal.Decimal
}

// =============================================================================
// COST - Output of a cost calculation
// =============================================================================

// Cost carries the four cost figures for one entry.
type Cost struct {
	Rate            decimal.Decimal // hourly rate applied
	OverheadPercent decimal.Decimal // burden percent applied
	Labor           decimal.Decimal // hours × rate, rounded
	Total           decimal.Decimal // labor × (1 + overhead/100), rounded

	// RateMissing is set when no rate was effective on the work day.
	RateMissing bool
}

// Equal compares all figures numerically.
func (c Cost) Equal(other Cost) bool {
	return c.Rate.Equal(other.Rate) &&
		c.OverheadPercent.Equal(other.OverheadPercent) &&
		c.Labor.Equal(other.Labor) &&
		c.Total.Equal(other.Total) &&
		c.RateMissing == other.RateMissing
}

// Costable is anything that can be costed: it exposes its work inputs and,
// once submitted, the cost frozen at submission time.
type Costable interface {
	CostInput() Work
	FrozenCost() (Cost, bool)
}

// =============================================================================
// ARITHMETIC
// =============================================================================

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// MoneyPlaces is the number of decimal places money figures are rounded to.
const MoneyPlaces = 2

// RoundMoney rounds half-even to MoneyPlaces.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(MoneyPlaces)
}

// Compute applies the costing formula. Inputs are not validated; negative
// values must be rejected before they reach the engine.
func Compute(hours, rate, overheadPercent decimal.Decimal) (labor, total decimal.Decimal) {
	rawLabor := hours.Mul(rate)
	rawTotal := rawLabor.Mul(one.Add(overheadPercent.Div(hundred)))
	return RoundMoney(rawLabor), RoundMoney(rawTotal)
}
