package costing

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
)

// =============================================================================
// RATE HISTORY - Time-versioned hourly rates
// =============================================================================

// Rate is an hourly rate that takes effect on EffectiveDate and stays in
// effect until the next rate for the same worker.
type Rate struct {
	EffectiveDate calendar.Day
	HourlyRate    decimal.Decimal
}

// RateHistory is a worker's rates ordered by EffectiveDate ascending, with at
// most one rate per day.
type RateHistory []Rate

// NewRateHistory sorts rates and collapses duplicate days, keeping the last
// rate given for a day.
func NewRateHistory(rates []Rate) RateHistory {
	sorted := make([]Rate, len(rates))
	copy(sorted, rates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})

	h := make(RateHistory, 0, len(sorted))
	for _, r := range sorted {
		if n := len(h); n > 0 && h[n-1].EffectiveDate.Equal(r.EffectiveDate) {
			h[n-1] = r
			continue
		}
		h = append(h, r)
	}
	return h
}

// EffectiveRate returns the rate of the latest entry whose EffectiveDate is on
// or before day. Returns (0, false) when no such entry exists.
func (h RateHistory) EffectiveRate(day calendar.Day) (decimal.Decimal, bool) {
	// First index whose effective date is after day; the one before it applies.
	i := sort.Search(len(h), func(i int) bool {
		return h[i].EffectiveDate.After(day)
	})
	if i == 0 {
		return decimal.Zero, false
	}
	return h[i-1].HourlyRate, true
}

// =============================================================================
// RATE SOURCE - Where histories come from
// =============================================================================

// RateSource loads a worker's rate history ordered by effective date.
type RateSource interface {
	RateHistory(ctx context.Context, worker WorkerID) (RateHistory, error)
}

// cachedRates memoizes histories for the lifetime of one batch (a report or a
// submission), so each worker's history is read once.
type cachedRates struct {
	source RateSource
	cache  map[WorkerID]RateHistory
}

func (c *cachedRates) RateHistory(ctx context.Context, worker WorkerID) (RateHistory, error) {
	if h, ok := c.cache[worker]; ok {
		return h, nil
	}
	h, err := c.source.RateHistory(ctx, worker)
	if err != nil {
		return nil, err
	}
	c.cache[worker] = h
	return h, nil
}
