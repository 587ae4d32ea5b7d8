package costing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) calendar.Day { return calendar.MustParseDay(s) }

func rate(effective, hourly string) costing.Rate {
	return costing.Rate{EffectiveDate: day(effective), HourlyRate: dec(hourly)}
}

type fixedEntry struct {
	work   costing.Work
	frozen *costing.Cost
}

func (f fixedEntry) CostInput() costing.Work { return f.work }
func (f fixedEntry) FrozenCost() (costing.Cost, bool) {
	if f.frozen == nil {
		return costing.Cost{}, false
	}
	return *f.frozen, true
}

type countingSource struct {
	costing.StaticRates
	calls int
}

func (c *countingSource) RateHistory(ctx context.Context, w costing.WorkerID) (costing.RateHistory, error) {
	c.calls++
	return c.StaticRates.RateHistory(ctx, w)
}

type failingSource struct{}

func (failingSource) RateHistory(context.Context, costing.WorkerID) (costing.RateHistory, error) {
	return nil, errors.New("db down")
}

// =============================================================================
// EFFECTIVE RATE
// =============================================================================

func TestRateHistory_EffectiveRate(t *testing.T) {
	h := costing.NewRateHistory([]costing.Rate{
		rate("2024-06-01", "25"),
		rate("2024-01-01", "20"),
	})

	tests := []struct {
		name  string
		day   string
		want  string
		found bool
	}{
		{"before first rate", "2023-12-31", "0", false},
		{"on first effective date", "2024-01-01", "20", true},
		{"between rates", "2024-05-31", "20", true},
		{"on second effective date", "2024-06-01", "25", true},
		{"after last rate", "2025-02-01", "25", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := h.EffectiveRate(day(tt.day))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestNewRateHistory_OneRatePerDay(t *testing.T) {
	h := costing.NewRateHistory([]costing.Rate{
		rate("2024-01-01", "20"),
		rate("2024-01-01", "22"),
	})

	require.Len(t, h, 1)
	assert.True(t, dec("22").Equal(h[0].HourlyRate))
}

func TestRateHistory_Empty(t *testing.T) {
	got, found := costing.RateHistory(nil).EffectiveRate(day("2024-01-01"))
	assert.False(t, found)
	assert.True(t, got.IsZero())
}

// =============================================================================
// SNAPSHOT COST
// =============================================================================

func TestSnapshotCost_RateChangeMidYear(t *testing.T) {
	// GIVEN: rates [2024-01-01: $20, 2024-06-01: $25], overhead 10%
	engine := costing.NewEngine(costing.StaticRates{
		"w1": {rate("2024-01-01", "20"), rate("2024-06-01", "25")},
	})
	ctx := context.Background()
	overhead := dec("10")

	// WHEN: costing 8 hours in May and in July
	may, err := engine.SnapshotCost(ctx, costing.Work{Worker: "w1", Day: day("2024-05-01"), Hours: dec("8")}, overhead)
	require.NoError(t, err)
	july, err := engine.SnapshotCost(ctx, costing.Work{Worker: "w1", Day: day("2024-07-01"), Hours: dec("8")}, overhead)
	require.NoError(t, err)

	// THEN: each uses the rate in effect on its day
	assert.Equal(t, "20.00", may.Rate.StringFixed(2))
	assert.Equal(t, "160.00", may.Labor.StringFixed(2))
	assert.Equal(t, "176.00", may.Total.StringFixed(2))
	assert.False(t, may.RateMissing)

	assert.Equal(t, "25.00", july.Rate.StringFixed(2))
	assert.Equal(t, "200.00", july.Labor.StringFixed(2))
	assert.Equal(t, "220.00", july.Total.StringFixed(2))
}

func TestSnapshotCost_Idempotent(t *testing.T) {
	engine := costing.NewEngine(costing.StaticRates{"w1": {rate("2024-01-01", "17.35")}})
	w := costing.Work{Worker: "w1", Day: day("2024-02-02"), Hours: dec("7.25")}

	first, err := engine.SnapshotCost(context.Background(), w, dec("27.5"))
	require.NoError(t, err)
	second, err := engine.SnapshotCost(context.Background(), w, dec("27.5"))
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
}

func TestSnapshotCost_MissingRateCostsZero(t *testing.T) {
	engine := costing.NewEngine(costing.StaticRates{})

	cost, err := engine.SnapshotCost(context.Background(),
		costing.Work{Worker: "nobody", Day: day("2024-02-02"), Hours: dec("8")}, dec("10"))

	require.NoError(t, err, "missing rate is not an error")
	assert.True(t, cost.RateMissing)
	assert.True(t, cost.Labor.IsZero())
	assert.True(t, cost.Total.IsZero())
	assert.True(t, dec("10").Equal(cost.OverheadPercent))
}

func TestSnapshotCost_PropagatesSourceErrors(t *testing.T) {
	engine := costing.NewEngine(failingSource{})
	_, err := engine.SnapshotCost(context.Background(), costing.Work{Worker: "w1", Day: day("2024-01-01")}, decimal.Zero)
	assert.Error(t, err)
}

func TestCompute_RoundsHalfEvenOnlyAtOutputs(t *testing.T) {
	// 1.5h × 10.01 = 15.015 → 15.02 (half-even: the digit before 5 is 1, rounds up to 2)
	// 15.015 × 1.1 = 16.5165 → 16.52 (computed from unrounded labor)
	labor, total := costing.Compute(dec("1.5"), dec("10.01"), dec("10"))
	assert.Equal(t, "15.02", labor.StringFixed(2))
	assert.Equal(t, "16.52", total.StringFixed(2))

	// 0.5h × 0.05 = 0.025 → 0.02 under half-even
	labor, _ = costing.Compute(dec("0.5"), dec("0.05"), decimal.Zero)
	assert.Equal(t, "0.02", labor.StringFixed(2))
}

// =============================================================================
// DISPLAY COST
// =============================================================================

func TestCostForDisplay_PrefersFrozenSnapshot(t *testing.T) {
	engine := costing.NewEngine(costing.StaticRates{"w1": {rate("2024-01-01", "99")}})
	frozen := costing.Cost{Rate: dec("20"), OverheadPercent: dec("10"), Labor: dec("160"), Total: dec("176")}
	entry := fixedEntry{
		work:   costing.Work{Worker: "w1", Day: day("2024-05-01"), Hours: dec("8")},
		frozen: &frozen,
	}

	got, err := engine.CostForDisplay(context.Background(), entry, dec("50"))
	require.NoError(t, err)
	assert.True(t, frozen.Equal(got), "frozen snapshot must be returned verbatim")
}

func TestCostForDisplay_LiveWhenUnsubmitted(t *testing.T) {
	engine := costing.NewEngine(costing.StaticRates{"w1": {rate("2024-01-01", "30")}})
	entry := fixedEntry{work: costing.Work{Worker: "w1", Day: day("2024-05-01"), Hours: dec("2")}}

	got, err := engine.CostForDisplay(context.Background(), entry, dec("50"))
	require.NoError(t, err)
	assert.Equal(t, "60.00", got.Labor.StringFixed(2))
	assert.Equal(t, "90.00", got.Total.StringFixed(2))
}

func TestCached_ReadsEachHistoryOnce(t *testing.T) {
	src := &countingSource{StaticRates: costing.StaticRates{"w1": {rate("2024-01-01", "20")}}}
	engine := costing.NewEngine(src).Cached()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := engine.SnapshotCost(ctx, costing.Work{Worker: "w1", Day: day("2024-02-01"), Hours: dec("1")}, decimal.Zero)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls)
}
