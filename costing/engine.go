package costing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
)

// =============================================================================
// ENGINE - Snapshot and display costing
// =============================================================================

// Engine costs work against a rate source. The overhead percent is always
// supplied by the caller so the engine holds no mutable configuration.
type Engine struct {
	rates RateSource
}

// NewEngine creates an engine reading rates from source.
func NewEngine(source RateSource) *Engine {
	return &Engine{rates: source}
}

// Cached returns an engine that reads each worker's history at most once.
// Not safe for concurrent use; create one per batch.
func (e *Engine) Cached() *Engine {
	if _, ok := e.rates.(*cachedRates); ok {
		return e
	}
	return &Engine{rates: &cachedRates{source: e.rates, cache: make(map[WorkerID]RateHistory)}}
}

// EffectiveRate returns the worker's rate on day and whether one exists.
func (e *Engine) EffectiveRate(ctx context.Context, worker WorkerID, day calendar.Day) (decimal.Decimal, bool, error) {
	history, err := e.rates.RateHistory(ctx, worker)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("failed to load rate history for %s: %w", worker, err)
	}
	rate, ok := history.EffectiveRate(day)
	return rate, ok, nil
}

// SnapshotCost computes the cost to freeze onto an entry at submission.
// It does not persist anything. Calling it twice with unchanged rates and
// overhead yields identical results.
func (e *Engine) SnapshotCost(ctx context.Context, w Work, overheadPercent decimal.Decimal) (Cost, error) {
	rate, found, err := e.EffectiveRate(ctx, w.Worker, w.Day)
	if err != nil {
		return Cost{}, err
	}
	labor, total := Compute(w.Hours, rate, overheadPercent)
	return Cost{
		Rate:            rate,
		OverheadPercent: overheadPercent,
		Labor:           labor,
		Total:           total,
		RateMissing:     !found,
	}, nil
}

// CostForDisplay returns the frozen cost when the item has one, otherwise a
// live cost using the current rate and currentOverhead. Nothing is persisted.
func (e *Engine) CostForDisplay(ctx context.Context, item Costable, currentOverhead decimal.Decimal) (Cost, error) {
	if frozen, ok := item.FrozenCost(); ok {
		return frozen, nil
	}
	return e.SnapshotCost(ctx, item.CostInput(), currentOverhead)
}

// =============================================================================
// STATIC SOURCE - Fixed histories, for callers that already hold the rates
// =============================================================================

// StaticRates is an in-memory RateSource keyed by worker.
type StaticRates map[WorkerID][]Rate

func (s StaticRates) RateHistory(_ context.Context, worker WorkerID) (RateHistory, error) {
	return NewRateHistory(s[worker]), nil
}
