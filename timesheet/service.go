/*
service.go - Entry lifecycle operations

PURPOSE:
  The Service is the only writer of time entries. It validates input at the
  boundary, keeps the open → locked → open state machine honest, and wraps
  every multi-row change in a single store transaction.

OPERATIONS:
  SaveEntry:   Create or update the entry for a (worker, day, project) slot
  DeleteEntry: Remove an open entry
  Submit:      Reconcile a period against reference totals, then lock + cost
  Unsubmit:    Reopen locked entries and drop their frozen cost
  SetRate:     Add or replace a wage rate effective on a day

ATOMICITY:
  Submit reads, validates, locks and audits inside one WithTx call. If any
  reference day is out of tolerance nothing is written. The service assumes
  the store serializes overlapping transactions; it does no locking itself.

SEE ALSO:
  - reconcile.go: Tolerance check
  - costing/engine.go: Snapshot costing
*/
package timesheet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/logger"
)

// Service coordinates entries, settings and costing over a TxStore.
type Service struct {
	store    TxStore
	settings *Settings

	now   func() time.Time
	newID func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store TxStore, defaults Defaults, opts ...Option) *Service {
	s := &Service{
		store:    store,
		settings: NewSettings(store, defaults),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() TxStore { return s.store }

// Settings returns typed settings over the service's store.
func (s *Service) Settings() *Settings { return s.settings }

// Engine returns a costing engine over the service's rate store.
func (s *Service) Engine() *costing.Engine { return costing.NewEngine(s.store) }

// NewID returns a fresh record id.
func (s *Service) NewID() string { return s.newID() }

// =============================================================================
// ENTRIES
// =============================================================================

// SaveEntryRequest is an autosave of one timesheet row.
type SaveEntryRequest struct {
	Actor   costing.WorkerID
	Worker  costing.WorkerID
	Day     calendar.Day
	Project *ProjectID
	Hours   decimal.Decimal
	Note    string
}

// SaveEntry creates the entry for (worker, day, project) on first save and
// updates it afterwards. Locked entries are rejected.
func (s *Service) SaveEntry(ctx context.Context, req SaveEntryRequest) (*Entry, error) {
	if req.Worker == "" {
		return nil, invalid("worker", ErrInvalidInput)
	}
	if req.Day.IsZero() {
		return nil, invalid("day", calendar.ErrInvalidDay)
	}
	if req.Hours.IsNegative() {
		return nil, invalid("hours", ErrInvalidHours)
	}

	var saved Entry
	err := s.store.WithTx(ctx, func(tx Store) error {
		if req.Project != nil {
			p, err := tx.GetProject(ctx, *req.Project)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("%w: %s", ErrProjectNotFound, *req.Project)
			}
			if p.Archived {
				return fmt.Errorf("%w: %s", ErrProjectArchived, p.Name)
			}
		}

		existing, err := tx.FindEntry(ctx, req.Worker, req.Day, req.Project)
		if err != nil {
			return err
		}

		now := s.now()
		action := AuditUpdated
		if existing == nil {
			action = AuditCreated
			existing = &Entry{
				ID:        EntryID(s.newID()),
				Worker:    req.Worker,
				Project:   req.Project,
				Day:       req.Day,
				CreatedAt: now,
			}
		} else if existing.IsLocked() {
			return &LockedError{EntryID: existing.ID, Day: existing.Day}
		}

		existing.Hours = req.Hours
		existing.Note = req.Note
		existing.UpdatedAt = now
		if err := tx.SaveEntry(ctx, *existing); err != nil {
			return err
		}
		saved = *existing

		return tx.AppendAudit(ctx, s.audit(req.Actor, "time_entry", string(existing.ID), action, map[string]any{
			"day":   req.Day.String(),
			"hours": req.Hours.String(),
		}))
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// DeleteEntry removes an open entry owned by worker.
func (s *Service) DeleteEntry(ctx context.Context, actor, worker costing.WorkerID, id EntryID) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if e.Worker != worker {
			return ErrForbidden
		}
		if e.IsLocked() {
			return &LockedError{EntryID: e.ID, Day: e.Day}
		}
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "time_entry", string(id), AuditDeleted, map[string]any{
			"day": e.Day.String(),
		}))
	})
}

// Entries returns a worker's entries in period ordered by day.
func (s *Service) Entries(ctx context.Context, worker costing.WorkerID, period calendar.Period) ([]Entry, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	return s.store.EntriesInRange(ctx, worker, period)
}

// =============================================================================
// SUBMISSION
// =============================================================================

// SubmitRequest locks a worker's period after checking reference totals.
type SubmitRequest struct {
	Actor     costing.WorkerID
	Worker    costing.WorkerID
	Period    calendar.Period
	Reference ReferenceTotals // may be nil or partial
}

// SubmitResult summarizes a successful submission.
type SubmitResult struct {
	Locked        []Entry
	AlreadyLocked int
	// MissingRateDays lists days of newly locked entries costed at rate 0.
	MissingRateDays []calendar.Day
	Tolerance       decimal.Decimal // hours
}

// Submit reconciles the period and, when every referenced day is within
// tolerance, locks all open entries in it and freezes their cost. Any
// mismatch returns a *ReconciliationError and leaves every entry unchanged.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.Worker == "" {
		return nil, invalid("worker", ErrInvalidInput)
	}
	if err := req.Period.Validate(); err != nil {
		return nil, err
	}
	for day, hours := range req.Reference {
		if hours.IsNegative() {
			return nil, invalid("reference "+day.String(), ErrInvalidHours)
		}
	}

	var result SubmitResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		settings := s.settings.bind(tx)

		entries, err := tx.EntriesInRange(ctx, req.Worker, req.Period)
		if err != nil {
			return err
		}

		minutes, err := settings.ToleranceMinutes(ctx)
		if err != nil {
			return err
		}
		result.Tolerance = ToleranceHours(minutes)

		if mismatches := Reconcile(entries, req.Period, req.Reference, result.Tolerance); len(mismatches) > 0 {
			return &ReconciliationError{Worker: req.Worker, Period: req.Period, Mismatches: mismatches}
		}

		overhead, err := settings.OverheadPercent(ctx)
		if err != nil {
			return err
		}
		engine := costing.NewEngine(tx).Cached()
		now := s.now()
		missing := make(map[calendar.Day]bool)

		for _, e := range entries {
			if e.IsLocked() {
				result.AlreadyLocked++
				continue
			}
			cost, err := engine.SnapshotCost(ctx, e.CostInput(), overhead)
			if err != nil {
				return err
			}
			e.lock(now, cost)
			if err := tx.SaveEntry(ctx, e); err != nil {
				return err
			}
			if err := tx.AppendAudit(ctx, s.audit(req.Actor, "time_entry", string(e.ID), AuditSubmitted, map[string]any{
				"day":        e.Day.String(),
				"hours":      e.Hours.String(),
				"total_cost": cost.Total.StringFixed(2),
			})); err != nil {
				return err
			}
			if cost.RateMissing && !missing[e.Day] {
				missing[e.Day] = true
				result.MissingRateDays = append(result.MissingRateDays, e.Day)
			}
			result.Locked = append(result.Locked, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("timesheet submitted",
		"worker", req.Worker, "period", req.Period.String(),
		"locked", len(result.Locked), "already_locked", result.AlreadyLocked)
	if len(result.MissingRateDays) > 0 {
		logger.Warn("submitted entries costed without a wage rate",
			"worker", req.Worker, "days", len(result.MissingRateDays))
	}
	return &result, nil
}

// UnsubmitRequest reopens entries. Either EntryIDs, or Worker and Period.
type UnsubmitRequest struct {
	Actor    costing.WorkerID
	EntryIDs []EntryID
	Worker   costing.WorkerID
	Period   calendar.Period
}

// UnsubmitResult summarizes an unsubmit.
type UnsubmitResult struct {
	Reopened    []Entry
	AlreadyOpen int
}

// Unsubmit reopens locked entries and drops their frozen cost in the same
// write, so no entry is ever open with a cost or locked without one.
func (s *Service) Unsubmit(ctx context.Context, req UnsubmitRequest) (*UnsubmitResult, error) {
	if len(req.EntryIDs) == 0 {
		if req.Worker == "" {
			return nil, invalid("worker", ErrInvalidInput)
		}
		if err := req.Period.Validate(); err != nil {
			return nil, err
		}
	}

	var result UnsubmitResult
	err := s.store.WithTx(ctx, func(tx Store) error {
		entries, err := s.unsubmitTargets(ctx, tx, req)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsLocked() {
				result.AlreadyOpen++
				continue
			}
			previous := e.Submission.Cost.Total
			e.unlock()
			e.UpdatedAt = s.now()
			if err := tx.SaveEntry(ctx, e); err != nil {
				return err
			}
			if err := tx.AppendAudit(ctx, s.audit(req.Actor, "time_entry", string(e.ID), AuditUnsubmitted, map[string]any{
				"day":                e.Day.String(),
				"cleared_total_cost": previous.StringFixed(2),
			})); err != nil {
				return err
			}
			result.Reopened = append(result.Reopened, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("timesheet unsubmitted", "actor", req.Actor, "reopened", len(result.Reopened))
	return &result, nil
}

func (s *Service) unsubmitTargets(ctx context.Context, tx Store, req UnsubmitRequest) ([]Entry, error) {
	if len(req.EntryIDs) == 0 {
		return tx.EntriesInRange(ctx, req.Worker, req.Period)
	}
	entries := make([]Entry, 0, len(req.EntryIDs))
	seen := make(map[EntryID]bool, len(req.EntryIDs))
	for _, id := range req.EntryIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		e, err := tx.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if e == nil {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		entries = append(entries, *e)
	}
	return entries, nil
}

// =============================================================================
// RATES AND SETTINGS
// =============================================================================

// SetRate adds or replaces the worker's rate effective on rate.EffectiveDate.
func (s *Service) SetRate(ctx context.Context, actor, worker costing.WorkerID, rate costing.Rate) error {
	if rate.HourlyRate.IsNegative() {
		return invalid("hourly_rate", ErrInvalidRate)
	}
	if rate.EffectiveDate.IsZero() {
		return invalid("effective_date", calendar.ErrInvalidDay)
	}
	return s.store.WithTx(ctx, func(tx Store) error {
		u, err := tx.GetUser(ctx, worker)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: %s", ErrUserNotFound, worker)
		}
		if err := tx.SaveRate(ctx, worker, rate); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "wage_rate", string(worker), AuditRateSet, map[string]any{
			"effective_date": rate.EffectiveDate.String(),
			"hourly_rate":    rate.HourlyRate.String(),
		}))
	})
}

// Rates returns the worker's rate history.
func (s *Service) Rates(ctx context.Context, worker costing.WorkerID) (costing.RateHistory, error) {
	return s.store.RateHistory(ctx, worker)
}

// ChangeSetting validates and stores a setting, with an audit row.
func (s *Service) ChangeSetting(ctx context.Context, actor costing.WorkerID, key, value string) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		if err := s.settings.bind(tx).Set(ctx, key, value); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "app_settings", key, AuditSettingChanged, map[string]any{
			"value": strings.TrimSpace(value),
		}))
	})
}

func (s *Service) audit(actor costing.WorkerID, table, recordID string, action AuditAction, details map[string]any) AuditEntry {
	return AuditEntry{
		ID:       s.newID(),
		At:       s.now(),
		Actor:    actor,
		Table:    table,
		RecordID: recordID,
		Action:   action,
		Details:  details,
	}
}
