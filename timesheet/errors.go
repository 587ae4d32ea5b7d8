/*
errors.go - Centralized error types for timesheets

ERROR CATEGORIES:
  1. Validation errors - Bad input rejected at the service boundary
  2. State errors      - Operations the entry lifecycle does not allow
  3. Lookup errors     - Missing users, projects, entries

USAGE:
  if errors.Is(err, timesheet.ErrOutOfTolerance) {
      var rec *timesheet.ReconciliationError
      errors.As(err, &rec) // per-day detail
  }
*/
package timesheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEntryLocked is returned when mutating a submitted entry.
	ErrEntryLocked = errors.New("entry is locked")

	// ErrOutOfTolerance is returned when entered hours disagree with the
	// reference totals for at least one day.
	ErrOutOfTolerance = errors.New("daily hours out of tolerance")

	// ErrInvalidHours is returned for negative hours.
	ErrInvalidHours = errors.New("hours must be non-negative")

	// ErrInvalidRate is returned for negative hourly rates.
	ErrInvalidRate = errors.New("hourly rate must be non-negative")

	// ErrInvalidSetting is returned when a setting value fails validation.
	ErrInvalidSetting = errors.New("invalid setting value")

	// ErrInvalidInput covers other malformed requests.
	ErrInvalidInput = errors.New("invalid input")

	ErrEntryNotFound   = errors.New("entry not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrProjectNotFound = errors.New("project not found")

	// ErrProjectArchived is returned when booking hours against an archived project.
	ErrProjectArchived = errors.New("project is archived")

	// ErrProjectInUse is returned when deleting a project that has entries.
	ErrProjectInUse = errors.New("project has time entries")

	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("already exists")

	// ErrForbidden is returned when the actor may not touch the record.
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DayMismatch describes one day whose entered hours differ from the reference
// by more than the tolerance.
type DayMismatch struct {
	Day        calendar.Day
	Entered    decimal.Decimal
	Reference  decimal.Decimal
	Difference decimal.Decimal // |Entered - Reference|
	Tolerance  decimal.Decimal // hours
}

func (m DayMismatch) String() string {
	return fmt.Sprintf("%s: reference %sh vs entered %sh (tolerance %sh)",
		m.Day, m.Reference.StringFixed(2), m.Entered.StringFixed(2), m.Tolerance.StringFixed(2))
}

// ReconciliationError rejects a whole submission.
type ReconciliationError struct {
	Worker     costing.WorkerID
	Period     calendar.Period
	Mismatches []DayMismatch
}

func (e *ReconciliationError) Error() string {
	parts := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		parts[i] = m.String()
	}
	return fmt.Sprintf("submission for %s rejected, %d day(s) out of tolerance: %s",
		e.Period, len(e.Mismatches), strings.Join(parts, "; "))
}

func (e *ReconciliationError) Unwrap() error { return ErrOutOfTolerance }

// LockedError identifies the locked entry a mutation was attempted on.
type LockedError struct {
	EntryID EntryID
	Day     calendar.Day
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("entry %s on %s is locked; unsubmit it first", e.EntryID, e.Day)
}

func (e *LockedError) Unwrap() error { return ErrEntryLocked }

// ValidationError names the offending field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidSetting) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrProjectArchived) ||
		errors.Is(err, calendar.ErrInvalidPeriod) ||
		errors.Is(err, calendar.ErrInvalidDay)
}

// IsConflict returns true if the request clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEntryLocked) ||
		errors.Is(err, ErrProjectInUse) ||
		errors.Is(err, ErrDuplicate)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrProjectNotFound)
}
