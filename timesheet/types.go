/*
Package timesheet implements hour entry, reconciliation and submission.

PURPOSE:
  Workers record hours per day and project. Before a pay period is handed to
  payroll, the entered daily totals are reconciled against an external
  reference (an attendance system export) and, if every checked day is within
  tolerance, the period's entries are locked and their cost is frozen.

STATE MACHINE (per entry):

      SaveEntry            Submit (all days within tolerance)
    ───────────► open ─────────────────────────────────────► locked
                  ▲                                             │
                  └──────────────── Unsubmit (admin) ───────────┘

  open:   mutable, no cost snapshot
  locked: immutable, carries a Submission with the frozen cost

INVARIANTS:
  1. An entry is locked iff it has a Submission, and a Submission always
     carries all four cost figures. Both are structural: there is no separate
     lock flag and no nullable cost fields.
  2. Submit is all-or-nothing over its period: one store transaction reads,
     validates, locks and commits.
  3. Unsubmit removes the Submission, so lock and cost are cleared together.

SEE ALSO:
  - reconcile.go: Daily totals and tolerance check
  - service.go:   Save / Submit / Unsubmit
  - store.go:     Persistence contracts
  - costing/:     The engine that produces snapshots
*/
package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type ProjectID string

// =============================================================================
// ENTRY - Hours a worker recorded on one day
// =============================================================================

// Entry is a worker's hours on one day against a project, or against no
// project for company-level tasks.
type Entry struct {
	ID      EntryID
	Worker  costing.WorkerID
	Project *ProjectID // nil = company task
	Day     calendar.Day
	Hours   decimal.Decimal
	Note    string

	CreatedAt time.Time
	UpdatedAt time.Time

	// Submission is nil while the entry is open.
	Submission *Submission
}

// Submission records when an entry was locked and the cost frozen with it.
type Submission struct {
	At   time.Time
	Cost costing.Cost
}

// Status is the derived lifecycle state of an entry.
type Status string

const (
	StatusOpen   Status = "open"
	StatusLocked Status = "locked"
)

func (e Entry) IsLocked() bool { return e.Submission != nil }

func (e Entry) Status() Status {
	if e.IsLocked() {
		return StatusLocked
	}
	return StatusOpen
}

// CostInput implements costing.Costable.
func (e Entry) CostInput() costing.Work {
	return costing.Work{Worker: e.Worker, Day: e.Day, Hours: e.Hours}
}

// FrozenCost implements costing.Costable.
func (e Entry) FrozenCost() (costing.Cost, bool) {
	if e.Submission == nil {
		return costing.Cost{}, false
	}
	return e.Submission.Cost, true
}

// IsCompanyTask reports whether the entry has no project.
func (e Entry) IsCompanyTask() bool { return e.Project == nil }

// SameProject compares optional project references.
func SameProject(a, b *ProjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (e *Entry) lock(at time.Time, cost costing.Cost) {
	e.Submission = &Submission{At: at, Cost: cost}
}

func (e *Entry) unlock() {
	e.Submission = nil
}

// ProjectRef returns a pointer to id, or nil for the empty id.
func ProjectRef(id string) *ProjectID {
	if id == "" {
		return nil
	}
	p := ProjectID(id)
	return &p
}
