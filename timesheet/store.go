/*
store.go - Persistence contracts

KEY INTERFACES:
  EntryStore:    Time entries by id, by (worker, day, project), by range
  RateStore:     Wage rate history (also a costing.RateSource)
  SettingsStore: String key/value settings
  DirectoryStore: Users, projects, project-manager assignments
  AuditLog:      Append-only change log
  TxStore:       All of the above plus an atomic transaction boundary

LOOKUPS:
  Get and Find lookups return (nil, nil) when the record does not exist.

IMPLEMENTATIONS:
  - store/sqlite: database/sql over SQLite
  - store/memory: in-memory, for tests and demos
*/
package timesheet

import (
	"context"
	"time"

	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
)

// EntryQuery selects entries for reporting. Zero fields do not filter.
type EntryQuery struct {
	Period  calendar.Period
	Worker  *costing.WorkerID
	Project *ProjectID
}

type EntryStore interface {
	GetEntry(ctx context.Context, id EntryID) (*Entry, error)

	// FindEntry looks up the entry for a (worker, day, project) slot.
	FindEntry(ctx context.Context, worker costing.WorkerID, day calendar.Day, project *ProjectID) (*Entry, error)

	// EntriesInRange returns a worker's entries with day in period, ordered by day.
	EntriesInRange(ctx context.Context, worker costing.WorkerID, period calendar.Period) ([]Entry, error)

	// QueryEntries returns entries for reports, ordered by day then worker.
	QueryEntries(ctx context.Context, q EntryQuery) ([]Entry, error)

	// SaveEntry inserts or replaces an entry by ID, including its submission.
	SaveEntry(ctx context.Context, e Entry) error

	DeleteEntry(ctx context.Context, id EntryID) error
	ProjectHasEntries(ctx context.Context, id ProjectID) (bool, error)
}

type RateStore interface {
	costing.RateSource

	// SaveRate upserts on (worker, effective date).
	SaveRate(ctx context.Context, worker costing.WorkerID, rate costing.Rate) error
}

type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
	SetSetting(ctx context.Context, key, value string) error
	ListSettings(ctx context.Context) (map[string]string, error)
}

type DirectoryStore interface {
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id costing.WorkerID) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)

	SaveProject(ctx context.Context, p Project) error
	GetProject(ctx context.Context, id ProjectID) (*Project, error)
	GetProjectByName(ctx context.Context, name string) (*Project, error)
	ListProjects(ctx context.Context) ([]Project, error)
	DeleteProject(ctx context.Context, id ProjectID) error

	AssignManager(ctx context.Context, manager costing.WorkerID, project ProjectID) error
	UnassignManager(ctx context.Context, manager costing.WorkerID, project ProjectID) error
	ManagedProjects(ctx context.Context, manager costing.WorkerID) ([]ProjectID, error)
}

// =============================================================================
// AUDIT LOG - Who changed what, and when
// =============================================================================

type AuditAction string

const (
	AuditCreated        AuditAction = "created"
	AuditUpdated        AuditAction = "updated"
	AuditDeleted        AuditAction = "deleted"
	AuditSubmitted      AuditAction = "submitted"
	AuditUnsubmitted    AuditAction = "unsubmitted"
	AuditArchived       AuditAction = "archived"
	AuditUnarchived     AuditAction = "unarchived"
	AuditRateSet        AuditAction = "rate_set"
	AuditSettingChanged AuditAction = "setting_changed"
)

// AuditEntry is one change-log row.
type AuditEntry struct {
	ID       string
	At       time.Time
	Actor    costing.WorkerID // empty for system actions
	Table    string
	RecordID string
	Action   AuditAction
	Details  map[string]any
}

type AuditFilter struct {
	Table    string
	RecordID string
	Actor    *costing.WorkerID
	Actions  []AuditAction
	Limit    int
}

type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	EntryStore
	RateStore
	SettingsStore
	DirectoryStore
	AuditLog
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
