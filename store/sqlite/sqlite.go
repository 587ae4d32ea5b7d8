/*
Package sqlite provides a SQLite-backed implementation of timesheet.TxStore.

PURPOSE:
  Persists users, projects, wage rates, settings, time entries and the
  change log. Every read and write is available both on the Store and inside
  WithTx, where it runs on the open *sql.Tx.

KEY TABLES:
  users:         Accounts with a comma-separated role set
  projects:      Unique project names, archivable
  pm_projects:   Project-manager assignments
  wage_rates:    One hourly rate per (user, effective_date)
  app_settings:  Key/value settings
  time_entries:  One row per (user, day, project); snapshot_* columns are
                 NULL while open and all set once submitted
  change_log:    Append-only audit rows with JSON details

INDEXES:
  - idx_entries_slot: One entry per (user, day, project-or-company)
  - idx_entries_user_day: Period reads for submission (hot path)
  - idx_change_log_record: Audit lookups per record

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction, so submissions for overlapping periods serialize.

USAGE:
  store, err := sqlite.New("./data/timecost.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := timesheet.NewService(store, defaults)

SEE ALSO:
  - timesheet/store.go: Interface definitions
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/timesheet"
)

// Store implements timesheet.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ timesheet.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and lets the
	// transaction own the connection while it runs.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE COLLATE NOCASE,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		roles TEXT NOT NULL,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS pm_projects (
		user_id TEXT NOT NULL REFERENCES users(id),
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		PRIMARY KEY (user_id, project_id)
	);

	CREATE TABLE IF NOT EXISTS wage_rates (
		user_id TEXT NOT NULL REFERENCES users(id),
		effective_date TEXT NOT NULL,
		hourly_rate TEXT NOT NULL,
		UNIQUE (user_id, effective_date)
	);

	CREATE TABLE IF NOT EXISTS app_settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		project_id TEXT REFERENCES projects(id),
		day TEXT NOT NULL,
		hours TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		submitted_at TEXT,
		snapshot_rate TEXT,
		snapshot_overhead_percent TEXT,
		snapshot_labor_cost TEXT,
		snapshot_total_cost TEXT,
		snapshot_rate_missing INTEGER,
		CHECK (
			(submitted_at IS NULL AND snapshot_rate IS NULL AND snapshot_overhead_percent IS NULL
				AND snapshot_labor_cost IS NULL AND snapshot_total_cost IS NULL)
			OR
			(submitted_at IS NOT NULL AND snapshot_rate IS NOT NULL AND snapshot_overhead_percent IS NOT NULL
				AND snapshot_labor_cost IS NOT NULL AND snapshot_total_cost IS NOT NULL)
		)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_entries_slot
		ON time_entries(user_id, day, IFNULL(project_id, ''));
	CREATE INDEX IF NOT EXISTS idx_entries_user_day
		ON time_entries(user_id, day);
	CREATE INDEX IF NOT EXISTS idx_entries_project
		ON time_entries(project_id) WHERE project_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS change_log (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		at TEXT NOT NULL,
		actor_id TEXT,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_change_log_record
		ON change_log(table_name, record_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (timesheet.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store timesheet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{queries{sqlTx}}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs every query on the open transaction.
type txStore struct {
	queries
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements timesheet.Store over a querier without locking.
type queries struct {
	q querier
}

func (s *Store) read() queries { return queries{s.db} }

// =============================================================================
// ENTRY STORE
// =============================================================================

const entryColumns = `id, user_id, project_id, day, hours, note, created_at, updated_at,
	submitted_at, snapshot_rate, snapshot_overhead_percent, snapshot_labor_cost,
	snapshot_total_cost, snapshot_rate_missing`

func (s *Store) GetEntry(ctx context.Context, id timesheet.EntryID) (*timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetEntry(ctx, id)
}

func (s *Store) FindEntry(ctx context.Context, worker costing.WorkerID, day calendar.Day, project *timesheet.ProjectID) (*timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindEntry(ctx, worker, day, project)
}

func (s *Store) EntriesInRange(ctx context.Context, worker costing.WorkerID, period calendar.Period) ([]timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().EntriesInRange(ctx, worker, period)
}

func (s *Store) QueryEntries(ctx context.Context, q timesheet.EntryQuery) ([]timesheet.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().QueryEntries(ctx, q)
}

func (s *Store) SaveEntry(ctx context.Context, e timesheet.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveEntry(ctx, e)
}

func (s *Store) DeleteEntry(ctx context.Context, id timesheet.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().DeleteEntry(ctx, id)
}

func (s *Store) ProjectHasEntries(ctx context.Context, id timesheet.ProjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ProjectHasEntries(ctx, id)
}

func (q queries) GetEntry(ctx context.Context, id timesheet.EntryID) (*timesheet.Entry, error) {
	entries, err := q.queryEntries(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = ?`, id)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (q queries) FindEntry(ctx context.Context, worker costing.WorkerID, day calendar.Day, project *timesheet.ProjectID) (*timesheet.Entry, error) {
	entries, err := q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM time_entries
		WHERE user_id = ? AND day = ? AND IFNULL(project_id, '') = ?
	`, worker, day, projectKey(project))
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (q queries) EntriesInRange(ctx context.Context, worker costing.WorkerID, period calendar.Period) ([]timesheet.Entry, error) {
	return q.queryEntries(ctx, `
		SELECT `+entryColumns+` FROM time_entries
		WHERE user_id = ? AND day >= ? AND day <= ?
		ORDER BY day ASC, created_at ASC
	`, worker, period.Start, period.End)
}

func (q queries) QueryEntries(ctx context.Context, eq timesheet.EntryQuery) ([]timesheet.Entry, error) {
	var (
		where []string
		args  []any
	)
	if !eq.Period.Start.IsZero() {
		where = append(where, "day >= ?")
		args = append(args, eq.Period.Start)
	}
	if !eq.Period.End.IsZero() {
		where = append(where, "day <= ?")
		args = append(args, eq.Period.End)
	}
	if eq.Worker != nil {
		where = append(where, "user_id = ?")
		args = append(args, *eq.Worker)
	}
	if eq.Project != nil {
		where = append(where, "project_id = ?")
		args = append(args, *eq.Project)
	}

	query := `SELECT ` + entryColumns + ` FROM time_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY day ASC, user_id ASC, created_at ASC"
	return q.queryEntries(ctx, query, args...)
}

// SaveEntry writes the entry and its snapshot columns in one statement.
func (q queries) SaveEntry(ctx context.Context, e timesheet.Entry) error {
	var (
		submittedAt                  sql.NullString
		rate, overhead, labor, total decimal.NullDecimal
		rateMissing                  sql.NullBool
	)
	if e.Submission != nil {
		c := e.Submission.Cost
		submittedAt = nullString(formatTime(e.Submission.At))
		rate = decimal.NewNullDecimal(c.Rate)
		overhead = decimal.NewNullDecimal(c.OverheadPercent)
		labor = decimal.NewNullDecimal(c.Labor)
		total = decimal.NewNullDecimal(c.Total)
		rateMissing = sql.NullBool{Bool: c.RateMissing, Valid: true}
	}

	_, err := q.q.ExecContext(ctx, `
		INSERT INTO time_entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			day = excluded.day,
			hours = excluded.hours,
			note = excluded.note,
			updated_at = excluded.updated_at,
			submitted_at = excluded.submitted_at,
			snapshot_rate = excluded.snapshot_rate,
			snapshot_overhead_percent = excluded.snapshot_overhead_percent,
			snapshot_labor_cost = excluded.snapshot_labor_cost,
			snapshot_total_cost = excluded.snapshot_total_cost,
			snapshot_rate_missing = excluded.snapshot_rate_missing
	`,
		e.ID, e.Worker, nullString(projectKey(e.Project)), e.Day, e.Hours.String(), e.Note,
		formatTime(e.CreatedAt), formatTime(e.UpdatedAt),
		submittedAt, rate, overhead, labor, total, rateMissing,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: entry for %s on %s", timesheet.ErrDuplicate, e.Worker, e.Day)
		}
		return fmt.Errorf("failed to save entry: %w", err)
	}
	return nil
}

func (q queries) DeleteEntry(ctx context.Context, id timesheet.EntryID) error {
	_, err := q.q.ExecContext(ctx, "DELETE FROM time_entries WHERE id = ?", id)
	return err
}

func (q queries) ProjectHasEntries(ctx context.Context, id timesheet.ProjectID) (bool, error) {
	var count int
	err := q.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM time_entries WHERE project_id = ?", id).Scan(&count)
	return count > 0, err
}

func (q queries) queryEntries(ctx context.Context, query string, args ...any) ([]timesheet.Entry, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []timesheet.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (timesheet.Entry, error) {
	var (
		e                            timesheet.Entry
		projectID                    sql.NullString
		createdAt, updatedAt         string
		submittedAt                  sql.NullString
		rate, overhead, labor, total decimal.NullDecimal
		rateMissing                  sql.NullBool
	)
	err := rows.Scan(
		&e.ID, &e.Worker, &projectID, &e.Day, &e.Hours, &e.Note, &createdAt, &updatedAt,
		&submittedAt, &rate, &overhead, &labor, &total, &rateMissing,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.Project = timesheet.ProjectRef(projectID.String)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	if submittedAt.Valid {
		e.Submission = &timesheet.Submission{
			At: parseTime(submittedAt.String),
			Cost: costing.Cost{
				Rate:            rate.Decimal,
				OverheadPercent: overhead.Decimal,
				Labor:           labor.Decimal,
				Total:           total.Decimal,
				RateMissing:     rateMissing.Bool,
			},
		}
	}
	return e, nil
}

// =============================================================================
// RATE STORE
// =============================================================================

func (s *Store) RateHistory(ctx context.Context, worker costing.WorkerID) (costing.RateHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().RateHistory(ctx, worker)
}

func (s *Store) SaveRate(ctx context.Context, worker costing.WorkerID, rate costing.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveRate(ctx, worker, rate)
}

func (q queries) RateHistory(ctx context.Context, worker costing.WorkerID) (costing.RateHistory, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT effective_date, hourly_rate FROM wage_rates
		WHERE user_id = ?
		ORDER BY effective_date ASC
	`, worker)
	if err != nil {
		return nil, fmt.Errorf("failed to query rates: %w", err)
	}
	defer rows.Close()

	var rates []costing.Rate
	for rows.Next() {
		var r costing.Rate
		if err := rows.Scan(&r.EffectiveDate, &r.HourlyRate); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates = append(rates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return costing.NewRateHistory(rates), nil
}

// SaveRate upserts on (user, effective_date).
func (q queries) SaveRate(ctx context.Context, worker costing.WorkerID, rate costing.Rate) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO wage_rates (user_id, effective_date, hourly_rate)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, effective_date) DO UPDATE SET hourly_rate = excluded.hourly_rate
	`, worker, rate.EffectiveDate, rate.HourlyRate.String())
	if err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	return nil
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

func (s *Store) GetSetting(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetSetting(ctx, key)
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SetSetting(ctx, key, value)
}

func (s *Store) ListSettings(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListSettings(ctx)
}

func (q queries) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := q.q.QueryRowContext(ctx, "SELECT value FROM app_settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

func (q queries) SetSetting(ctx context.Context, key, value string) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO app_settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (q queries) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT key, value FROM app_settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// =============================================================================
// DIRECTORY STORE - users, projects, manager assignments
// =============================================================================

const userColumns = "id, email, username, password_hash, roles, archived, created_at"

func (s *Store) SaveUser(ctx context.Context, u timesheet.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id costing.WorkerID) (*timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUser(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUserByUsername(ctx, username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUserByEmail(ctx, email)
}

func (s *Store) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListUsers(ctx)
}

func (q queries) SaveUser(ctx context.Context, u timesheet.User) error {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			username = excluded.username,
			password_hash = excluded.password_hash,
			roles = excluded.roles,
			archived = excluded.archived
	`, u.ID, u.Email, u.Username, u.PasswordHash, strings.Join(roles, ","), u.Archived, formatTime(u.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: user %s", timesheet.ErrDuplicate, u.Username)
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (q queries) GetUser(ctx context.Context, id costing.WorkerID) (*timesheet.User, error) {
	return q.getUser(ctx, "id = ?", id)
}

func (q queries) GetUserByUsername(ctx context.Context, username string) (*timesheet.User, error) {
	return q.getUser(ctx, "username = ?", username)
}

func (q queries) GetUserByEmail(ctx context.Context, email string) (*timesheet.User, error) {
	return q.getUser(ctx, "email = ?", email)
}

func (q queries) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	return q.queryUsers(ctx, "SELECT "+userColumns+" FROM users ORDER BY username ASC")
}

func (q queries) getUser(ctx context.Context, where string, arg any) (*timesheet.User, error) {
	users, err := q.queryUsers(ctx, "SELECT "+userColumns+" FROM users WHERE "+where, arg)
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return &users[0], nil
}

func (q queries) queryUsers(ctx context.Context, query string, args ...any) ([]timesheet.User, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []timesheet.User
	for rows.Next() {
		var (
			u         timesheet.User
			roles     string
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &roles, &u.Archived, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		for _, r := range strings.Split(roles, ",") {
			if r != "" {
				u.Roles = append(u.Roles, timesheet.Role(r))
			}
		}
		u.CreatedAt = parseTime(createdAt)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) SaveProject(ctx context.Context, p timesheet.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveProject(ctx, p)
}

func (s *Store) GetProject(ctx context.Context, id timesheet.ProjectID) (*timesheet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetProject(ctx, id)
}

func (s *Store) GetProjectByName(ctx context.Context, name string) (*timesheet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetProjectByName(ctx, name)
}

func (s *Store) ListProjects(ctx context.Context) ([]timesheet.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListProjects(ctx)
}

func (s *Store) DeleteProject(ctx context.Context, id timesheet.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().DeleteProject(ctx, id)
}

func (q queries) SaveProject(ctx context.Context, p timesheet.Project) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO projects (id, name, archived, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, archived = excluded.archived
	`, p.ID, p.Name, p.Archived, formatTime(p.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: project %s", timesheet.ErrDuplicate, p.Name)
		}
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

func (q queries) GetProject(ctx context.Context, id timesheet.ProjectID) (*timesheet.Project, error) {
	return q.getProject(ctx, "id = ?", id)
}

func (q queries) GetProjectByName(ctx context.Context, name string) (*timesheet.Project, error) {
	return q.getProject(ctx, "name = ?", name)
}

func (q queries) ListProjects(ctx context.Context) ([]timesheet.Project, error) {
	return q.queryProjects(ctx, "SELECT id, name, archived, created_at FROM projects ORDER BY name ASC")
}

func (q queries) DeleteProject(ctx context.Context, id timesheet.ProjectID) error {
	if _, err := q.q.ExecContext(ctx, "DELETE FROM pm_projects WHERE project_id = ?", id); err != nil {
		return err
	}
	_, err := q.q.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (q queries) getProject(ctx context.Context, where string, arg any) (*timesheet.Project, error) {
	projects, err := q.queryProjects(ctx, "SELECT id, name, archived, created_at FROM projects WHERE "+where, arg)
	if err != nil || len(projects) == 0 {
		return nil, err
	}
	return &projects[0], nil
}

func (q queries) queryProjects(ctx context.Context, query string, args ...any) ([]timesheet.Project, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []timesheet.Project
	for rows.Next() {
		var (
			p         timesheet.Project
			createdAt string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Archived, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) AssignManager(ctx context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().AssignManager(ctx, manager, project)
}

func (s *Store) UnassignManager(ctx context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().UnassignManager(ctx, manager, project)
}

func (s *Store) ManagedProjects(ctx context.Context, manager costing.WorkerID) ([]timesheet.ProjectID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ManagedProjects(ctx, manager)
}

func (q queries) AssignManager(ctx context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	_, err := q.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO pm_projects (user_id, project_id) VALUES (?, ?)", manager, project)
	return err
}

func (q queries) UnassignManager(ctx context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	_, err := q.q.ExecContext(ctx,
		"DELETE FROM pm_projects WHERE user_id = ? AND project_id = ?", manager, project)
	return err
}

func (q queries) ManagedProjects(ctx context.Context, manager costing.WorkerID) ([]timesheet.ProjectID, error) {
	rows, err := q.q.QueryContext(ctx,
		"SELECT project_id FROM pm_projects WHERE user_id = ? ORDER BY project_id ASC", manager)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []timesheet.ProjectID
	for rows.Next() {
		var id timesheet.ProjectID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry timesheet.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().AppendAudit(ctx, entry)
}

func (s *Store) QueryAudit(ctx context.Context, filter timesheet.AuditFilter) ([]timesheet.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().QueryAudit(ctx, filter)
}

func (q queries) AppendAudit(ctx context.Context, a timesheet.AuditEntry) error {
	var details sql.NullString
	if len(a.Details) > 0 {
		data, err := json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = nullString(string(data))
	}
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO change_log (id, seq, at, actor_id, table_name, record_id, action, details_json)
		VALUES (?, (SELECT IFNULL(MAX(seq), 0) + 1 FROM change_log), ?, ?, ?, ?, ?, ?)
	`, a.ID, formatTime(a.At), nullString(string(a.Actor)), a.Table, a.RecordID, a.Action, details)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns matching rows newest first.
func (q queries) QueryAudit(ctx context.Context, f timesheet.AuditFilter) ([]timesheet.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.Table != "" {
		where = append(where, "table_name = ?")
		args = append(args, f.Table)
	}
	if f.RecordID != "" {
		where = append(where, "record_id = ?")
		args = append(args, f.RecordID)
	}
	if f.Actor != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *f.Actor)
	}
	if len(f.Actions) > 0 {
		marks := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			marks[i] = "?"
			args = append(args, a)
		}
		where = append(where, "action IN ("+strings.Join(marks, ", ")+")")
	}

	query := "SELECT id, at, actor_id, table_name, record_id, action, details_json FROM change_log"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []timesheet.AuditEntry
	for rows.Next() {
		var (
			a       timesheet.AuditEntry
			at      string
			actor   sql.NullString
			details sql.NullString
		)
		if err := rows.Scan(&a.ID, &at, &actor, &a.Table, &a.RecordID, &a.Action, &details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		a.At = parseTime(at)
		a.Actor = costing.WorkerID(actor.String)
		if details.Valid && details.String != "" {
			json.Unmarshal([]byte(details.String), &a.Details)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"change_log", "time_entries", "wage_rates", "pm_projects", "app_settings", "projects", "users"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func projectKey(p *timesheet.ProjectID) string {
	if p == nil {
		return ""
	}
	return string(*p)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
