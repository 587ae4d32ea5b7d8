// Package memory provides an in-memory timesheet.TxStore for tests and demos.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/timesheet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory guards a state with one mutex. WithTx runs against a private copy
// of the state and swaps it in only when fn succeeds.
type Memory struct {
	mu sync.Mutex
	st *state
}

var _ timesheet.TxStore = (*Memory)(nil)

type state struct {
	entries  map[timesheet.EntryID]timesheet.Entry
	rates    map[costing.WorkerID]map[calendar.Day]costing.Rate
	settings map[string]string
	users    map[costing.WorkerID]timesheet.User
	projects map[timesheet.ProjectID]timesheet.Project
	managers map[costing.WorkerID]map[timesheet.ProjectID]bool
	audit    []timesheet.AuditEntry
}

func New() *Memory {
	return &Memory{st: &state{
		entries:  make(map[timesheet.EntryID]timesheet.Entry),
		rates:    make(map[costing.WorkerID]map[calendar.Day]costing.Rate),
		settings: make(map[string]string),
		users:    make(map[costing.WorkerID]timesheet.User),
		projects: make(map[timesheet.ProjectID]timesheet.Project),
		managers: make(map[costing.WorkerID]map[timesheet.ProjectID]bool),
	}}
}

// WithTx executes fn against a copy of the store. The copy replaces the
// store's state when fn returns nil and is discarded otherwise.
func (m *Memory) WithTx(_ context.Context, fn func(timesheet.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.st.clone()
	if err := fn(working); err != nil {
		return err
	}
	m.st = working
	return nil
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = New().st
	return nil
}

func (s *state) clone() *state {
	c := &state{
		entries:  make(map[timesheet.EntryID]timesheet.Entry, len(s.entries)),
		rates:    make(map[costing.WorkerID]map[calendar.Day]costing.Rate, len(s.rates)),
		settings: make(map[string]string, len(s.settings)),
		users:    make(map[costing.WorkerID]timesheet.User, len(s.users)),
		projects: make(map[timesheet.ProjectID]timesheet.Project, len(s.projects)),
		managers: make(map[costing.WorkerID]map[timesheet.ProjectID]bool, len(s.managers)),
		audit:    append([]timesheet.AuditEntry(nil), s.audit...),
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	for w, byDay := range s.rates {
		cp := make(map[calendar.Day]costing.Rate, len(byDay))
		for d, r := range byDay {
			cp[d] = r
		}
		c.rates[w] = cp
	}
	for k, v := range s.settings {
		c.settings[k] = v
	}
	for k, v := range s.users {
		c.users[k] = copyUser(v)
	}
	for k, v := range s.projects {
		c.projects[k] = v
	}
	for mgr, set := range s.managers {
		cp := make(map[timesheet.ProjectID]bool, len(set))
		for p := range set {
			cp[p] = true
		}
		c.managers[mgr] = cp
	}
	return c
}

func copyUser(u timesheet.User) timesheet.User {
	u.Roles = append([]timesheet.Role(nil), u.Roles...)
	return u
}

// =============================================================================
// LOCKED FACADE
// =============================================================================

func (m *Memory) GetEntry(ctx context.Context, id timesheet.EntryID) (*timesheet.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetEntry(ctx, id)
}

func (m *Memory) FindEntry(ctx context.Context, worker costing.WorkerID, day calendar.Day, project *timesheet.ProjectID) (*timesheet.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.FindEntry(ctx, worker, day, project)
}

func (m *Memory) EntriesInRange(ctx context.Context, worker costing.WorkerID, period calendar.Period) ([]timesheet.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.EntriesInRange(ctx, worker, period)
}

func (m *Memory) QueryEntries(ctx context.Context, q timesheet.EntryQuery) ([]timesheet.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.QueryEntries(ctx, q)
}

func (m *Memory) SaveEntry(ctx context.Context, e timesheet.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveEntry(ctx, e)
}

func (m *Memory) DeleteEntry(ctx context.Context, id timesheet.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteEntry(ctx, id)
}

func (m *Memory) ProjectHasEntries(ctx context.Context, id timesheet.ProjectID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ProjectHasEntries(ctx, id)
}

func (m *Memory) RateHistory(ctx context.Context, worker costing.WorkerID) (costing.RateHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.RateHistory(ctx, worker)
}

func (m *Memory) SaveRate(ctx context.Context, worker costing.WorkerID, rate costing.Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveRate(ctx, worker, rate)
}

func (m *Memory) GetSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetSetting(ctx, key)
}

func (m *Memory) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SetSetting(ctx, key, value)
}

func (m *Memory) ListSettings(ctx context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListSettings(ctx)
}

func (m *Memory) SaveUser(ctx context.Context, u timesheet.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveUser(ctx, u)
}

func (m *Memory) GetUser(ctx context.Context, id costing.WorkerID) (*timesheet.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetUser(ctx, id)
}

func (m *Memory) GetUserByUsername(ctx context.Context, username string) (*timesheet.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetUserByUsername(ctx, username)
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*timesheet.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetUserByEmail(ctx, email)
}

func (m *Memory) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListUsers(ctx)
}

func (m *Memory) SaveProject(ctx context.Context, p timesheet.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.SaveProject(ctx, p)
}

func (m *Memory) GetProject(ctx context.Context, id timesheet.ProjectID) (*timesheet.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetProject(ctx, id)
}

func (m *Memory) GetProjectByName(ctx context.Context, name string) (*timesheet.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.GetProjectByName(ctx, name)
}

func (m *Memory) ListProjects(ctx context.Context) ([]timesheet.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ListProjects(ctx)
}

func (m *Memory) DeleteProject(ctx context.Context, id timesheet.ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.DeleteProject(ctx, id)
}

func (m *Memory) AssignManager(ctx context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.AssignManager(ctx, manager, project)
}

func (m *Memory) UnassignManager(ctx context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.UnassignManager(ctx, manager, project)
}

func (m *Memory) ManagedProjects(ctx context.Context, manager costing.WorkerID) ([]timesheet.ProjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.ManagedProjects(ctx, manager)
}

func (m *Memory) AppendAudit(ctx context.Context, entry timesheet.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.AppendAudit(ctx, entry)
}

func (m *Memory) QueryAudit(ctx context.Context, filter timesheet.AuditFilter) ([]timesheet.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.QueryAudit(ctx, filter)
}

// =============================================================================
// STATE - unlocked timesheet.Store
// =============================================================================

func (s *state) GetEntry(_ context.Context, id timesheet.EntryID) (*timesheet.Entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *state) FindEntry(_ context.Context, worker costing.WorkerID, day calendar.Day, project *timesheet.ProjectID) (*timesheet.Entry, error) {
	for _, e := range s.entries {
		if e.Worker == worker && e.Day == day && timesheet.SameProject(e.Project, project) {
			return &e, nil
		}
	}
	return nil, nil
}

func (s *state) EntriesInRange(ctx context.Context, worker costing.WorkerID, period calendar.Period) ([]timesheet.Entry, error) {
	return s.QueryEntries(ctx, timesheet.EntryQuery{Period: period, Worker: &worker})
}

func (s *state) QueryEntries(_ context.Context, q timesheet.EntryQuery) ([]timesheet.Entry, error) {
	var out []timesheet.Entry
	for _, e := range s.entries {
		if !q.Period.Start.IsZero() && e.Day.Before(q.Period.Start) {
			continue
		}
		if !q.Period.End.IsZero() && e.Day.After(q.Period.End) {
			continue
		}
		if q.Worker != nil && e.Worker != *q.Worker {
			continue
		}
		if q.Project != nil && !timesheet.SameProject(e.Project, q.Project) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Day != b.Day {
			return a.Day.Before(b.Day)
		}
		if a.Worker != b.Worker {
			return a.Worker < b.Worker
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (s *state) SaveEntry(_ context.Context, e timesheet.Entry) error {
	for id, other := range s.entries {
		if id != e.ID && other.Worker == e.Worker && other.Day == e.Day && timesheet.SameProject(other.Project, e.Project) {
			return timesheet.ErrDuplicate
		}
	}
	s.entries[e.ID] = e
	return nil
}

func (s *state) DeleteEntry(_ context.Context, id timesheet.EntryID) error {
	delete(s.entries, id)
	return nil
}

func (s *state) ProjectHasEntries(_ context.Context, id timesheet.ProjectID) (bool, error) {
	for _, e := range s.entries {
		if e.Project != nil && *e.Project == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *state) RateHistory(_ context.Context, worker costing.WorkerID) (costing.RateHistory, error) {
	rates := make([]costing.Rate, 0, len(s.rates[worker]))
	for _, r := range s.rates[worker] {
		rates = append(rates, r)
	}
	return costing.NewRateHistory(rates), nil
}

func (s *state) SaveRate(_ context.Context, worker costing.WorkerID, rate costing.Rate) error {
	byDay := s.rates[worker]
	if byDay == nil {
		byDay = make(map[calendar.Day]costing.Rate)
		s.rates[worker] = byDay
	}
	byDay[rate.EffectiveDate] = rate
	return nil
}

func (s *state) GetSetting(_ context.Context, key string) (string, bool, error) {
	v, ok := s.settings[key]
	return v, ok, nil
}

func (s *state) SetSetting(_ context.Context, key, value string) error {
	s.settings[key] = value
	return nil
}

func (s *state) ListSettings(_ context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.settings))
	for k, v := range s.settings {
		out[k] = v
	}
	return out, nil
}

func (s *state) SaveUser(_ context.Context, u timesheet.User) error {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if strings.EqualFold(other.Email, u.Email) || other.Username == u.Username {
			return timesheet.ErrDuplicate
		}
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *state) GetUser(_ context.Context, id costing.WorkerID) (*timesheet.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	u = copyUser(u)
	return &u, nil
}

func (s *state) GetUserByUsername(_ context.Context, username string) (*timesheet.User, error) {
	for _, u := range s.users {
		if u.Username == username {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, nil
}

func (s *state) GetUserByEmail(_ context.Context, email string) (*timesheet.User, error) {
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, nil
}

func (s *state) ListUsers(_ context.Context) ([]timesheet.User, error) {
	out := make([]timesheet.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *state) SaveProject(_ context.Context, p timesheet.Project) error {
	for id, other := range s.projects {
		if id != p.ID && other.Name == p.Name {
			return timesheet.ErrDuplicate
		}
	}
	s.projects[p.ID] = p
	return nil
}

func (s *state) GetProject(_ context.Context, id timesheet.ProjectID) (*timesheet.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *state) GetProjectByName(_ context.Context, name string) (*timesheet.Project, error) {
	for _, p := range s.projects {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *state) ListProjects(_ context.Context) ([]timesheet.Project, error) {
	out := make([]timesheet.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *state) DeleteProject(_ context.Context, id timesheet.ProjectID) error {
	delete(s.projects, id)
	for _, set := range s.managers {
		delete(set, id)
	}
	return nil
}

func (s *state) AssignManager(_ context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	set := s.managers[manager]
	if set == nil {
		set = make(map[timesheet.ProjectID]bool)
		s.managers[manager] = set
	}
	set[project] = true
	return nil
}

func (s *state) UnassignManager(_ context.Context, manager costing.WorkerID, project timesheet.ProjectID) error {
	delete(s.managers[manager], project)
	return nil
}

func (s *state) ManagedProjects(_ context.Context, manager costing.WorkerID) ([]timesheet.ProjectID, error) {
	out := make([]timesheet.ProjectID, 0, len(s.managers[manager]))
	for p := range s.managers[manager] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *state) AppendAudit(_ context.Context, entry timesheet.AuditEntry) error {
	s.audit = append(s.audit, entry)
	return nil
}

// QueryAudit returns matching rows newest first.
func (s *state) QueryAudit(_ context.Context, f timesheet.AuditFilter) ([]timesheet.AuditEntry, error) {
	var out []timesheet.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		a := s.audit[i]
		if f.Table != "" && a.Table != f.Table {
			continue
		}
		if f.RecordID != "" && a.RecordID != f.RecordID {
			continue
		}
		if f.Actor != nil && a.Actor != *f.Actor {
			continue
		}
		if len(f.Actions) > 0 && !containsAction(f.Actions, a.Action) {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func containsAction(actions []timesheet.AuditAction, a timesheet.AuditAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
