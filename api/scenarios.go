/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	timesheets for demos. Each scenario creates workers, projects, wage rates
	and entries, and submits some weeks so locked costs can be compared with
	live ones.

AVAILABLE SCENARIOS:

	weekly-submission: One worker submitted last week, one did not, one has no rate
	rate-change:       Retroactive raise after a submission; frozen vs live cost
	project-managers:  A project manager who sees one project plus company tasks

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Restore the calling admin so the session survives
 3. Create users, projects, rates and settings through the service
 4. Save entries for last week (Monday to Friday)
 5. Optionally submit against reference totals

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "rate-change"}

Every demo user's password is DemoPassword.

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler struct
  - timesheet/service.go: Operations used to seed data
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/timecost/auth"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/logger"
	"github.com/warp/timecost/timesheet"
)

// DemoPassword is the password of every user a scenario creates.
const DemoPassword = "demo-password"

// Resetter is implemented by stores that can drop all data.
type Resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "weekly-submission",
		Name:        "Weekly Submission",
		Description: "Alice submitted last week within tolerance, Bob has open hours, Carol submitted without a wage rate",
	},
	{
		ID:          "rate-change",
		Name:        "Retroactive Rate Change",
		Description: "A raise recorded after last week was submitted: locked rows keep the old cost, open rows use the new rate",
	},
	{
		ID:          "project-managers",
		Name:        "Project Managers",
		Description: "Pat manages one of two projects and only sees that project plus company tasks",
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var load func(context.Context, *seeder) error
	switch req.ScenarioID {
	case "weekly-submission":
		load = loadWeeklySubmissionScenario
	case "rate-change":
		load = loadRateChangeScenario
	case "project-managers":
		load = loadProjectManagersScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if !h.reset(w, r) {
		return
	}
	s, err := h.newSeeder(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to prepare scenario", err)
		return
	}
	if err := load(ctx, s); err != nil {
		logger.Error("scenario load failed", "scenario", req.ScenarioID, "err", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	logger.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data except the calling admin.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if !h.reset(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	resetter, ok := h.Service.Store().(Resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store cannot be reset", nil)
		return false
	}
	if err := resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return false
	}
	h.currentScenario = ""

	if p := auth.PrincipalFromContext(ctx); p != nil {
		if err := h.Service.Store().SaveUser(ctx, p.User); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to restore caller", err)
			return false
		}
	}
	return true
}

// =============================================================================
// SEEDER - Thin helpers over the service
// =============================================================================

type seeder struct {
	svc   *timesheet.Service
	actor costing.WorkerID
	hash  string

	// monday is the first day of last week.
	monday calendar.Day
}

func (h *Handler) newSeeder(ctx context.Context) (*seeder, error) {
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return nil, err
	}
	s := &seeder{svc: h.Service, hash: hash, monday: lastWeekMonday(calendar.Today())}
	if p := auth.PrincipalFromContext(ctx); p != nil {
		s.actor = p.ID()
	}
	return s, nil
}

// lastWeekMonday returns the Monday of the week before today's.
func lastWeekMonday(today calendar.Day) calendar.Day {
	sinceMonday := (int(today.Weekday()) + 6) % 7
	return today.AddDays(-sinceMonday - 7)
}

func (s *seeder) week() calendar.Period {
	return calendar.Period{Start: s.monday, End: s.monday.AddDays(4)}
}

func (s *seeder) user(ctx context.Context, username string, roles ...timesheet.Role) (costing.WorkerID, error) {
	u, err := s.svc.CreateUser(ctx, s.actor, timesheet.NewUser{
		Email:        username + "@example.com",
		Username:     username,
		PasswordHash: s.hash,
		Roles:        roles,
	})
	if err != nil {
		return "", fmt.Errorf("create user %s: %w", username, err)
	}
	return u.ID, nil
}

func (s *seeder) project(ctx context.Context, name string) (timesheet.ProjectID, error) {
	p, err := s.svc.CreateProject(ctx, s.actor, name)
	if err != nil {
		return "", fmt.Errorf("create project %s: %w", name, err)
	}
	return p.ID, nil
}

func (s *seeder) rate(ctx context.Context, worker costing.WorkerID, from calendar.Day, hourly string) error {
	return s.svc.SetRate(ctx, s.actor, worker, costing.Rate{
		EffectiveDate: from,
		HourlyRate:    decimal.RequireFromString(hourly),
	})
}

// week5 books hours on each weekday starting at first.
func (s *seeder) week5(ctx context.Context, worker costing.WorkerID, first calendar.Day, project *timesheet.ProjectID, hours ...string) error {
	for i, h := range hours {
		_, err := s.svc.SaveEntry(ctx, timesheet.SaveEntryRequest{
			Actor:   worker,
			Worker:  worker,
			Day:     first.AddDays(i),
			Project: project,
			Hours:   decimal.RequireFromString(h),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// submit submits period against reference totals given per day from Start.
func (s *seeder) submit(ctx context.Context, worker costing.WorkerID, period calendar.Period, ref ...string) error {
	reference := make(timesheet.ReferenceTotals)
	for i, v := range ref {
		reference[period.Start.AddDays(i)] = decimal.RequireFromString(v)
	}
	_, err := s.svc.Submit(ctx, timesheet.SubmitRequest{
		Actor:     worker,
		Worker:    worker,
		Period:    period,
		Reference: reference,
	})
	return err
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadWeeklySubmissionScenario(ctx context.Context, s *seeder) error {
	if err := s.svc.ChangeSetting(ctx, s.actor, timesheet.KeyOverheadPercent, "10"); err != nil {
		return err
	}
	website, err := s.project(ctx, "Website Redesign")
	if err != nil {
		return err
	}
	alice, err := s.user(ctx, "alice")
	if err != nil {
		return err
	}
	bob, err := s.user(ctx, "bob")
	if err != nil {
		return err
	}
	carol, err := s.user(ctx, "carol")
	if err != nil {
		return err
	}
	if _, err := s.user(ctx, "andy", timesheet.RoleAccounting); err != nil {
		return err
	}

	since := s.monday.AddDays(-60)
	if err := s.rate(ctx, alice, since, "20"); err != nil {
		return err
	}
	if err := s.rate(ctx, bob, since, "25"); err != nil {
		return err
	}

	// Alice: project work plus a company task, Monday off by 3 minutes.
	if err := s.week5(ctx, alice, s.monday, &website, "6.05", "6", "6", "6", "6"); err != nil {
		return err
	}
	if err := s.week5(ctx, alice, s.monday, nil, "2", "2", "2", "2", "2"); err != nil {
		return err
	}
	if err := s.submit(ctx, alice, s.week(), "8", "8", "8", "8", "8"); err != nil {
		return err
	}

	// Bob: open week, costed live.
	if err := s.week5(ctx, bob, s.monday, &website, "7.5", "8", "8", "7.5", "4"); err != nil {
		return err
	}

	// Carol: submitted with no wage rate on file.
	if err := s.week5(ctx, carol, s.monday, nil, "8", "8", "8", "8", "8"); err != nil {
		return err
	}
	return s.submit(ctx, carol, s.week())
}

func loadRateChangeScenario(ctx context.Context, s *seeder) error {
	if err := s.svc.ChangeSetting(ctx, s.actor, timesheet.KeyOverheadPercent, "15"); err != nil {
		return err
	}
	migration, err := s.project(ctx, "Data Migration")
	if err != nil {
		return err
	}
	alice, err := s.user(ctx, "alice")
	if err != nil {
		return err
	}
	if _, err := s.user(ctx, "andy", timesheet.RoleAccounting); err != nil {
		return err
	}

	since := s.monday.AddDays(-60)
	if err := s.rate(ctx, alice, since, "20"); err != nil {
		return err
	}

	// The week before last stays open; last week is submitted at 20/h.
	earlier := s.monday.AddDays(-7)
	if err := s.week5(ctx, alice, earlier, &migration, "8", "8", "8", "8", "8"); err != nil {
		return err
	}
	if err := s.week5(ctx, alice, s.monday, &migration, "8", "8", "8", "8", "8"); err != nil {
		return err
	}
	if err := s.submit(ctx, alice, s.week(), "8", "8", "8", "8", "8"); err != nil {
		return err
	}

	// Raise recorded afterwards, effective on the same day as the old rate.
	if err := s.rate(ctx, alice, since, "30"); err != nil {
		return err
	}
	return s.svc.ChangeSetting(ctx, s.actor, timesheet.KeyOverheadPercent, "20")
}

func loadProjectManagersScenario(ctx context.Context, s *seeder) error {
	website, err := s.project(ctx, "Website Redesign")
	if err != nil {
		return err
	}
	migration, err := s.project(ctx, "Data Migration")
	if err != nil {
		return err
	}
	pat, err := s.user(ctx, "pat", timesheet.RoleProjectManager)
	if err != nil {
		return err
	}
	if _, err := s.user(ctx, "quinn", timesheet.RoleProjectManager); err != nil {
		return err
	}
	alice, err := s.user(ctx, "alice")
	if err != nil {
		return err
	}
	bob, err := s.user(ctx, "bob")
	if err != nil {
		return err
	}
	if err := s.svc.AssignManager(ctx, s.actor, pat, website); err != nil {
		return err
	}

	since := s.monday.AddDays(-60)
	for _, w := range []costing.WorkerID{alice, bob} {
		if err := s.rate(ctx, w, since, "22.5"); err != nil {
			return err
		}
	}
	if err := s.week5(ctx, alice, s.monday, &website, "5", "5", "5", "5", "5"); err != nil {
		return err
	}
	if err := s.week5(ctx, alice, s.monday, nil, "3", "3", "3", "3", "3"); err != nil {
		return err
	}
	return s.week5(ctx, bob, s.monday, &migration, "8", "8", "8", "8", "8")
}
