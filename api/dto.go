/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

NUMBERS:
  Requests take hours, rates and percents as decimal.Decimal, which accepts
  JSON numbers and quoted strings. Responses carry float64 values already
  rounded by the domain.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/report"
	"github.com/warp/timecost/timesheet"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ReconciliationResponse is returned with 422 when a submission is rejected.
type ReconciliationResponse struct {
	Error      string        `json:"error"`
	Details    string        `json:"details"`
	Mismatches []MismatchDTO `json:"mismatches"`
}

type MismatchDTO struct {
	Day        string  `json:"day"`
	Entered    float64 `json:"entered_hours"`
	Reference  float64 `json:"reference_hours"`
	Difference float64 `json:"difference_hours"`
	Tolerance  float64 `json:"tolerance_hours"`
}

// =============================================================================
// AUTH AND USERS
// =============================================================================

type LoginRequest struct {
	// Login is a username or an email address.
	Login    string `json:"login"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      UserDTO `json:"user"`
}

type UserDTO struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	Archived  bool     `json:"archived"`
	CreatedAt string   `json:"created_at,omitempty"`
}

type CapabilitiesDTO struct {
	ViewCosts       bool     `json:"view_costs"`
	ViewAllEntries  bool     `json:"view_all_entries"`
	ManageWorkers   bool     `json:"manage_workers"`
	Unsubmit        bool     `json:"unsubmit"`
	ProjectScoped   bool     `json:"project_scoped"`
	ManagedProjects []string `json:"managed_projects,omitempty"`
}

type MeResponse struct {
	User         UserDTO         `json:"user"`
	Capabilities CapabilitiesDTO `json:"capabilities"`
}

type CreateUserRequest struct {
	Email    string   `json:"email"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Roles    []string `json:"roles"`
}

type SetRolesRequest struct {
	Roles []string `json:"roles"`
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	ID          string   `json:"id"`
	WorkerID    string   `json:"worker_id"`
	ProjectID   *string  `json:"project_id"`
	Day         string   `json:"day"`
	Hours       float64  `json:"hours"`
	Note        string   `json:"note"`
	Status      string   `json:"status"`
	SubmittedAt *string  `json:"submitted_at,omitempty"`
	Cost        *CostDTO `json:"cost,omitempty"`
	UpdatedAt   string   `json:"updated_at"`
}

type CostDTO struct {
	Rate            float64 `json:"rate"`
	OverheadPercent float64 `json:"overhead_percent"`
	LaborCost       float64 `json:"labor_cost"`
	TotalCost       float64 `json:"total_cost"`
	RateMissing     bool    `json:"rate_missing,omitempty"`
}

type SaveEntryRequest struct {
	Day       string          `json:"day"`
	ProjectID *string         `json:"project_id"`
	Hours     decimal.Decimal `json:"hours"`
	Note      string          `json:"note"`
}

type SubmitRequestDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	// Reference maps "YYYY-MM-DD" to reference hours.
	Reference map[string]decimal.Decimal `json:"reference"`
	// ReferenceText is the inline "YYYY-MM-DD:hours,..." form.
	ReferenceText string `json:"reference_text,omitempty"`
}

type SubmitResponse struct {
	Locked          []EntryDTO `json:"locked"`
	AlreadyLocked   int        `json:"already_locked"`
	MissingRateDays []string   `json:"missing_rate_days"`
	ToleranceHours  float64    `json:"tolerance_hours"`
}

type ReferenceDTO struct {
	Totals map[string]float64 `json:"totals"`
}

type UnsubmitRequestDTO struct {
	EntryIDs []string `json:"entry_ids"`
	WorkerID string   `json:"worker_id"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
}

type UnsubmitResponse struct {
	Reopened    []EntryDTO `json:"reopened"`
	AlreadyOpen int        `json:"already_open"`
}

// =============================================================================
// ADMIN
// =============================================================================

type RateDTO struct {
	EffectiveDate string  `json:"effective_date"`
	HourlyRate    float64 `json:"hourly_rate"`
}

type SetRateRequest struct {
	EffectiveDate string          `json:"effective_date"`
	HourlyRate    decimal.Decimal `json:"hourly_rate"`
}

type AuditDTO struct {
	ID       string         `json:"id"`
	At       string         `json:"at"`
	Actor    string         `json:"actor,omitempty"`
	Table    string         `json:"table"`
	RecordID string         `json:"record_id"`
	Action   string         `json:"action"`
	Details  map[string]any `json:"details,omitempty"`
}

type SettingRequest struct {
	Value string `json:"value"`
}

type ProjectDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Archived  bool   `json:"archived"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// REPORTS
// =============================================================================

type ReportRowDTO struct {
	EntryID   string   `json:"entry_id"`
	Day       string   `json:"day"`
	WorkerID  string   `json:"worker_id"`
	Employee  string   `json:"employee"`
	Project   string   `json:"project"`
	Hours     float64  `json:"hours"`
	Submitted bool     `json:"submitted"`
	Cost      *CostDTO `json:"cost,omitempty"`
}

type ReportDTO struct {
	Start           string         `json:"start"`
	End             string         `json:"end"`
	ShowCosts       bool           `json:"show_costs"`
	Rows            []ReportRowDTO `json:"rows"`
	TotalHours      float64        `json:"total_hours"`
	TotalLabor      *float64       `json:"total_labor_cost,omitempty"`
	TotalCost       *float64       `json:"total_cost,omitempty"`
	MissingRateRows int            `json:"missing_rate_rows"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest represents a request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u timesheet.User) UserDTO {
	roles := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = string(r)
	}
	dto := UserDTO{ID: string(u.ID), Email: u.Email, Username: u.Username, Roles: roles, Archived: u.Archived}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toCapabilitiesDTO(c report.Capabilities) CapabilitiesDTO {
	dto := CapabilitiesDTO{
		ViewCosts:      c.ViewCosts,
		ViewAllEntries: c.ViewAllEntries,
		ManageWorkers:  c.ManageWorkers,
		Unsubmit:       c.Unsubmit,
		ProjectScoped:  c.ProjectScoped,
	}
	for p := range c.ManagedProjects {
		dto.ManagedProjects = append(dto.ManagedProjects, string(p))
	}
	return dto
}

func toCostDTO(c costing.Cost) *CostDTO {
	return &CostDTO{
		Rate:            c.Rate.InexactFloat64(),
		OverheadPercent: c.OverheadPercent.InexactFloat64(),
		LaborCost:       c.Labor.InexactFloat64(),
		TotalCost:       c.Total.InexactFloat64(),
		RateMissing:     c.RateMissing,
	}
}

// toEntryDTO shows the frozen cost of submitted entries to cost viewers.
func toEntryDTO(e timesheet.Entry, showCosts bool) EntryDTO {
	dto := EntryDTO{
		ID:        string(e.ID),
		WorkerID:  string(e.Worker),
		Day:       e.Day.String(),
		Hours:     e.Hours.InexactFloat64(),
		Note:      e.Note,
		Status:    string(e.Status()),
		UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
	}
	if e.Project != nil {
		p := string(*e.Project)
		dto.ProjectID = &p
	}
	if e.Submission != nil {
		at := e.Submission.At.Format(time.RFC3339)
		dto.SubmittedAt = &at
		if showCosts {
			dto.Cost = toCostDTO(e.Submission.Cost)
		}
	}
	return dto
}

func toEntryDTOs(entries []timesheet.Entry, showCosts bool) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e, showCosts)
	}
	return dtos
}

func toProjectDTO(p timesheet.Project) ProjectDTO {
	dto := ProjectDTO{ID: string(p.ID), Name: p.Name, Archived: p.Archived}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toAuditDTO(a timesheet.AuditEntry) AuditDTO {
	return AuditDTO{
		ID:       a.ID,
		At:       a.At.Format(time.RFC3339),
		Actor:    string(a.Actor),
		Table:    a.Table,
		RecordID: a.RecordID,
		Action:   string(a.Action),
		Details:  a.Details,
	}
}

func toReconciliationResponse(e *timesheet.ReconciliationError) ReconciliationResponse {
	resp := ReconciliationResponse{
		Error:      "Submission rejected",
		Details:    e.Error(),
		Mismatches: make([]MismatchDTO, len(e.Mismatches)),
	}
	for i, m := range e.Mismatches {
		resp.Mismatches[i] = MismatchDTO{
			Day:        m.Day.String(),
			Entered:    m.Entered.InexactFloat64(),
			Reference:  m.Reference.InexactFloat64(),
			Difference: m.Difference.InexactFloat64(),
			Tolerance:  m.Tolerance.InexactFloat64(),
		}
	}
	return resp
}

func toReportDTO(rep *report.Report) ReportDTO {
	dto := ReportDTO{
		Start:           rep.Period.Start.String(),
		End:             rep.Period.End.String(),
		ShowCosts:       rep.ShowCosts,
		Rows:            make([]ReportRowDTO, len(rep.Rows)),
		TotalHours:      rep.Totals.Hours.InexactFloat64(),
		MissingRateRows: rep.MissingRateRows,
	}
	for i, row := range rep.Rows {
		r := ReportRowDTO{
			EntryID:   string(row.Entry.ID),
			Day:       row.Entry.Day.String(),
			WorkerID:  string(row.Entry.Worker),
			Employee:  row.WorkerName,
			Project:   row.ProjectName,
			Hours:     row.Entry.Hours.InexactFloat64(),
			Submitted: row.Entry.IsLocked(),
		}
		if rep.ShowCosts {
			r.Cost = toCostDTO(row.Cost)
		}
		dto.Rows[i] = r
	}
	if rep.ShowCosts {
		labor := rep.Totals.Labor.InexactFloat64()
		total := rep.Totals.Total.InexactFloat64()
		dto.TotalLabor = &labor
		dto.TotalCost = &total
	}
	return dto
}
