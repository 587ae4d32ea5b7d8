/*
handlers.go - HTTP API handlers for the timesheet costing service

PURPOSE:
  Exposes timesheets, submission, reports and administration over REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  timesheet.Service, report.Builder and auth.

ENDPOINTS:
  Auth:
    POST   /api/auth/login                 Username or email + password
    POST   /api/auth/register              Self-registration (domain-restricted)
    POST   /api/auth/logout                Clear the session cookie
    GET    /api/me                         Caller and capabilities

  Timesheet (own entries):
    GET    /api/timesheet                  Entries in ?start&end (default: last 14 days)
    PUT    /api/timesheet/entries          Autosave one (day, project) slot
    DELETE /api/timesheet/entries/{id}     Remove an open entry
    POST   /api/timesheet/submit           Reconcile and lock a period
    POST   /api/timesheet/reference        Parse an attendance CSV into daily totals

  Projects:
    GET    /api/projects                   List projects
    POST   /api/projects                   Create (admin)
    POST   /api/projects/{id}/archive      Archive (admin)
    POST   /api/projects/{id}/unarchive    Restore (admin)
    DELETE /api/projects/{id}              Delete an unused project (admin)

  Reports:
    GET    /api/reports                    Rows and totals under the caller's capabilities
    GET    /api/reports/export.csv         Same rows as CSV
    GET    /api/reports/export.xlsx        Same rows as a spreadsheet

  Admin:
    GET    /api/admin/users                List users
    POST   /api/admin/users                Create a user
    PUT    /api/admin/users/{id}/roles     Replace roles
    POST   /api/admin/users/{id}/archive   Archive / unarchive
    GET    /api/admin/users/{id}/rates     Wage rate history
    POST   /api/admin/users/{id}/rates     Set a rate effective on a day
    PUT    /api/admin/users/{id}/projects/{projectID}   Assign a project manager
    DELETE /api/admin/users/{id}/projects/{projectID}   Unassign
    GET    /api/admin/settings             Effective settings
    PUT    /api/admin/settings/{key}       Change a setting
    POST   /api/admin/unsubmit             Reopen entries
    GET    /api/admin/audit                Change log

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Missing or expired session
  - 403: Capability missing
  - 404: Resource not found
  - 409: Locked entry, duplicate, project in use
  - 422: Submission rejected by reconciliation (per-day mismatches)
  - 500: Internal errors (logged, details withheld)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/timecost/auth"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/logger"
	"github.com/warp/timecost/report"
	"github.com/warp/timecost/timesheet"
)

// DefaultListDays is the window listed when no period is given.
const DefaultListDays = 14

// maxUploadBytes caps reference CSV uploads.
const maxUploadBytes = 5 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *timesheet.Service
	Issuer  *auth.Issuer
	Reports *report.Builder

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a handler over the service's store.
func NewHandler(svc *timesheet.Service, issuer *auth.Issuer) *Handler {
	return &Handler{
		Service: svc,
		Issuer:  issuer,
		Reports: report.NewBuilder(svc.Store(), svc.Engine()),
	}
}

// Health answers liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login checks credentials and starts a session.
// POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()
	store := h.Service.Store()

	login := strings.TrimSpace(req.Login)
	var (
		u   *timesheet.User
		err error
	)
	if strings.Contains(login, "@") {
		u, err = store.GetUserByEmail(ctx, strings.ToLower(login))
	} else {
		u, err = store.GetUserByUsername(ctx, login)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if u == nil || u.Archived || !auth.CheckPassword(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	h.startSession(w, *u, http.StatusOK)
}

// Register creates a worker account for an allowed email domain.
// POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	domain, err := h.Service.Settings().AllowedEmailDomain(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if domain != "" && !strings.HasSuffix(email, "@"+strings.ToLower(domain)) {
		writeError(w, http.StatusForbidden, "Registration is limited to @"+domain+" addresses", nil)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid password", err)
		return
	}
	u, err := h.Service.CreateUser(ctx, "", timesheet.NewUser{
		Email:        email,
		Username:     req.Username,
		PasswordHash: hash,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	logger.Info("user registered", "user", u.ID, "username", u.Username)
	h.startSession(w, *u, http.StatusCreated)
}

// Logout clears the session cookie.
// POST /api/auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the caller and what they may do.
// GET /api/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, MeResponse{
		User:         toUserDTO(p.User),
		Capabilities: toCapabilitiesDTO(p.Caps),
	})
}

func (h *Handler) startSession(w http.ResponseWriter, u timesheet.User, status int) {
	token, err := h.Issuer.Issue(u)
	if err != nil {
		writeDomainError(w, fmt.Errorf("failed to issue token: %w", err))
		return
	}
	auth.SetTokenCookie(w, token, h.Issuer.TTL())
	writeJSON(w, status, LoginResponse{
		Token:     token,
		ExpiresAt: h.Issuer.ExpiresAt().Format(time.RFC3339),
		User:      toUserDTO(u),
	})
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// ListEntries returns entries for the caller, or for ?worker_id when the
// caller may view all entries.
// GET /api/timesheet
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	period, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	worker := p.ID()
	if id := r.URL.Query().Get("worker_id"); id != "" && costing.WorkerID(id) != worker {
		if !p.Caps.ViewAllEntries {
			writeError(w, http.StatusForbidden, "Cannot view other workers' entries", nil)
			return
		}
		worker = costing.WorkerID(id)
	}

	entries, err := h.Service.Entries(r.Context(), worker, period)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries, p.Caps.ViewCosts))
}

// SaveEntry creates or updates the caller's entry for a (day, project) slot.
// PUT /api/timesheet/entries
func (h *Handler) SaveEntry(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req SaveEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	day, err := calendar.ParseDay(req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid day", err)
		return
	}
	var project *timesheet.ProjectID
	if req.ProjectID != nil {
		project = timesheet.ProjectRef(*req.ProjectID)
	}

	e, err := h.Service.SaveEntry(r.Context(), timesheet.SaveEntryRequest{
		Actor:   p.ID(),
		Worker:  p.ID(),
		Day:     day,
		Project: project,
		Hours:   req.Hours,
		Note:    req.Note,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e, p.Caps.ViewCosts))
}

// DeleteEntry removes one of the caller's open entries.
// DELETE /api/timesheet/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	id := timesheet.EntryID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteEntry(r.Context(), p.ID(), p.ID(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit reconciles the caller's period against reference totals and locks it.
// POST /api/timesheet/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req SubmitRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	period, err := calendar.ParsePeriod(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	reference, err := referenceFromRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reference totals", err)
		return
	}

	result, err := h.Service.Submit(r.Context(), timesheet.SubmitRequest{
		Actor:     p.ID(),
		Worker:    p.ID(),
		Period:    period,
		Reference: reference,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := SubmitResponse{
		Locked:          toEntryDTOs(result.Locked, p.Caps.ViewCosts),
		AlreadyLocked:   result.AlreadyLocked,
		MissingRateDays: make([]string, len(result.MissingRateDays)),
		ToleranceHours:  result.Tolerance.InexactFloat64(),
	}
	for i, d := range result.MissingRateDays {
		resp.MissingRateDays[i] = d.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ImportReference parses an attendance export so the client can review the
// daily totals before submitting. Accepts a multipart "file" or a raw body.
// POST /api/timesheet/reference
func (h *Handler) ImportReference(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing file upload", err)
			return
		}
		defer file.Close()
		src = file
	}

	totals, err := timesheet.ParseReferenceCSV(src)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reference CSV", err)
		return
	}
	dto := ReferenceDTO{Totals: make(map[string]float64, len(totals))}
	for d, hours := range totals {
		dto.Totals[d.String()] = hours.InexactFloat64()
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PROJECT HANDLERS
// =============================================================================

// ListProjects returns projects. Archived projects are listed for admins only.
// GET /api/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	projects, err := h.Service.Store().ListProjects(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]ProjectDTO, 0, len(projects))
	for _, proj := range projects {
		if proj.Archived && !p.Caps.ManageWorkers {
			continue
		}
		dtos = append(dtos, toProjectDTO(proj))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProject adds a project.
// POST /api/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req CreateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	proj, err := h.Service.CreateProject(r.Context(), p.ID(), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProjectDTO(*proj))
}

// ArchiveProject hides a project from new entries.
// POST /api/projects/{id}/archive
func (h *Handler) ArchiveProject(w http.ResponseWriter, r *http.Request) {
	h.setProjectArchived(w, r, true)
}

// UnarchiveProject restores a project.
// POST /api/projects/{id}/unarchive
func (h *Handler) UnarchiveProject(w http.ResponseWriter, r *http.Request) {
	h.setProjectArchived(w, r, false)
}

func (h *Handler) setProjectArchived(w http.ResponseWriter, r *http.Request, archived bool) {
	p := auth.PrincipalFromContext(r.Context())
	id := timesheet.ProjectID(chi.URLParam(r, "id"))
	proj, err := h.Service.SetProjectArchived(r.Context(), p.ID(), id, archived)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProjectDTO(*proj))
}

// DeleteProject removes a project that has never been booked.
// DELETE /api/projects/{id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	id := timesheet.ProjectID(chi.URLParam(r, "id"))
	if err := h.Service.DeleteProject(r.Context(), p.ID(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// GetReport returns report rows and totals.
// GET /api/reports?start&end&worker_id&project_id&include_archived
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(rep))
}

// ExportReportCSV streams the report as CSV.
// GET /api/reports/export.csv
func (h *Handler) ExportReportCSV(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", attachment(rep, "csv"))
	if err := report.ExportCSV(w, rep); err != nil {
		logger.Error("csv export failed", "err", err)
	}
}

// ExportReportXLSX streams the report as a spreadsheet.
// GET /api/reports/export.xlsx
func (h *Handler) ExportReportXLSX(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(rep, "xlsx"))
	if err := report.ExportXLSX(w, rep); err != nil {
		logger.Error("xlsx export failed", "err", err)
	}
}

func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) (*report.Report, bool) {
	ctx := r.Context()
	p := auth.PrincipalFromContext(ctx)
	q := r.URL.Query()

	period, err := periodFromQuery(r)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	filter := report.Filter{Period: period}
	if id := q.Get("worker_id"); id != "" {
		worker := costing.WorkerID(id)
		filter.Worker = &worker
	}
	filter.Project = timesheet.ProjectRef(q.Get("project_id"))
	if v := q.Get("include_archived"); v != "" {
		filter.IncludeArchived, _ = strconv.ParseBool(v)
	}

	overhead, err := h.Service.Settings().OverheadPercent(ctx)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	rep, err := h.Reports.Build(ctx, p.Caps, filter, overhead)
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	return rep, true
}

func attachment(rep *report.Report, ext string) string {
	return fmt.Sprintf(`attachment; filename="timesheet-report-%s-%s.%s"`, rep.Period.Start, rep.Period.End, ext)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ListUsers returns every account.
// GET /api/admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.Store().ListUsers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser adds an account with a password and roles.
// POST /api/admin/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid password", err)
		return
	}
	u, err := h.Service.CreateUser(r.Context(), p.ID(), timesheet.NewUser{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Roles:        toRoles(req.Roles),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(*u))
}

// SetRoles replaces a user's roles.
// PUT /api/admin/users/{id}/roles
func (h *Handler) SetRoles(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req SetRolesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := costing.WorkerID(chi.URLParam(r, "id"))
	u, err := h.Service.SetRoles(r.Context(), p.ID(), id, toRoles(req.Roles))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// ArchiveUser archives or restores (?archived=false) a user.
// POST /api/admin/users/{id}/archive
func (h *Handler) ArchiveUser(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	id := costing.WorkerID(chi.URLParam(r, "id"))
	archived := true
	if v := r.URL.Query().Get("archived"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid archived flag", err)
			return
		}
		archived = parsed
	}
	if archived && id == p.ID() {
		writeError(w, http.StatusBadRequest, "Cannot archive yourself", nil)
		return
	}
	u, err := h.Service.SetUserArchived(r.Context(), p.ID(), id, archived)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// ListRates returns a worker's rate history, oldest first.
// GET /api/admin/users/{id}/rates
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	id := costing.WorkerID(chi.URLParam(r, "id"))
	history, err := h.Service.Rates(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]RateDTO, len(history))
	for i, rate := range history {
		dtos[i] = RateDTO{EffectiveDate: rate.EffectiveDate.String(), HourlyRate: rate.HourlyRate.InexactFloat64()}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SetRate adds or replaces the rate effective on a day.
// POST /api/admin/users/{id}/rates
func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req SetRateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	effective, err := calendar.ParseDay(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective date", err)
		return
	}
	id := costing.WorkerID(chi.URLParam(r, "id"))
	rate := costing.Rate{EffectiveDate: effective, HourlyRate: req.HourlyRate}
	if err := h.Service.SetRate(r.Context(), p.ID(), id, rate); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RateDTO{EffectiveDate: effective.String(), HourlyRate: req.HourlyRate.InexactFloat64()})
}

// AssignManager gives a project manager visibility of a project.
// PUT /api/admin/users/{id}/projects/{projectID}
func (h *Handler) AssignManager(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	manager := costing.WorkerID(chi.URLParam(r, "id"))
	project := timesheet.ProjectID(chi.URLParam(r, "projectID"))
	if err := h.Service.AssignManager(r.Context(), p.ID(), manager, project); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnassignManager removes a manager's project.
// DELETE /api/admin/users/{id}/projects/{projectID}
func (h *Handler) UnassignManager(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	manager := costing.WorkerID(chi.URLParam(r, "id"))
	project := timesheet.ProjectID(chi.URLParam(r, "projectID"))
	if err := h.Service.UnassignManager(r.Context(), p.ID(), manager, project); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings returns the effective value of every setting.
// GET /api/admin/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.Service.Settings().Snapshot(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// UpdateSetting validates and stores one setting.
// PUT /api/admin/settings/{key}
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req SettingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key := chi.URLParam(r, "key")
	if err := h.Service.ChangeSetting(r.Context(), p.ID(), key, req.Value); err != nil {
		writeDomainError(w, err)
		return
	}
	h.GetSettings(w, r)
}

// Unsubmit reopens entries by id, or a worker's period.
// POST /api/admin/unsubmit
func (h *Handler) Unsubmit(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	var req UnsubmitRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	sreq := timesheet.UnsubmitRequest{Actor: p.ID()}
	if len(req.EntryIDs) > 0 {
		for _, id := range req.EntryIDs {
			sreq.EntryIDs = append(sreq.EntryIDs, timesheet.EntryID(id))
		}
	} else {
		period, err := calendar.ParsePeriod(req.Start, req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		sreq.Worker = costing.WorkerID(req.WorkerID)
		sreq.Period = period
	}

	result, err := h.Service.Unsubmit(r.Context(), sreq)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnsubmitResponse{
		Reopened:    toEntryDTOs(result.Reopened, p.Caps.ViewCosts),
		AlreadyOpen: result.AlreadyOpen,
	})
}

// ListAudit returns change-log rows, newest first.
// GET /api/admin/audit?table&record_id&limit
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := timesheet.AuditFilter{
		Table:    q.Get("table"),
		RecordID: q.Get("record_id"),
		Limit:    100,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}
	rows, err := h.Service.Store().QueryAudit(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	dtos := make([]AuditDTO, len(rows))
	for i, a := range rows {
		dtos[i] = toAuditDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func periodFromQuery(r *http.Request) (calendar.Period, error) {
	q := r.URL.Query()
	start, end := q.Get("start"), q.Get("end")
	if start == "" && end == "" {
		return calendar.LastNDays(calendar.Today(), DefaultListDays), nil
	}
	return calendar.ParsePeriod(start, end)
}

// referenceFromRequest merges the JSON map with the inline text form. Map
// values win for days present in both.
func referenceFromRequest(req SubmitRequestDTO) (timesheet.ReferenceTotals, error) {
	if len(req.Reference) == 0 && req.ReferenceText == "" {
		return nil, nil
	}
	totals := timesheet.ParseReferenceText(req.ReferenceText)
	for k, v := range req.Reference {
		d, err := calendar.ParseDay(k)
		if err != nil {
			return nil, err
		}
		totals[d] = v
	}
	return totals, nil
}

func toRoles(names []string) []timesheet.Role {
	roles := make([]timesheet.Role, len(names))
	for i, n := range names {
		roles[i] = timesheet.Role(n)
	}
	return roles
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return false
	}
	return true
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var rec *timesheet.ReconciliationError
	switch {
	case errors.As(err, &rec):
		writeJSON(w, http.StatusUnprocessableEntity, toReconciliationResponse(rec))
	case errors.Is(err, timesheet.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case timesheet.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case timesheet.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case timesheet.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error", nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
