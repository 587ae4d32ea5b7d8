/*
report.go - Cost and hours reports

PURPOSE:
  Turns stored entries into report rows for one caller. Submitted rows show
  their frozen cost; open rows are costed live at the current rate and
  overhead. Totals add up the already-rounded row figures.

VISIBILITY:
  Capabilities decide which rows are returned and whether cost columns are
  populated at all.

SEE ALSO:
  - capabilities.go: Role → capability mapping
  - export.go: CSV and XLSX output
*/
package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/timecost/calendar"
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/timesheet"
)

// Filter narrows a report. Nil pointers do not filter.
type Filter struct {
	Period          calendar.Period
	Worker          *costing.WorkerID
	Project         *timesheet.ProjectID
	IncludeArchived bool
}

// Row is one entry as shown in a report.
type Row struct {
	Entry       timesheet.Entry
	WorkerName  string
	ProjectName string

	// Cost is zero unless the report shows costs.
	Cost costing.Cost
}

type Totals struct {
	Hours decimal.Decimal
	Labor decimal.Decimal
	Total decimal.Decimal
}

type Report struct {
	Period    calendar.Period
	ShowCosts bool
	Rows      []Row
	Totals    Totals

	// MissingRateRows counts rows costed without a wage rate.
	MissingRateRows int
}

// Source is the read side of the store a report needs.
type Source interface {
	QueryEntries(ctx context.Context, q timesheet.EntryQuery) ([]timesheet.Entry, error)
	ListUsers(ctx context.Context) ([]timesheet.User, error)
	ListProjects(ctx context.Context) ([]timesheet.Project, error)
}

// Builder assembles reports from a store and a costing engine.
type Builder struct {
	source Source
	engine *costing.Engine
}

func NewBuilder(source Source, engine *costing.Engine) *Builder {
	return &Builder{source: source, engine: engine}
}

// Build returns the rows visible under caps. overhead is the current burden
// percent used for rows that are not yet submitted.
func (b *Builder) Build(ctx context.Context, caps Capabilities, f Filter, overhead decimal.Decimal) (*Report, error) {
	if err := f.Period.Validate(); err != nil {
		return nil, err
	}

	q := timesheet.EntryQuery{Period: f.Period, Worker: f.Worker, Project: f.Project}
	if !caps.ViewAllEntries && !caps.ProjectScoped {
		self := caps.Self
		q.Worker = &self
	}
	entries, err := b.source.QueryEntries(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	users, projects, err := b.directory(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Period:    f.Period,
		ShowCosts: caps.ViewCosts,
		Totals:    Totals{Hours: decimal.Zero, Labor: decimal.Zero, Total: decimal.Zero},
	}
	engine := b.engine.Cached()

	for _, e := range entries {
		if !caps.CanSee(e) {
			continue
		}
		u := users[e.Worker]
		row := Row{Entry: e, WorkerName: u.Username, ProjectName: timesheet.CompanyTaskName}
		if row.WorkerName == "" {
			row.WorkerName = string(e.Worker)
		}
		archived := u.Archived
		if e.Project != nil {
			p := projects[*e.Project]
			row.ProjectName = p.Name
			archived = archived || p.Archived
		}
		if archived && !f.IncludeArchived {
			continue
		}

		if caps.ViewCosts {
			cost, err := engine.CostForDisplay(ctx, e, overhead)
			if err != nil {
				return nil, err
			}
			row.Cost = cost
			rep.Totals.Labor = rep.Totals.Labor.Add(cost.Labor)
			rep.Totals.Total = rep.Totals.Total.Add(cost.Total)
			if cost.RateMissing {
				rep.MissingRateRows++
			}
		}
		rep.Totals.Hours = rep.Totals.Hours.Add(e.Hours)
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

func (b *Builder) directory(ctx context.Context) (map[costing.WorkerID]timesheet.User, map[timesheet.ProjectID]timesheet.Project, error) {
	userList, err := b.source.ListUsers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load users: %w", err)
	}
	projectList, err := b.source.ListProjects(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load projects: %w", err)
	}
	users := make(map[costing.WorkerID]timesheet.User, len(userList))
	for _, u := range userList {
		users[u.ID] = u
	}
	projects := make(map[timesheet.ProjectID]timesheet.Project, len(projectList))
	for _, p := range projectList {
		projects[p.ID] = p
	}
	return users, projects, nil
}
