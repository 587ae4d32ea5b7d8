package report

import (
	"github.com/warp/timecost/costing"
	"github.com/warp/timecost/timesheet"
)

// Capabilities is what one request may see and do, derived once from the
// caller's roles.
type Capabilities struct {
	Self costing.WorkerID

	ViewCosts      bool
	ViewAllEntries bool
	ManageWorkers  bool
	Unsubmit       bool

	// ProjectScoped limits visibility to ManagedProjects plus company tasks.
	ProjectScoped   bool
	ManagedProjects map[timesheet.ProjectID]bool
}

// CapabilitiesFor evaluates a user's roles. managed is only consulted for
// project managers without a broader role.
func CapabilitiesFor(u timesheet.User, managed []timesheet.ProjectID) Capabilities {
	isAdmin := u.HasRole(timesheet.RoleAdmin)
	isAccounting := u.HasRole(timesheet.RoleAccounting)

	c := Capabilities{
		Self:           u.ID,
		ViewCosts:      isAdmin || isAccounting,
		ViewAllEntries: isAdmin || isAccounting,
		ManageWorkers:  isAdmin,
		Unsubmit:       isAdmin,
	}
	if !c.ViewAllEntries && u.HasRole(timesheet.RoleProjectManager) {
		c.ProjectScoped = true
		c.ManagedProjects = make(map[timesheet.ProjectID]bool, len(managed))
		for _, p := range managed {
			c.ManagedProjects[p] = true
		}
	}
	return c
}

// CanSee reports whether an entry is visible under these capabilities.
func (c Capabilities) CanSee(e timesheet.Entry) bool {
	switch {
	case c.ViewAllEntries:
		return true
	case c.ProjectScoped:
		if len(c.ManagedProjects) == 0 {
			return false
		}
		return e.Project == nil || c.ManagedProjects[*e.Project]
	default:
		return e.Worker == c.Self
	}
}
