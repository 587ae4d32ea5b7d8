package timesheet

import (
	"time"

	"github.com/warp/timecost/costing"
)

// =============================================================================
// ROLES
// =============================================================================

// Role is one of the four access roles. A user may hold several.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleAccounting     Role = "accounting"
	RoleProjectManager Role = "project_manager"
	RoleWorker         Role = "worker"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleAccounting, RoleProjectManager, RoleWorker:
		return true
	}
	return false
}

// =============================================================================
// USERS AND PROJECTS
// =============================================================================

// User is an account. Every user is a worker who can log hours.
type User struct {
	ID           costing.WorkerID
	Email        string
	Username     string
	PasswordHash string
	Roles        []Role
	Archived     bool
	CreatedAt    time.Time
}

// HasRole reports whether the user holds role.
func (u User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Project is a cost target hours can be booked against.
type Project struct {
	ID        ProjectID
	Name      string
	Archived  bool
	CreatedAt time.Time
}

// CompanyTaskName is shown for entries without a project.
const CompanyTaskName = "Company Task"
