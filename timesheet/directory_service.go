package timesheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/timecost/costing"
)

// =============================================================================
// USERS
// =============================================================================

// NewUser describes an account to create. PasswordHash is already hashed.
type NewUser struct {
	Email        string
	Username     string
	PasswordHash string
	Roles        []Role
}

// CreateUser adds an account with a unique email and username. Users always
// hold the worker role.
func (s *Service) CreateUser(ctx context.Context, actor costing.WorkerID, nu NewUser) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	username := strings.TrimSpace(nu.Username)
	if email == "" || !strings.Contains(email, "@") {
		return nil, invalid("email", ErrInvalidInput)
	}
	if username == "" {
		return nil, invalid("username", ErrInvalidInput)
	}
	roles, err := normalizeRoles(nu.Roles)
	if err != nil {
		return nil, err
	}

	u := User{
		ID:           costing.WorkerID(s.newID()),
		Email:        email,
		Username:     username,
		PasswordHash: nu.PasswordHash,
		Roles:        roles,
		CreatedAt:    s.now(),
	}
	err = s.store.WithTx(ctx, func(tx Store) error {
		if existing, err := tx.GetUserByEmail(ctx, email); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("%w: email %s", ErrDuplicate, email)
		}
		if existing, err := tx.GetUserByUsername(ctx, username); err != nil {
			return err
		} else if existing != nil {
			return fmt.Errorf("%w: username %s", ErrDuplicate, username)
		}
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "user", string(u.ID), AuditCreated, map[string]any{
			"email":    u.Email,
			"username": u.Username,
		}))
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SetRoles replaces a user's roles.
func (s *Service) SetRoles(ctx context.Context, actor, id costing.WorkerID, roles []Role) (*User, error) {
	normalized, err := normalizeRoles(roles)
	if err != nil {
		return nil, err
	}
	return s.updateUser(ctx, actor, id, AuditUpdated, func(u *User) {
		u.Roles = normalized
	}, map[string]any{"roles": normalized})
}

// SetUserArchived archives or restores a user. Archived users cannot sign in
// and are hidden from reports unless archived rows are requested.
func (s *Service) SetUserArchived(ctx context.Context, actor, id costing.WorkerID, archived bool) (*User, error) {
	action := AuditArchived
	if !archived {
		action = AuditUnarchived
	}
	return s.updateUser(ctx, actor, id, action, func(u *User) {
		u.Archived = archived
	}, nil)
}

// SetPasswordHash replaces a user's password hash.
func (s *Service) SetPasswordHash(ctx context.Context, actor, id costing.WorkerID, hash string) error {
	_, err := s.updateUser(ctx, actor, id, AuditUpdated, func(u *User) {
		u.PasswordHash = hash
	}, map[string]any{"password": "changed"})
	return err
}

func (s *Service) updateUser(ctx context.Context, actor, id costing.WorkerID, action AuditAction, mutate func(*User), details map[string]any) (*User, error) {
	var updated User
	err := s.store.WithTx(ctx, func(tx Store) error {
		u, err := tx.GetUser(ctx, id)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: %s", ErrUserNotFound, id)
		}
		mutate(u)
		if err := tx.SaveUser(ctx, *u); err != nil {
			return err
		}
		updated = *u
		return tx.AppendAudit(ctx, s.audit(actor, "user", string(id), action, details))
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func normalizeRoles(roles []Role) ([]Role, error) {
	seen := map[Role]bool{RoleWorker: true}
	out := []Role{RoleWorker}
	for _, r := range roles {
		r = Role(strings.ToLower(strings.TrimSpace(string(r))))
		if !ValidRole(r) {
			return nil, invalid("roles", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, r))
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// PROJECTS
// =============================================================================

// CreateProject adds a project with a unique, non-empty name.
func (s *Service) CreateProject(ctx context.Context, actor costing.WorkerID, name string) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", ErrInvalidInput)
	}
	p := Project{ID: ProjectID(s.newID()), Name: name, CreatedAt: s.now()}
	err := s.store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.GetProjectByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: project %s", ErrDuplicate, name)
		}
		if err := tx.SaveProject(ctx, p); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "project", string(p.ID), AuditCreated, map[string]any{"name": name}))
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetProjectArchived archives or restores a project.
func (s *Service) SetProjectArchived(ctx context.Context, actor costing.WorkerID, id ProjectID, archived bool) (*Project, error) {
	action := AuditArchived
	if !archived {
		action = AuditUnarchived
	}
	var updated Project
	err := s.store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		p.Archived = archived
		if err := tx.SaveProject(ctx, *p); err != nil {
			return err
		}
		updated = *p
		return tx.AppendAudit(ctx, s.audit(actor, "project", string(id), action, nil))
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteProject removes a project that has no time entries.
func (s *Service) DeleteProject(ctx context.Context, actor costing.WorkerID, id ProjectID) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		p, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
		}
		used, err := tx.ProjectHasEntries(ctx, id)
		if err != nil {
			return err
		}
		if used {
			return fmt.Errorf("%w: %s", ErrProjectInUse, p.Name)
		}
		if err := tx.DeleteProject(ctx, id); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "project", string(id), AuditDeleted, map[string]any{"name": p.Name}))
	})
}

// AssignManager gives a project manager visibility of a project.
func (s *Service) AssignManager(ctx context.Context, actor, manager costing.WorkerID, project ProjectID) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		u, err := tx.GetUser(ctx, manager)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("%w: %s", ErrUserNotFound, manager)
		}
		if !u.HasRole(RoleProjectManager) {
			return invalid("manager", fmt.Errorf("%w: %s is not a project manager", ErrInvalidInput, u.Username))
		}
		p, err := tx.GetProject(ctx, project)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, project)
		}
		if err := tx.AssignManager(ctx, manager, project); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "pm_project", string(manager)+":"+string(project), AuditCreated, nil))
	})
}

// UnassignManager removes a manager's visibility of a project.
func (s *Service) UnassignManager(ctx context.Context, actor, manager costing.WorkerID, project ProjectID) error {
	return s.store.WithTx(ctx, func(tx Store) error {
		if err := tx.UnassignManager(ctx, manager, project); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, s.audit(actor, "pm_project", string(manager)+":"+string(project), AuditDeleted, nil))
	})
}
