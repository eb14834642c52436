package booking

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sitevisit/backend/internal/models"
)

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID        uuid.UUID
	Role      models.UserRole
	IPAddress string
	RequestID string
}

func ActorFromUser(user *models.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.UserRoleAdmin
}

func RequireAdmin(actor Actor) error {
	if !actor.IsAdmin() {
		return Forbidden("admin access required")
	}
	return nil
}

// CanViewAppointment allows the owner and administrators.
func CanViewAppointment(actor Actor, appt *models.Appointment) error {
	if actor.IsAdmin() || appt.UserID == actor.ID {
		return nil
	}
	return Forbidden("you cannot access this appointment")
}

// CanDeleteUser enforces that admins never delete themselves or other admins.
func CanDeleteUser(actor Actor, target *models.User) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if target.ID == actor.ID {
		return Forbidden("administrators cannot delete their own account")
	}
	if target.Role == models.UserRoleAdmin {
		return Forbidden("cannot delete other admin accounts")
	}
	return nil
}

// CanUpdateUser enforces the user-management rules for an update that may
// change the target's role. newRole is nil when the role is left unchanged.
func CanUpdateUser(actor Actor, target *models.User, newRole *models.UserRole) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if target.ID == actor.ID {
		if newRole != nil && *newRole != models.UserRoleAdmin {
			return Forbidden("administrators cannot demote their own account")
		}
		return nil
	}
	if target.Role == models.UserRoleAdmin {
		return Forbidden("cannot modify other admin accounts")
	}
	if newRole != nil && *newRole == models.UserRoleAdmin {
		return Forbidden("users cannot be promoted to admin")
	}
	return nil
}

// SelectionScope controls which projects an administrator sees when picking
// a project to book against.
type SelectionScope string

const (
	SelectionScopeAssigned SelectionScope = "assigned"
	SelectionScopeAll      SelectionScope = "all"
)

func ParseSelectionScope(value string) (SelectionScope, error) {
	switch SelectionScope(strings.ToLower(strings.TrimSpace(value))) {
	case "", SelectionScopeAssigned:
		return SelectionScopeAssigned, nil
	case SelectionScopeAll:
		return SelectionScopeAll, nil
	default:
		return "", fmt.Errorf("unknown admin project scope: %q", value)
	}
}

var selectableStatuses = map[models.UserRole][]models.ProjectStatus{
	models.UserRoleContractor:  {models.ProjectStatusOngoing},
	models.UserRoleLab:         {models.ProjectStatusOngoing},
	models.UserRoleOwner:       {models.ProjectStatusOngoing, models.ProjectStatusPlanned},
	models.UserRoleEngineering: {models.ProjectStatusOngoing, models.ProjectStatusPlanned},
	models.UserRoleAdmin:       nil,
}

// SelectableProjectStatuses returns the project statuses a role may book
// against. A nil slice means every status.
func SelectableProjectStatuses(role models.UserRole) []models.ProjectStatus {
	statuses, ok := selectableStatuses[role]
	if !ok {
		return []models.ProjectStatus{}
	}
	if statuses == nil {
		return nil
	}
	out := make([]models.ProjectStatus, len(statuses))
	copy(out, statuses)
	return out
}
