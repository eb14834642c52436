package services

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/models"
)

type AccessService struct {
	DB         *gorm.DB
	AdminScope booking.SelectionScope
}

func NewAccessService(db *gorm.DB, adminScope booking.SelectionScope) *AccessService {
	if adminScope == "" {
		adminScope = booking.SelectionScopeAssigned
	}
	return &AccessService{DB: db, AdminScope: adminScope}
}

// IsAssigned reports whether the user is linked to the project.
func (a *AccessService) IsAssigned(ctx context.Context, userID, projectID uuid.UUID) bool {
	var count int64
	err := a.DB.WithContext(ctx).
		Table("project_assignments").
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error
	return err == nil && count > 0
}

// ProjectsForSelection lists the projects a user may book a visit against,
// ordered by name.
func (a *AccessService) ProjectsForSelection(ctx context.Context, user *models.User) ([]models.Project, error) {
	projects := []models.Project{}

	statuses := booking.SelectableProjectStatuses(user.Role)
	if statuses != nil && len(statuses) == 0 {
		return projects, nil
	}

	q := a.DB.WithContext(ctx).Model(&models.Project{})
	if !(user.IsAdmin() && a.AdminScope == booking.SelectionScopeAll) {
		q = q.Joins("JOIN project_assignments ON project_assignments.project_id = projects.id AND project_assignments.user_id = ?", user.ID)
	}
	if len(statuses) > 0 {
		q = q.Where("projects.status IN ?", statuses)
	}

	if err := q.Order("projects.name ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}
