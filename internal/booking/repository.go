package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitevisit/backend/internal/models"
)

// StatusFilter narrows appointment listings. The zero value matches all.
type StatusFilter struct {
	Status *models.AppointmentStatus
}

func (f StatusFilter) All() bool {
	return f.Status == nil
}

// ParseStatusFilter accepts "", "all" or any appointment status in any case.
func ParseStatusFilter(value string) (StatusFilter, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.EqualFold(trimmed, "all") {
		return StatusFilter{}, nil
	}
	status, err := models.ParseAppointmentStatus(trimmed)
	if err != nil {
		return StatusFilter{}, InvalidFilter(value)
	}
	return StatusFilter{Status: &status}, nil
}

// Repository is the persistence contract the booking core depends on.
// Implementations return *Error values from this package.
type Repository interface {
	// CheckAssignment fails with ErrProjectNotFound or ErrUserNotAssigned.
	CheckAssignment(ctx context.Context, userID, projectID uuid.UUID) error
	// Create stores the appointment and its files atomically.
	Create(ctx context.Context, draft *models.Appointment, files []models.AppointmentFile) (*models.Appointment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	// FindByUser and FindAll order by proposed date/time ascending.
	FindByUser(ctx context.Context, userID uuid.UUID, filter StatusFilter) ([]models.Appointment, error)
	FindAll(ctx context.Context, filter StatusFilter) ([]models.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.AppointmentStatus) (*models.Appointment, error)
	// UpdatePostponement sets POSTPONED and the new instant together.
	UpdatePostponement(ctx context.Context, id uuid.UUID, at time.Time) (*models.Appointment, error)
}
