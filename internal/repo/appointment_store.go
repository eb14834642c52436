package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/models"
)

const appointmentOrder = "proposed_date_time ASC, created_at ASC, id ASC"

// AppointmentStore is the gorm implementation of booking.Repository.
type AppointmentStore struct{ db *gorm.DB }

func NewAppointmentStore(db *gorm.DB) *AppointmentStore { return &AppointmentStore{db: db} }

var _ booking.Repository = (*AppointmentStore)(nil)

func (s *AppointmentStore) CheckAssignment(ctx context.Context, userID, projectID uuid.UUID) error {
	return checkAssignment(s.db.WithContext(ctx), userID, projectID)
}

func checkAssignment(db *gorm.DB, userID, projectID uuid.UUID) error {
	var project models.Project
	if err := db.Select("id").First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return booking.ErrProjectNotFound
		}
		return booking.Persistence("lookup project", err)
	}

	var count int64
	if err := db.Table("project_assignments").
		Where("user_id = ? AND project_id = ?", userID, projectID).
		Count(&count).Error; err != nil {
		return booking.Persistence("lookup assignment", err)
	}
	if count == 0 {
		return booking.ErrUserNotAssigned
	}
	return nil
}

// Create inserts the appointment and its files in one transaction. The
// assignment is checked again inside the transaction.
func (s *AppointmentStore) Create(ctx context.Context, draft *models.Appointment, files []models.AppointmentFile) (*models.Appointment, error) {
	appt := *draft
	appt.Files = nil
	appt.ProposedDateTime = appt.ProposedDateTime.UTC()
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkAssignment(tx, appt.UserID, appt.ProjectID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(&appt).Error; err != nil {
			return booking.Persistence("insert appointment", err)
		}
		if len(files) == 0 {
			return nil
		}
		rows := make([]models.AppointmentFile, len(files))
		for i, f := range files {
			f.AppointmentID = appt.ID
			rows[i] = f
		}
		if err := tx.Create(&rows).Error; err != nil {
			return booking.Persistence("insert appointment files", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, appt.ID)
}

func (s *AppointmentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	err := s.db.WithContext(ctx).
		Preload("Files").
		Preload("Project").
		Preload("User").
		First(&appt, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, booking.NotFound("appointment")
		}
		return nil, booking.Persistence("load appointment", err)
	}
	return &appt, nil
}

func (s *AppointmentStore) FindByUser(ctx context.Context, userID uuid.UUID, filter booking.StatusFilter) ([]models.Appointment, error) {
	q := s.db.WithContext(ctx).
		Preload("Files").
		Preload("Project").
		Where("user_id = ?", userID)
	return s.find(q, filter)
}

func (s *AppointmentStore) FindAll(ctx context.Context, filter booking.StatusFilter) ([]models.Appointment, error) {
	q := s.db.WithContext(ctx).
		Preload("Files").
		Preload("Project").
		Preload("User")
	return s.find(q, filter)
}

func (s *AppointmentStore) find(q *gorm.DB, filter booking.StatusFilter) ([]models.Appointment, error) {
	if !filter.All() {
		q = q.Where("status = ?", *filter.Status)
	}
	appts := []models.Appointment{}
	if err := q.Order(appointmentOrder).Find(&appts).Error; err != nil {
		return nil, booking.Persistence("list appointments", err)
	}
	return appts, nil
}

func (s *AppointmentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status models.AppointmentStatus) (*models.Appointment, error) {
	return s.update(ctx, id, map[string]interface{}{"status": status})
}

func (s *AppointmentStore) UpdatePostponement(ctx context.Context, id uuid.UUID, at time.Time) (*models.Appointment, error) {
	return s.update(ctx, id, map[string]interface{}{
		"status":             models.AppointmentStatusPostponed,
		"proposed_date_time": at.UTC(),
	})
}

func (s *AppointmentStore) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*models.Appointment, error) {
	result := s.db.WithContext(ctx).
		Model(&models.Appointment{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return nil, booking.Persistence("update appointment", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, booking.NotFound("appointment")
	}
	return s.FindByID(ctx, id)
}
