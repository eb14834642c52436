package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/models"
	"github.com/sitevisit/backend/pkg/logger"
)

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
	RequestID    string
}

// ObjectUploader is the subset of the object store the exporter needs.
type ObjectUploader interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
}

type AuditService struct {
	DB      *gorm.DB
	Storage ObjectUploader
	queue   chan models.AuditLog
	done    chan struct{}
	once    sync.Once
}

func NewAuditService(db *gorm.DB, storageClient ObjectUploader) *AuditService {
	s := &AuditService{
		DB:      db,
		Storage: storageClient,
		queue:   make(chan models.AuditLog, 1000),
		done:    make(chan struct{}),
	}
	go s.processQueue()
	return s
}

var _ booking.Auditor = (*AuditService)(nil)

func (s *AuditService) LogAsync(entry AuditEntry) {
	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		CreatedAt:    time.Now().UTC(),
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// RecordAppointment queues an audit row for a booking mutation.
func (s *AuditService) RecordAppointment(event booking.AuditEvent) {
	actorID := event.Actor.ID
	appointmentID := event.AppointmentID

	details := make(map[string]interface{}, len(event.Details)+1)
	for k, v := range event.Details {
		details[k] = v
	}
	details["owner_id"] = event.OwnerID.String()

	s.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       event.Action,
		ResourceType: "appointment",
		ResourceID:   &appointmentID,
		Details:      details,
		IPAddress:    event.Actor.IPAddress,
		RequestID:    event.Actor.RequestID,
	})
}

// Close stops accepting entries and waits for the queue to drain.
func (s *AuditService) Close() {
	s.once.Do(func() {
		close(s.queue)
	})
	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
			continue
		}
		s.generateActivities(row)
	}
}

func (s *AuditService) generateActivities(log models.AuditLog) {
	if log.UserID == nil {
		return
	}

	var otherActivities []models.Activity

	switch log.Action {
	case "appointment.create":
		otherActivities = s.activitiesForAppointmentCreate(log)
	case "appointment.confirm", "appointment.reject", "appointment.complete", "appointment.postpone":
		otherActivities = s.activitiesForAppointmentDecision(log)
	}

	for i := range otherActivities {
		if otherActivities[i].IsSelf() {
			continue
		}
		if err := s.DB.Create(&otherActivities[i]).Error; err != nil {
			logger.Error("activity_insert_failed", err, map[string]interface{}{
				"action":  log.Action,
				"user_id": otherActivities[i].UserID.String(),
			})
		}
	}

	selfActivity := s.selfActivityForAction(log)
	if selfActivity != nil {
		if err := s.DB.Create(selfActivity).Error; err != nil {
			logger.Error("self_activity_insert_failed", err, map[string]interface{}{
				"action": log.Action,
			})
		}
	}
}

var decisionVerbs = map[string]string{
	"appointment.confirm":  "confirmed",
	"appointment.reject":   "rejected",
	"appointment.complete": "marked as completed",
	"appointment.postpone": "postponed",
}

func (s *AuditService) selfActivityForAction(log models.AuditLog) *models.Activity {
	if log.UserID == nil {
		return nil
	}

	actorID := *log.UserID
	resourceName := detailString(log.Details, "name")

	var message string
	var resourceType string

	switch log.Action {
	case "appointment.create":
		resourceName = s.appointmentProjectName(log.ResourceID)
		message = fmt.Sprintf("You requested a site visit for \"%s\"", resourceName)
		resourceType = models.ActivityResourceAppointment
	case "appointment.confirm", "appointment.reject", "appointment.complete", "appointment.postpone":
		resourceName = s.appointmentProjectName(log.ResourceID)
		message = fmt.Sprintf("You %s an appointment for \"%s\"", decisionVerbs[log.Action], resourceName)
		resourceType = models.ActivityResourceAppointment
	case "project.create":
		message = fmt.Sprintf("You created project \"%s\"", resourceName)
		resourceType = models.ActivityResourceProject
	case "project.update":
		message = fmt.Sprintf("You updated project \"%s\"", resourceName)
		resourceType = models.ActivityResourceProject
	case "project.delete":
		message = fmt.Sprintf("You deleted project \"%s\"", resourceName)
		resourceType = models.ActivityResourceProject
	case "user.login":
		message = "You signed in"
		resourceType = models.ActivityResourceUser
		resourceName = "Account"
	case "user.register":
		message = "Welcome to Site Visit"
		resourceType = models.ActivityResourceUser
		resourceName = "Account"
	case "admin.user_delete":
		message = "You deleted a user account"
		resourceType = models.ActivityResourceUser
		resourceName = "Admin"
	case "admin.user_update":
		message = "You updated a user account"
		resourceType = models.ActivityResourceUser
		resourceName = "Admin"
	case "mfa.totp_enabled":
		message = "You enabled two-factor authentication"
		resourceType = models.ActivityResourceUser
		resourceName = "Account"
	default:
		return nil
	}

	return &models.Activity{
		UserID:       actorID,
		ActorID:      actorID,
		Action:       log.Action,
		ResourceType: resourceType,
		ResourceID:   log.ResourceID,
		ResourceName: resourceName,
		Message:      message,
	}
}

// activitiesForAppointmentCreate notifies every administrator of a new request.
func (s *AuditService) activitiesForAppointmentCreate(log models.AuditLog) []models.Activity {
	if log.ResourceID == nil {
		return nil
	}

	projectName := s.appointmentProjectName(log.ResourceID)
	actorName := s.getActorName(*log.UserID)

	var adminIDs []uuid.UUID
	s.DB.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Pluck("id", &adminIDs)

	result := make([]models.Activity, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		result = append(result, models.AppointmentActivity(adminID, *log.UserID, log.Action, log.ResourceID, projectName,
			fmt.Sprintf("%s requested a site visit for \"%s\"", actorName, projectName)))
	}
	return result
}

// activitiesForAppointmentDecision notifies the appointment owner.
func (s *AuditService) activitiesForAppointmentDecision(log models.AuditLog) []models.Activity {
	if log.ResourceID == nil {
		return nil
	}

	ownerID, err := uuid.Parse(detailString(log.Details, "owner_id"))
	if err != nil {
		return nil
	}

	projectName := s.appointmentProjectName(log.ResourceID)
	message := fmt.Sprintf("An administrator %s your appointment for \"%s\"", decisionVerbs[log.Action], projectName)
	if log.Action == "appointment.postpone" {
		message = fmt.Sprintf("An administrator postponed your appointment for \"%s\" to %s at %s",
			projectName,
			detailString(log.Details, "display_date"),
			detailString(log.Details, "display_time"),
		)
	}

	return []models.Activity{models.AppointmentActivity(ownerID, *log.UserID, log.Action, log.ResourceID, projectName, message)}
}

func (s *AuditService) getActorName(userID uuid.UUID) string {
	var user models.User
	if err := s.DB.Select("full_name").First(&user, "id = ?", userID).Error; err != nil {
		return "Someone"
	}
	return user.FullName
}

func (s *AuditService) appointmentProjectName(appointmentID *uuid.UUID) string {
	if appointmentID == nil {
		return ""
	}
	var name string
	s.DB.Table("appointments").
		Select("projects.name").
		Joins("JOIN projects ON projects.id = appointments.project_id").
		Where("appointments.id = ?", *appointmentID).
		Limit(1).
		Scan(&name)
	if name == "" {
		return "a project"
	}
	return name
}

// StartExporter runs a background goroutine that periodically exports
// new audit log rows to object storage as NDJSON files.
func (s *AuditService) StartExporter(ctx context.Context, interval time.Duration) {
	if s.Storage == nil {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.ExportPending(ctx); err != nil {
					logger.Error("audit_export_failed", err, nil)
				}
			}
		}
	}()

	logger.Info("audit_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

// ExportPending uploads every row newer than the export cursor and returns
// how many were written.
func (s *AuditService) ExportPending(ctx context.Context) (int, error) {
	var cursor models.AuditExportCursor
	err := s.DB.WithContext(ctx).First(&cursor).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("loading export cursor: %w", err)
		}
		cursor = models.AuditExportCursor{
			LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		if err := s.DB.WithContext(ctx).Create(&cursor).Error; err != nil {
			return 0, fmt.Errorf("creating export cursor: %w", err)
		}
	}

	var logs []models.AuditLog
	if err := s.DB.WithContext(ctx).
		Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&logs).Error; err != nil {
		return 0, fmt.Errorf("querying audit logs: %w", err)
	}

	if len(logs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, log := range logs {
		if err := enc.Encode(log); err != nil {
			logger.Error("audit_export_encode_failed", err, map[string]interface{}{
				"log_id": log.ID.String(),
			})
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("audit-logs/%s/%s.ndjson",
		now.Format("2006/01/02"),
		now.Format("15-04-05.000"),
	)

	if err := s.Storage.Upload(ctx, objectName, &buf, int64(buf.Len()), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("uploading %s: %w", objectName, err)
	}

	lastCreatedAt := logs[len(logs)-1].CreatedAt
	if err := s.DB.WithContext(ctx).Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": lastCreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(logs)),
	}).Error; err != nil {
		return 0, fmt.Errorf("advancing export cursor: %w", err)
	}

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(logs),
	})
	return len(logs), nil
}

func detailString(details map[string]interface{}, key string) string {
	if details == nil {
		return ""
	}
	v, ok := details[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}
