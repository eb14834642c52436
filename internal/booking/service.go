package booking

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitevisit/backend/internal/models"
	"github.com/sitevisit/backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// FileStore persists uploaded attachments under an object key.
type FileStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectName string) error
}

// AuditEvent describes a completed appointment mutation.
type AuditEvent struct {
	Actor         Actor
	Action        string
	AppointmentID uuid.UUID
	OwnerID       uuid.UUID
	Details       map[string]interface{}
}

type Auditor interface {
	RecordAppointment(event AuditEvent)
}

// BookingRequest is the raw, unparsed appointment submission.
type BookingRequest struct {
	ProjectID      string
	VisitReason    string
	WorkshopDetail string
	VisitDesc      string
	Date           string
	Time           string
	Uploads        []Upload
}

type Options struct {
	Location      *time.Location
	Limits        UploadLimits
	Auditor       Auditor
	UploadWorkers int
}

type Service struct {
	repo    Repository
	files   FileStore
	audit   Auditor
	loc     *time.Location
	limits  UploadLimits
	workers int
}

func NewService(repo Repository, files FileStore, opts Options) *Service {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	limits := opts.Limits
	if limits.MaxFileBytes <= 0 || limits.MaxGeneralFiles <= 0 {
		limits = DefaultUploadLimits()
	}
	workers := opts.UploadWorkers
	if workers <= 0 {
		workers = 4
	}
	return &Service{
		repo:    repo,
		files:   files,
		audit:   opts.Auditor,
		loc:     loc,
		limits:  limits,
		workers: workers,
	}
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// Book validates a submission and stores it as a PENDING appointment.
// Nothing is written unless every check passes.
func (s *Service) Book(ctx context.Context, actor Actor, req BookingRequest) (*models.Appointment, error) {
	if strings.TrimSpace(req.ProjectID) == "" || strings.TrimSpace(req.VisitDesc) == "" {
		return nil, InvalidInput("", "missing required appointment fields")
	}
	projectID, err := uuid.Parse(strings.TrimSpace(req.ProjectID))
	if err != nil {
		return nil, InvalidInput("projectId", "invalid project id")
	}

	eligibility, err := Validate(actor.Role, req.VisitReason, req.WorkshopDetail, FieldsOf(req.Uploads))
	if err != nil {
		return nil, err
	}
	if eligibility.WorkshopDetailIgnored {
		logger.WarnWithUser(actor.ID.String(), "workshop_detail_ignored", map[string]interface{}{
			"visit_reason":    string(eligibility.VisitReason),
			"workshop_detail": req.WorkshopDetail,
			"role":            string(actor.Role),
		})
	}

	proposed, err := Combine(req.Date, req.Time, s.loc)
	if err != nil {
		return nil, err
	}

	if err := ValidateUploads(req.Uploads, eligibility, s.limits); err != nil {
		return nil, err
	}

	if err := s.repo.CheckAssignment(ctx, actor.ID, projectID); err != nil {
		return nil, err
	}

	draft := &models.Appointment{
		UserID:           actor.ID,
		ProjectID:        projectID,
		VisitReason:      eligibility.VisitReason,
		WorkshopDetail:   eligibility.WorkshopDetail,
		VisitDesc:        strings.TrimSpace(req.VisitDesc),
		ProposedDateTime: proposed,
		Status:           models.AppointmentStatusPending,
	}
	draft.ID = uuid.New()

	files, err := s.storeUploads(ctx, draft.ID, req.Uploads)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, draft, files)
	if err != nil {
		s.discard(files)
		return nil, err
	}

	s.record(actor, "appointment.create", created, map[string]interface{}{
		"project_id":      projectID.String(),
		"visit_reason":    string(created.VisitReason),
		"proposed_at":     created.ProposedDateTime.Format(time.RFC3339),
		"attached_files":  len(files),
		"workshop_detail": workshopDetailString(created.WorkshopDetail),
	})

	return created, nil
}

func (s *Service) storeUploads(ctx context.Context, appointmentID uuid.UUID, uploads []Upload) ([]models.AppointmentFile, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	if s.files == nil {
		return nil, Persistence("file storage is not configured", nil)
	}

	files := make([]models.AppointmentFile, len(uploads))
	stored := make([]bool, len(uploads))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, upload := range uploads {
		g.Go(func() error {
			objectName := fmt.Sprintf("appointments/%s/%s/%s%s",
				appointmentID,
				upload.Field,
				uuid.New(),
				strings.ToLower(filepath.Ext(upload.FileName)),
			)

			reader, err := upload.Open()
			if err != nil {
				return fmt.Errorf("opening %s: %w", upload.Field, err)
			}
			defer reader.Close()

			if err := s.files.Upload(gctx, objectName, reader, upload.Size, upload.ContentType); err != nil {
				return fmt.Errorf("storing %s: %w", upload.Field, err)
			}

			stored[i] = true
			files[i] = models.AppointmentFile{
				AppointmentID: appointmentID,
				FilePath:      objectName,
				OriginalName:  upload.FileName,
				FileType:      upload.Field,
				ContentType:   upload.ContentType,
				Size:          upload.Size,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var partial []models.AppointmentFile
		for i := range files {
			if stored[i] {
				partial = append(partial, files[i])
			}
		}
		s.discard(partial)
		return nil, Persistence("failed storing attachments", err)
	}
	return files, nil
}

// discard removes objects whose appointment row was never committed.
func (s *Service) discard(files []models.AppointmentFile) {
	if s.files == nil {
		return
	}
	for _, f := range files {
		if err := s.files.Delete(context.Background(), f.FilePath); err != nil {
			logger.Error("appointment_file_cleanup_failed", err, map[string]interface{}{
				"object_name": f.FilePath,
			})
		}
	}
}

// ListMine returns the caller's own appointments.
func (s *Service) ListMine(ctx context.Context, actor Actor, status string) ([]models.Appointment, error) {
	filter, err := ParseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByUser(ctx, actor.ID, filter)
}

// ListAll returns every appointment. Administrators only.
func (s *Service) ListAll(ctx context.Context, actor Actor, status string) ([]models.Appointment, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	filter, err := ParseStatusFilter(status)
	if err != nil {
		return nil, err
	}
	return s.repo.FindAll(ctx, filter)
}

func (s *Service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CanViewAppointment(actor, appt); err != nil {
		return nil, err
	}
	return appt, nil
}

// Attachment returns one file of an appointment visible to actor.
func (s *Service) Attachment(ctx context.Context, actor Actor, appointmentID, fileID uuid.UUID) (*models.AppointmentFile, error) {
	appt, err := s.Get(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	for i := range appt.Files {
		if appt.Files[i].ID == fileID {
			return &appt.Files[i], nil
		}
	}
	return nil, NotFound("file")
}

// ChangeStatus applies confirm, reject or complete.
func (s *Service) ChangeStatus(ctx context.Context, actor Actor, id uuid.UUID, action Action) (*models.Appointment, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if action == ActionPostpone {
		return nil, InvalidInput("status", "postponing requires a new date and time")
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := Transition(current.Status, action)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, next)
	if err != nil {
		return nil, err
	}

	s.record(actor, "appointment."+string(action), updated, map[string]interface{}{
		"from_status": string(current.Status),
		"to_status":   string(next),
	})
	return updated, nil
}

// Postpone moves an appointment to a new date and time and marks it POSTPONED.
func (s *Service) Postpone(ctx context.Context, actor Actor, id uuid.UUID, date, clock string) (*models.Appointment, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	at, err := Combine(date, clock, s.loc)
	if err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := Transition(current.Status, ActionPostpone); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdatePostponement(ctx, id, at)
	if err != nil {
		return nil, err
	}

	s.record(actor, "appointment.postpone", updated, map[string]interface{}{
		"from_status":  string(current.Status),
		"previous_at":  current.ProposedDateTime.Format(time.RFC3339),
		"proposed_at":  at.Format(time.RFC3339),
		"display_date": FormatDate(at),
		"display_time": FormatTime(at),
	})
	return updated, nil
}

func (s *Service) record(actor Actor, action string, appt *models.Appointment, details map[string]interface{}) {
	logger.InfoWithUser(actor.ID.String(), strings.ReplaceAll(action, ".", "_"), map[string]interface{}{
		"appointment_id": appt.ID.String(),
		"status":         string(appt.Status),
	})
	if s.audit == nil {
		return
	}
	s.audit.RecordAppointment(AuditEvent{
		Actor:         actor,
		Action:        action,
		AppointmentID: appt.ID,
		OwnerID:       appt.UserID,
		Details:       details,
	})
}

func workshopDetailString(detail *models.WorkshopDetail) string {
	if detail == nil {
		return ""
	}
	return string(*detail)
}
