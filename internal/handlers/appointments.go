package handlers

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/pkg/logger"
	"github.com/sitevisit/backend/pkg/utils"
)

// Presigner issues temporary download links for stored attachments.
type Presigner interface {
	PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration, fileName, contentType string) (string, error)
}

type AppointmentsHandler struct {
	Booking       *booking.Service
	Presigner     Presigner
	PresignExpiry time.Duration
}

func NewAppointmentsHandler(svc *booking.Service, presigner Presigner, presignExpiry time.Duration) *AppointmentsHandler {
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return &AppointmentsHandler{Booking: svc, Presigner: presigner, PresignExpiry: presignExpiry}
}

// Book accepts the multipart booking form.
func (h *AppointmentsHandler) Book(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	form, err := c.MultipartForm()
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid multipart form")
	}

	value := func(key string) string {
		if values := form.Value[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var uploads []booking.Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			uploads = append(uploads, booking.Upload{
				Field:       field,
				FileName:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}

	appt, err := h.Booking.Book(c.UserContext(), actor, booking.BookingRequest{
		ProjectID:      value("projectId"),
		VisitReason:    value("visitReason"),
		WorkshopDetail: value("workshopDetail"),
		VisitDesc:      value("visitDesc"),
		Date:           value("date"),
		Time:           value("time"),
		Uploads:        uploads,
	})
	if err != nil {
		if booking.IsValidation(err) {
			logger.WarnWithUser(actor.ID.String(), "appointment_rejected", map[string]interface{}{
				"reason": err.Error(),
			})
		}
		return respondError(c, err)
	}

	return utils.Success(c, fiber.StatusCreated, appt)
}

// ListMine returns the caller's appointments, optionally filtered by ?status=.
func (h *AppointmentsHandler) ListMine(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	appointments, err := h.Booking.ListMine(c.UserContext(), actor, c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, appointments)
}

func (h *AppointmentsHandler) ListAll(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	appointments, err := h.Booking.ListAll(c.UserContext(), actor, c.Query("status"))
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, appointments)
}

func (h *AppointmentsHandler) Get(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid appointment id")
	}

	appt, err := h.Booking.Get(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, appt)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *AppointmentsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid appointment id")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	action, err := booking.ActionForStatus(req.Status)
	if err != nil {
		return respondError(c, err)
	}

	appt, err := h.Booking.ChangeStatus(c.UserContext(), actor, id, action)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, appt)
}

type postponeRequest struct {
	NewDate string `json:"newDate"`
	NewTime string `json:"newTime"`
}

func (h *AppointmentsHandler) Postpone(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid appointment id")
	}

	var req postponeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.NewDate == "" || req.NewTime == "" {
		return utils.ErrorWithCode(c, fiber.StatusBadRequest, string(booking.CodeInvalidInput), "", "newDate and newTime are required")
	}

	appt, err := h.Booking.Postpone(c.UserContext(), actor, id, req.NewDate, req.NewTime)
	if err != nil {
		return respondError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, appt)
}

// FileURL returns a short-lived download link for one attachment.
func (h *AppointmentsHandler) FileURL(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	appointmentID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid appointment id")
	}
	fileID, err := parseUUID(c.Params("fileId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Booking.Attachment(c.UserContext(), actor, appointmentID, fileID)
	if err != nil {
		return respondError(c, err)
	}
	if h.Presigner == nil {
		return utils.Error(c, fiber.StatusServiceUnavailable, "file storage is not configured")
	}

	url, err := h.Presigner.PresignedGetURL(c.UserContext(), file.FilePath, h.PresignExpiry, file.OriginalName, file.ContentType)
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "presign_failed", err, map[string]interface{}{
			"appointment_id": appointmentID.String(),
			"file_id":        fileID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating download url")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url":       url,
		"fileName":  file.OriginalName,
		"fileType":  file.FileType,
		"expiresAt": time.Now().Add(h.PresignExpiry).UTC(),
	})
}
