package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/internal/models"
	"github.com/sitevisit/backend/internal/services"
	"github.com/sitevisit/backend/pkg/logger"
	"github.com/sitevisit/backend/pkg/utils"
)

var errUnknownUsers = errors.New("one or more user IDs provided for assignment do not exist")

type ProjectsHandler struct {
	DB     *gorm.DB
	Access *services.AccessService
	Audit  *services.AuditService
}

func NewProjectsHandler(db *gorm.DB, access *services.AccessService, audit *services.AuditService) *ProjectsHandler {
	return &ProjectsHandler{DB: db, Access: access, Audit: audit}
}

// ForSelection lists the projects the caller may book a visit against.
func (h *ProjectsHandler) ForSelection(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	projects, err := h.Access.ProjectsForSelection(c.UserContext(), user)
	if err != nil {
		logger.ErrorWithUser(user.ID.String(), "projects_for_selection_failed", err, nil)
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing projects")
	}
	return utils.Success(c, fiber.StatusOK, projects)
}

type createProjectRequest struct {
	Name     string   `json:"name"`
	Location string   `json:"location"`
	UserIDs  []string `json:"userIds"`
}

func (h *ProjectsHandler) Create(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	var req createProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Location = strings.TrimSpace(req.Location)
	if req.Name == "" || req.Location == "" {
		return utils.Error(c, fiber.StatusBadRequest, "project name and location are required")
	}

	userIDs, err := parseUUIDs(req.UserIDs)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "userIds must be a list of user ids")
	}

	taken, err := h.nameTaken(req.Name, uuid.Nil)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking project name")
	}
	if taken {
		return utils.Error(c, fiber.StatusConflict, "project name already exists")
	}

	project := models.Project{
		Name:     req.Name,
		Location: req.Location,
		Status:   models.ProjectStatusPlanned,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		return assignUsers(tx, &project, userIDs)
	})
	if errors.Is(err, errUnknownUsers) {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "project_create_failed", err, map[string]interface{}{
			"name": req.Name,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating project")
	}

	if err := h.DB.Preload("Users").First(&project, "id = ?", project.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching project")
	}

	logger.InfoWithUser(actor.ID.String(), "project_created", map[string]interface{}{
		"project_id": project.ID.String(),
		"name":       project.Name,
		"users":      len(userIDs),
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &actor.ID,
		Action:       "project.create",
		ResourceType: "project",
		ResourceID:   &project.ID,
		Details: map[string]interface{}{
			"name":     project.Name,
			"location": project.Location,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusCreated, project)
}

type latestVisit struct {
	ID               uuid.UUID                `json:"id"`
	VisitReason      models.VisitReason       `json:"visitReason"`
	WorkshopDetail   *models.WorkshopDetail   `json:"workshopDetail"`
	ProposedDateTime time.Time                `json:"proposedDateTime"`
	Status           models.AppointmentStatus `json:"status"`
	UserID           uuid.UUID                `json:"userID"`
	UserFullName     string                   `json:"userFullName"`
}

type adminProjectView struct {
	models.Project
	LatestCompletedVisit *latestVisit `json:"latestCompletedVisit"`
}

// AdminList returns every project with its assigned users and most recent
// completed visit.
func (h *ProjectsHandler) AdminList(c *fiber.Ctx) error {
	var projects []models.Project
	if err := h.DB.Preload("Users").Order("created_at DESC").Find(&projects).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing projects")
	}

	var completed []models.Appointment
	if err := h.DB.Preload("User").
		Where("status = ?", models.AppointmentStatusCompleted).
		Order("proposed_date_time DESC").
		Find(&completed).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing completed visits")
	}

	latest := make(map[uuid.UUID]*latestVisit, len(projects))
	for _, appt := range completed {
		if _, ok := latest[appt.ProjectID]; ok {
			continue
		}
		visit := &latestVisit{
			ID:               appt.ID,
			VisitReason:      appt.VisitReason,
			WorkshopDetail:   appt.WorkshopDetail,
			ProposedDateTime: appt.ProposedDateTime,
			Status:           appt.Status,
			UserID:           appt.UserID,
		}
		if appt.User != nil {
			visit.UserFullName = appt.User.FullName
		}
		latest[appt.ProjectID] = visit
	}

	views := make([]adminProjectView, 0, len(projects))
	for _, project := range projects {
		views = append(views, adminProjectView{
			Project:              project,
			LatestCompletedVisit: latest[project.ID],
		})
	}
	return utils.Success(c, fiber.StatusOK, views)
}

func (h *ProjectsHandler) Get(c *fiber.Ctx) error {
	projectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid project id")
	}

	var project models.Project
	if err := h.DB.Preload("Users").First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "project not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching project")
	}
	return utils.Success(c, fiber.StatusOK, project)
}

type updateProjectRequest struct {
	Name     *string   `json:"name"`
	Location *string   `json:"location"`
	Status   *string   `json:"status"`
	UserIDs  *[]string `json:"userIds"`
}

func (h *ProjectsHandler) Update(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	projectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid project id")
	}

	var req updateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "project not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching project")
	}
	previousStatus := project.Status

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return utils.Error(c, fiber.StatusBadRequest, "name cannot be empty")
		}
		taken, err := h.nameTaken(name, projectID)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking project name")
		}
		if taken {
			return utils.Error(c, fiber.StatusConflict, "another project with this name already exists")
		}
		updates["name"] = name
	}
	if req.Location != nil {
		location := strings.TrimSpace(*req.Location)
		if location == "" {
			return utils.Error(c, fiber.StatusBadRequest, "location cannot be empty")
		}
		updates["location"] = location
	}
	if req.Status != nil {
		status, err := models.ParseProjectStatus(*req.Status)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid project status: "+*req.Status)
		}
		updates["status"] = status
	}

	var rawUserIDs []string
	if req.UserIDs != nil {
		rawUserIDs = *req.UserIDs
	}
	userIDs, err := parseUUIDs(rawUserIDs)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "userIds must be a list of user ids")
	}

	if len(updates) == 0 && req.UserIDs == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.UserIDs != nil {
			if err := tx.Model(&project).Association("Users").Clear(); err != nil {
				return err
			}
			return assignUsers(tx, &project, userIDs)
		}
		return nil
	})
	if errors.Is(err, errUnknownUsers) {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "project_update_failed", err, map[string]interface{}{
			"project_id": projectID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating project")
	}

	var updated models.Project
	if err := h.DB.Preload("Users").First(&updated, "id = ?", projectID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated project")
	}

	details := map[string]interface{}{"name": updated.Name}
	if updated.Status != previousStatus {
		details["from_status"] = string(previousStatus)
		details["to_status"] = string(updated.Status)
	}
	if req.UserIDs != nil {
		details["assigned_users"] = len(userIDs)
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &actor.ID,
		Action:       "project.update",
		ResourceType: "project",
		ResourceID:   &updated.ID,
		Details:      details,
		IPAddress:    c.IP(),
		RequestID:    getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, updated)
}

// Delete removes a project that no appointment references.
func (h *ProjectsHandler) Delete(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	projectID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid project id")
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "project not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching project")
	}

	var appointments int64
	if err := h.DB.Unscoped().Model(&models.Appointment{}).Where("project_id = ?", projectID).Count(&appointments).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking project appointments")
	}
	if appointments > 0 {
		return utils.Error(c, fiber.StatusConflict, "cannot delete a project that has appointments")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&project).Association("Users").Clear(); err != nil {
			return err
		}
		return tx.Unscoped().Delete(&project).Error
	})
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "project_delete_failed", err, map[string]interface{}{
			"project_id": projectID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting project")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &actor.ID,
		Action:       "project.delete",
		ResourceType: "project",
		ResourceID:   &project.ID,
		Details: map[string]interface{}{
			"name": project.Name,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "project deleted"})
}

func (h *ProjectsHandler) nameTaken(name string, exclude uuid.UUID) (bool, error) {
	var count int64
	q := h.DB.Unscoped().Model(&models.Project{}).Where("name = ?", name)
	if exclude != uuid.Nil {
		q = q.Where("id <> ?", exclude)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func assignUsers(tx *gorm.DB, project *models.Project, userIDs []uuid.UUID) error {
	userIDs = distinctUUIDs(userIDs)
	if len(userIDs) == 0 {
		return nil
	}
	var users []models.User
	if err := tx.Where("id IN ?", userIDs).Find(&users).Error; err != nil {
		return err
	}
	if len(users) != len(userIDs) {
		return errUnknownUsers
	}
	return tx.Model(project).Association("Users").Append(&users)
}
