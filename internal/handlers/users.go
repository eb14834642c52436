package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/internal/models"
	"github.com/sitevisit/backend/internal/services"
	"github.com/sitevisit/backend/pkg/logger"
	"github.com/sitevisit/backend/pkg/utils"
)

type UsersHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewUsersHandler(db *gorm.DB, audit *services.AuditService) *UsersHandler {
	return &UsersHandler{DB: db, Audit: audit}
}

// List returns every non-admin account.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page := utils.ParsePage(c, utils.UserListPage)
	search := strings.TrimSpace(c.Query("search"))

	query := h.DB.Model(&models.User{}).Where("role <> ?", models.UserRoleAdmin)
	if search != "" {
		searchValue := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(email) LIKE ? OR LOWER(full_name) LIKE ? OR LOWER(company_name) LIKE ?",
			searchValue,
			searchValue,
			searchValue,
		)
	}
	if role := strings.TrimSpace(c.Query("role")); role != "" {
		parsed, err := models.ParseUserRole(role)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role filter")
		}
		query = query.Where("role = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting users")
	}

	var users []models.User
	if err := query.Preload("Projects").Order("created_at DESC").Scopes(page.Scope).Find(&users).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing users")
	}

	return utils.Paginated(c, users, page, total)
}

func (h *UsersHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.Preload("Projects").First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	return utils.Success(c, fiber.StatusOK, user)
}

type updateUserRequest struct {
	FullName    *string   `json:"fullName"`
	Email       *string   `json:"email"`
	CompanyName *string   `json:"companyName"`
	Role        *string   `json:"role"`
	ProjectIDs  *[]string `json:"projectIds"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	var target models.User
	if err := h.DB.First(&target, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	updates := map[string]interface{}{}
	var newRole *models.UserRole
	if req.Role != nil {
		role, err := models.ParseUserRole(*req.Role)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid role")
		}
		newRole = &role
		updates["role"] = role
	}
	if err := booking.CanUpdateUser(actor, &target, newRole); err != nil {
		logger.WarnWithUser(actor.ID.String(), "user_update_denied", map[string]interface{}{
			"target_user_id": target.ID.String(),
			"reason":         booking.PublicMessage(err),
		})
		return respondError(c, err)
	}

	if req.FullName != nil {
		value := strings.TrimSpace(*req.FullName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "fullName cannot be empty")
		}
		updates["full_name"] = value
	}
	if req.CompanyName != nil {
		value := strings.TrimSpace(*req.CompanyName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "companyName cannot be empty")
		}
		updates["company_name"] = value
	}
	if req.Email != nil {
		value := strings.ToLower(strings.TrimSpace(*req.Email))
		if _, err := mail.ParseAddress(value); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid email")
		}
		var count int64
		if err := h.DB.Unscoped().Model(&models.User{}).Where("email = ? AND id <> ?", value, userID).Count(&count).Error; err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed checking email")
		}
		if count > 0 {
			return utils.Error(c, fiber.StatusConflict, "email address already in use")
		}
		updates["email"] = value
	}

	var projectIDs []string
	if req.ProjectIDs != nil {
		projectIDs = *req.ProjectIDs
	}
	parsedProjects, err := parseUUIDs(projectIDs)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "projectIds must be a list of project ids")
	}

	if len(updates) == 0 && req.ProjectIDs == nil {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
				return err
			}
		}
		if req.ProjectIDs != nil {
			if err := tx.Model(&target).Association("Projects").Clear(); err != nil {
				return err
			}
			return assignProjects(tx, &target, parsedProjects)
		}
		return nil
	})
	if errors.Is(err, errUnknownProjects) {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "user_update_failed", err, map[string]interface{}{
			"target_user_id": userID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}

	var user models.User
	if err := h.DB.Preload("Projects").First(&user, "id = ?", userID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated user")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &actor.ID,
		Action:       "admin.user_update",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details: map[string]interface{}{
			"target_name": user.FullName,
			"fields":      updatedFields(updates, req.ProjectIDs != nil),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, user)
}

func updatedFields(updates map[string]interface{}, projects bool) []string {
	fields := make([]string, 0, len(updates)+1)
	for _, key := range []string{"full_name", "email", "company_name", "role"} {
		if _, ok := updates[key]; ok {
			fields = append(fields, key)
		}
	}
	if projects {
		fields = append(fields, "projects")
	}
	return fields
}

func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	actor := middleware.CurrentActor(c)

	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var target models.User
	if err := h.DB.First(&target, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	if err := booking.CanDeleteUser(actor, &target); err != nil {
		return respondError(c, err)
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&target).Association("Projects").Clear(); err != nil {
			return err
		}
		return tx.Delete(&target).Error
	})
	if err != nil {
		logger.ErrorWithUser(actor.ID.String(), "user_delete_failed", err, map[string]interface{}{
			"target_user_id": userID.String(),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting user")
	}

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &actor.ID,
		Action:       "admin.user_delete",
		ResourceType: "user",
		ResourceID:   &target.ID,
		Details: map[string]interface{}{
			"target_name":  target.FullName,
			"target_email": target.Email,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}
