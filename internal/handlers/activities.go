package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/internal/models"
	"github.com/sitevisit/backend/pkg/utils"
)

// ActivitiesHandler serves the caller's notification feed, e.g.
// "An administrator confirmed your appointment for ...".
type ActivitiesHandler struct {
	DB *gorm.DB
}

func NewActivitiesHandler(db *gorm.DB) *ActivitiesHandler {
	return &ActivitiesHandler{DB: db}
}

func (h *ActivitiesHandler) feed(user *models.User) *gorm.DB {
	return h.DB.Model(&models.Activity{}).Where("user_id = ?", user.ID)
}

// List supports ?unread=true and ?resourceType=appointment|project|user.
func (h *ActivitiesHandler) List(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	page := utils.ParsePage(c, utils.ActivityFeedPage)
	filtered := func() *gorm.DB {
		q := h.feed(user)
		if c.QueryBool("unread") {
			q = q.Where("is_read = ?", false)
		}
		if resourceType := c.Query("resourceType"); resourceType != "" {
			q = q.Where("resource_type = ?", resourceType)
		}
		return q
	}

	var total int64
	if err := filtered().Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting activities")
	}

	activities := []models.Activity{}
	if err := filtered().Preload("Actor").Order("created_at DESC").Scopes(page.Scope).
		Find(&activities).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing activities")
	}

	return utils.Paginated(c, activities, page, total)
}

func (h *ActivitiesHandler) UnreadCount(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var count int64
	if err := h.feed(user).Where("is_read = ?", false).Count(&count).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting unread activities")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"count": count})
}

func (h *ActivitiesHandler) MarkRead(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	activityID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid activity id")
	}

	result := h.feed(user).Where("id = ?", activityID).Update("is_read", true)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed marking activity as read")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "activity not found")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "marked as read"})
}

func (h *ActivitiesHandler) MarkAllRead(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	result := h.feed(user).Where("is_read = ?", false).Update("is_read", true)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed marking all activities as read")
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"updated": result.RowsAffected})
}
