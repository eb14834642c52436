package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/internal/models"
	"github.com/sitevisit/backend/internal/services"
	"github.com/sitevisit/backend/pkg/logger"
	"github.com/sitevisit/backend/pkg/utils"
)

var errUnknownProjects = errors.New("one or more provided project IDs do not exist")

type AuthHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewAuthHandler(db *gorm.DB, audit *services.AuditService) *AuthHandler {
	return &AuthHandler{DB: db, Audit: audit}
}

type registerRequest struct {
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	CompanyName string   `json:"companyName"`
	Password    string   `json:"password"`
	ProjectIDs  []string `json:"projectIds"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	req.CompanyName = strings.TrimSpace(req.CompanyName)

	if req.FullName == "" || req.CompanyName == "" || req.Email == "" || req.Role == "" {
		return utils.Error(c, fiber.StatusBadRequest, "fullName, email, role, companyName and password are required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}
	if len(req.Password) < utils.MinPasswordLength {
		return utils.Error(c, fiber.StatusBadRequest, "password must be at least 8 characters")
	}

	role, err := models.ParseUserRole(req.Role)
	if err != nil || role == models.UserRoleAdmin {
		return utils.Error(c, fiber.StatusBadRequest, "invalid role, use one of CONTRACTOR, ENGINEERING, OWNER, LAB")
	}

	projectIDs, err := parseUUIDs(req.ProjectIDs)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "projectIds must be a list of project ids")
	}

	var existing models.User
	if err := h.DB.Unscoped().First(&existing, "email = ?", req.Email).Error; err == nil {
		return utils.Error(c, fiber.StatusConflict, "email address already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.Error(c, fiber.StatusInternalServerError, "failed checking existing user")
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed to hash password")
	}

	user := models.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		Role:         role,
		CompanyName:  req.CompanyName,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return assignProjects(tx, &user, projectIDs)
	})
	if errors.Is(err, errUnknownProjects) {
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		logger.Error("user_register_failed", err, map[string]interface{}{
			"email": req.Email,
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating user")
	}

	if err := h.DB.Preload("Projects").First(&user, "id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id":  user.ID.String(),
		"email":    user.Email,
		"role":     string(user.Role),
		"projects": len(projectIDs),
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       "user.register",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details: map[string]interface{}{
			"email": user.Email,
			"role":  string(user.Role),
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	token, err := utils.IssueSessionToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusCreated, fiber.Map{"token": token, "user": user})
}

// assignProjects links user to every listed project, failing when one is unknown.
func assignProjects(tx *gorm.DB, user *models.User, projectIDs []uuid.UUID) error {
	projectIDs = distinctUUIDs(projectIDs)
	if len(projectIDs) == 0 {
		return nil
	}
	var projects []models.Project
	if err := tx.Where("id IN ?", projectIDs).Find(&projects).Error; err != nil {
		return err
	}
	if len(projects) != len(projectIDs) {
		return errUnknownProjects
	}
	return tx.Model(user).Association("Projects").Append(&projects)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authenticate checks credentials and writes the 400/401 response itself
// when they do not match.
func (h *AuthHandler) authenticate(c *fiber.Ctx) (*models.User, error) {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Email == "" || req.Password == "" {
		return nil, utils.Error(c, fiber.StatusBadRequest, "email and password are required")
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return nil, utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"email":   req.Email,
			"ip":      c.IP(),
		})
		return nil, utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
	}
	return &user, nil
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	user, errResp := h.authenticate(c)
	if user == nil {
		return errResp
	}
	return h.issueToken(c, user)
}

// AdminLogin only admits ADMIN accounts and adds the TOTP step when enabled.
func (h *AuthHandler) AdminLogin(c *fiber.Ctx) error {
	user, errResp := h.authenticate(c)
	if user == nil {
		return errResp
	}

	if !user.IsAdmin() {
		logger.Warn("admin_login_rejected", map[string]interface{}{
			"user_id": user.ID.String(),
			"role":    string(user.Role),
			"ip":      c.IP(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials or insufficient permissions")
	}

	if UserHasTOTP(h.DB, user.ID) {
		h.Audit.LogAsync(services.AuditEntry{
			UserID:       &user.ID,
			Action:       "user.login_mfa_pending",
			ResourceType: "user",
			ResourceID:   &user.ID,
			Details: map[string]interface{}{
				"email": user.Email,
			},
			IPAddress: c.IP(),
			RequestID: getRequestID(c),
		})

		mfaToken, err := utils.IssueMFAChallenge(user)
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed generating MFA token")
		}
		return utils.Success(c, fiber.StatusOK, fiber.Map{
			"mfaRequired": true,
			"mfaToken":    mfaToken,
			"methods":     []string{"totp", "recovery"},
		})
	}

	return h.issueToken(c, user)
}

func (h *AuthHandler) issueToken(c *fiber.Ctx, user *models.User) error {
	logger.Info("user_login", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
		"role":    string(user.Role),
		"ip":      c.IP(),
	})

	h.Audit.LogAsync(services.AuditEntry{
		UserID:       &user.ID,
		Action:       "user.login",
		ResourceType: "user",
		ResourceID:   &user.ID,
		Details: map[string]interface{}{
			"email": user.Email,
		},
		IPAddress: c.IP(),
		RequestID: getRequestID(c),
	})

	token, err := utils.IssueSessionToken(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"token": token, "user": user})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var me models.User
	if err := h.DB.Preload("Projects", func(db *gorm.DB) *gorm.DB {
		return db.Order("projects.name ASC")
	}).First(&me, "id = ?", user.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}
	return utils.Success(c, fiber.StatusOK, me)
}
