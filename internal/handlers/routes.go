package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/internal/services"
)

// Deps carries everything the HTTP routes need.
type Deps struct {
	DB            *gorm.DB
	Booking       *booking.Service
	Access        *services.AccessService
	Audit         *services.AuditService
	Presigner     Presigner
	PresignExpiry time.Duration
}

func RegisterRoutes(app *fiber.App, deps Deps) {
	authHandler := NewAuthHandler(deps.DB, deps.Audit)
	mfaHandler := NewMFAHandler(deps.DB, deps.Audit)
	usersHandler := NewUsersHandler(deps.DB, deps.Audit)
	projectsHandler := NewProjectsHandler(deps.DB, deps.Access, deps.Audit)
	appointmentsHandler := NewAppointmentsHandler(deps.Booking, deps.Presigner, deps.PresignExpiry)
	activitiesHandler := NewActivitiesHandler(deps.DB)

	authMiddleware := middleware.NewAuthMiddleware(deps.DB)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/version", versionHandler(deps.Booking.Location()))

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Post("/admin/login", authHandler.AdminLogin)
	authRoutes.Post("/mfa/verify", mfaHandler.VerifyTOTP)
	authRoutes.Post("/mfa/recovery", mfaHandler.VerifyRecovery)

	mfaRoutes := authRoutes.Group("/mfa", authMiddleware.RequireAuth, middleware.AdminOnly)
	mfaRoutes.Get("/status", mfaHandler.Status)
	mfaRoutes.Post("/totp/setup", mfaHandler.TOTPSetup)
	mfaRoutes.Post("/totp/verify-setup", mfaHandler.TOTPVerifySetup)
	mfaRoutes.Post("/totp/disable", mfaHandler.TOTPDisable)

	api.Get("/users/me", authMiddleware.RequireAuth, authHandler.Me)

	userRoutes := api.Group("/users", authMiddleware.RequireAuth, middleware.AdminOnly)
	userRoutes.Get("/", usersHandler.List)
	userRoutes.Get("/:id", usersHandler.Get)
	userRoutes.Put("/:id", usersHandler.Update)
	userRoutes.Delete("/:id", usersHandler.Delete)

	api.Get("/projects/for-selection", authMiddleware.RequireAuth, projectsHandler.ForSelection)

	projectRoutes := api.Group("/projects", authMiddleware.RequireAuth, middleware.AdminOnly)
	projectRoutes.Post("/", projectsHandler.Create)
	projectRoutes.Get("/admin-list", projectsHandler.AdminList)
	projectRoutes.Get("/:id", projectsHandler.Get)
	projectRoutes.Patch("/:id", projectsHandler.Update)
	projectRoutes.Delete("/:id", projectsHandler.Delete)

	adminAppointments := api.Group("/appointments/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminAppointments.Get("/", appointmentsHandler.ListAll)
	adminAppointments.Patch("/:id/status", appointmentsHandler.UpdateStatus)
	adminAppointments.Patch("/:id/postpone", appointmentsHandler.Postpone)

	appointmentRoutes := api.Group("/appointments", authMiddleware.RequireAuth)
	appointmentRoutes.Post("/", appointmentsHandler.Book)
	appointmentRoutes.Get("/", appointmentsHandler.ListMine)
	appointmentRoutes.Get("/:id", appointmentsHandler.Get)
	appointmentRoutes.Get("/:id/files/:fileId/url", appointmentsHandler.FileURL)

	activityRoutes := api.Group("/activities", authMiddleware.RequireAuth)
	activityRoutes.Get("/", activitiesHandler.List)
	activityRoutes.Get("/unread-count", activitiesHandler.UnreadCount)
	activityRoutes.Put("/read-all", activitiesHandler.MarkAllRead)
	activityRoutes.Put("/:id/read", activitiesHandler.MarkRead)
}
