package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/sitevisit/backend/internal/booking"
	"github.com/sitevisit/backend/internal/config"
	"github.com/sitevisit/backend/internal/database"
	"github.com/sitevisit/backend/internal/handlers"
	"github.com/sitevisit/backend/internal/middleware"
	"github.com/sitevisit/backend/internal/repo"
	"github.com/sitevisit/backend/internal/services"
	"github.com/sitevisit/backend/internal/storage"
	"github.com/sitevisit/backend/pkg/logger"
	"github.com/sitevisit/backend/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Options{
		Level:  cfg.Logs.Level,
		Format: cfg.Logs.Format,
		File:   cfg.Logs.File,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	log := logger.Base()

	utils.ConfigureJWT(cfg.JWT.Secret, cfg.JWT.ExpirationHours)
	utils.ConfigureEncryption(cfg.Security.EncryptionKey)

	db, err := database.Connect(cfg.Database, cfg.Seed)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	storageClient, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("minio initialization failed: %v", err)
	}
	if err := storageClient.EnsureBucket(context.Background()); err != nil {
		log.Fatalf("failed ensuring minio bucket: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	auditService := services.NewAuditService(db, storageClient)
	auditService.StartExporter(ctx, cfg.Audit.ExportInterval)
	go cleanupConsumedMFATokens(ctx, 5*time.Minute)

	accessService := services.NewAccessService(db, cfg.Booking.AdminScope)
	bookingService := booking.NewService(repo.NewAppointmentStore(db), storageClient, booking.Options{
		Location:      cfg.Booking.Location,
		Limits:        cfg.Booking.Limits(),
		Auditor:       auditService,
		UploadWorkers: cfg.Booking.UploadWorkers,
	})

	app := fiber.New(fiber.Config{BodyLimit: cfg.Server.BodyLimitMB * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	handlers.RegisterRoutes(app, handlers.Deps{
		DB:            db,
		Booking:       bookingService,
		Access:        accessService,
		Audit:         auditService,
		Presigner:     storageClient,
		PresignExpiry: cfg.MinIO.PresignExpiry,
	})

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":          cfg.Server.Port,
		"address":       listenAddr,
		"body_limit_mb": cfg.Server.BodyLimitMB,
		"db_driver":     cfg.Database.Driver,
		"timezone":      cfg.Booking.Location.String(),
		"admin_scope":   string(cfg.Booking.AdminScope),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Infof("shutting down server due to signal: %s", sig)
		cancel()
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			auditService.Close()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Warn("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

func cleanupConsumedMFATokens(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			utils.PruneUsedChallenges(time.Now())
		}
	}
}
