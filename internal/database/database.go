package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sitevisit/backend/internal/config"
	"github.com/sitevisit/backend/internal/models"
	"github.com/sitevisit/backend/pkg/logger"
	"github.com/sitevisit/backend/pkg/utils"
)

// Connect opens the configured database, migrates the schema and seeds the
// first administrator when one is configured.
func Connect(cfg config.DBConfig, seed config.SeedConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if err := seedAdminUser(db, seed); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	return db, nil
}

func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	dsn := cfg.DataSource()

	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Info("database_connected", map[string]interface{}{
		"driver": cfg.Driver,
	})
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Appointment{},
		&models.AppointmentFile{},
		&models.Activity{},
		&models.AuditLog{},
		&models.AuditExportCursor{},
		&models.MFAConfig{},
	); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		return nil
	}

	constraint := `
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1
    FROM pg_constraint
    WHERE conname = 'appointment_workshop_detail_check'
  ) THEN
    ALTER TABLE appointments
    ADD CONSTRAINT appointment_workshop_detail_check
    CHECK (workshop_detail IS NULL OR visit_reason = 'WORKSHOP');
  END IF;
END $$;`

	return db.Exec(constraint).Error
}

func seedAdminUser(db *gorm.DB, seed config.SeedConfig) error {
	email := strings.ToLower(strings.TrimSpace(seed.AdminEmail))
	if email == "" || seed.AdminPassword == "" {
		return nil
	}

	var count int64
	if err := db.Model(&models.User{}).Where("role = ?", models.UserRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(seed.AdminPassword)
	if err != nil {
		return err
	}

	admin := models.User{
		FullName:     seed.AdminName,
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleAdmin,
		CompanyName:  seed.AdminCompany,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}

	logger.Info("admin_seeded", map[string]interface{}{
		"email": email,
	})
	return nil
}
