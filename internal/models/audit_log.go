package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog rows are append-only and never soft-deleted, so they skip BaseModel.
type AuditLog struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       *uuid.UUID        `json:"userID,omitempty" gorm:"type:uuid;index"`
	Action       string            `json:"action" gorm:"type:varchar(50);not null;index"`
	ResourceType string            `json:"resourceType" gorm:"type:varchar(30);not null;index"`
	ResourceID   *uuid.UUID        `json:"resourceID,omitempty" gorm:"type:uuid;index"`
	Details      datatypes.JSONMap `json:"details,omitempty"`
	IPAddress    string            `json:"ipAddress" gorm:"type:varchar(45);not null"`
	RequestID    string            `json:"requestID,omitempty" gorm:"type:varchar(36)"`
	CreatedAt    time.Time         `json:"createdAt" gorm:"not null;index"`
}

func (a *AuditLog) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// AuditExportCursor remembers how far the object-storage export has progressed.
type AuditExportCursor struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	LastExportAt  time.Time `json:"lastExportAt" gorm:"not null"`
	ExportedCount int64     `json:"exportedCount" gorm:"not null;default:0"`
}

func (a *AuditExportCursor) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

func (AuditExportCursor) TableName() string {
	return "audit_export_cursors"
}
