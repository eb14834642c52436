package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "PENDING"
	AppointmentStatusConfirmed AppointmentStatus = "CONFIRMED"
	AppointmentStatusRejected  AppointmentStatus = "REJECTED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusPostponed AppointmentStatus = "POSTPONED"
)

var AllAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusRejected,
	AppointmentStatusCompleted,
	AppointmentStatusPostponed,
}

func ParseAppointmentStatus(value string) (AppointmentStatus, error) {
	status := AppointmentStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range AllAppointmentStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown appointment status: %q", value)
}

type VisitReason string

const (
	VisitReasonOther    VisitReason = "OTHER"
	VisitReasonFile     VisitReason = "FILE"
	VisitReasonWorkshop VisitReason = "WORKSHOP"
)

var AllVisitReasons = []VisitReason{
	VisitReasonOther,
	VisitReasonFile,
	VisitReasonWorkshop,
}

func ParseVisitReason(value string) (VisitReason, error) {
	reason := VisitReason(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range AllVisitReasons {
		if reason == known {
			return reason, nil
		}
	}
	return "", fmt.Errorf("unknown visit reason: %q", value)
}

type WorkshopDetail string

const (
	WorkshopDetailReexecution     WorkshopDetail = "REEXECUTION"
	WorkshopDetailConcreteTesting WorkshopDetail = "CONCRETE_TESTING"
	WorkshopDetailConcreteWorks   WorkshopDetail = "CONCRETE_WORKS"
	WorkshopDetailSoil            WorkshopDetail = "SOIL"
	WorkshopDetailNotSpecified    WorkshopDetail = "NOT_SPECIFIED"
)

var AllWorkshopDetails = []WorkshopDetail{
	WorkshopDetailReexecution,
	WorkshopDetailConcreteTesting,
	WorkshopDetailConcreteWorks,
	WorkshopDetailSoil,
	WorkshopDetailNotSpecified,
}

// workshopDetailAliases maps the camelCase form values used by clients.
var workshopDetailAliases = map[string]WorkshopDetail{
	"reexecution":     WorkshopDetailReexecution,
	"concreteTesting": WorkshopDetailConcreteTesting,
	"concreteWorks":   WorkshopDetailConcreteWorks,
	"soil":            WorkshopDetailSoil,
	"notSpecified":    WorkshopDetailNotSpecified,
}

// ParseWorkshopDetail accepts the client form value (e.g. "concreteTesting")
// or the canonical upper-case name (e.g. "CONCRETE_TESTING").
func ParseWorkshopDetail(value string) (WorkshopDetail, error) {
	trimmed := strings.TrimSpace(value)
	if detail, ok := workshopDetailAliases[trimmed]; ok {
		return detail, nil
	}
	for _, known := range AllWorkshopDetails {
		if WorkshopDetail(trimmed) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown workshop detail: %q", value)
}

type Appointment struct {
	BaseModel
	UserID           uuid.UUID         `json:"userID" gorm:"type:uuid;not null;index"`
	ProjectID        uuid.UUID         `json:"projectID" gorm:"type:uuid;not null;index"`
	VisitReason      VisitReason       `json:"visitReason" gorm:"type:varchar(20);not null"`
	WorkshopDetail   *WorkshopDetail   `json:"workshopDetail" gorm:"type:varchar(30)"`
	VisitDesc        string            `json:"visitDesc" gorm:"type:text;not null"`
	ProposedDateTime time.Time         `json:"proposedDateTime" gorm:"not null;index"`
	Status           AppointmentStatus `json:"status" gorm:"type:varchar(20);not null;default:'PENDING';index"`

	User    *User             `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Project *Project          `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Files   []AppointmentFile `json:"files" gorm:"foreignKey:AppointmentID"`
}

type AppointmentFile struct {
	BaseModel
	AppointmentID uuid.UUID `json:"appointmentID" gorm:"type:uuid;not null;index"`
	FilePath      string    `json:"filePath" gorm:"type:text;not null"`
	OriginalName  string    `json:"originalName" gorm:"type:varchar(255);not null"`
	FileType      string    `json:"fileType" gorm:"type:varchar(50);not null"`
	ContentType   string    `json:"contentType" gorm:"type:varchar(100)"`
	Size          int64     `json:"size"`
}
