package models

import (
	"fmt"
	"strings"
)

type ProjectStatus string

const (
	ProjectStatusPlanned   ProjectStatus = "PLANNED"
	ProjectStatusOngoing   ProjectStatus = "ONGOING"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
	ProjectStatusCancelled ProjectStatus = "CANCELLED"
)

var AllProjectStatuses = []ProjectStatus{
	ProjectStatusPlanned,
	ProjectStatusOngoing,
	ProjectStatusCompleted,
	ProjectStatusOnHold,
	ProjectStatusCancelled,
}

func ParseProjectStatus(value string) (ProjectStatus, error) {
	status := ProjectStatus(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range AllProjectStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown project status: %q", value)
}

type Project struct {
	BaseModel
	Name         string        `json:"name" gorm:"type:varchar(200);uniqueIndex;not null"`
	Location     string        `json:"location" gorm:"type:varchar(255);not null"`
	Status       ProjectStatus `json:"status" gorm:"type:varchar(20);not null;default:'PLANNED';index"`
	Users        []User        `json:"users,omitempty" gorm:"many2many:project_assignments;"`
	Appointments []Appointment `json:"-" gorm:"foreignKey:ProjectID"`
}
