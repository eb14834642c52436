package models

import "github.com/google/uuid"

// Resource kinds an activity can point at.
const (
	ActivityResourceAppointment = "appointment"
	ActivityResourceProject     = "project"
	ActivityResourceUser        = "user"
)

// Activity is one entry in a user's notification feed. UserID is the
// recipient; ActorID is whoever caused it.
type Activity struct {
	BaseModel
	UserID       uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index"`
	ActorID      uuid.UUID  `json:"actorID" gorm:"type:uuid;not null"`
	Action       string     `json:"action" gorm:"type:varchar(50);not null"`
	ResourceType string     `json:"resourceType" gorm:"type:varchar(30);not null"`
	ResourceID   *uuid.UUID `json:"resourceID,omitempty" gorm:"type:uuid"`
	ResourceName string     `json:"resourceName" gorm:"type:varchar(255);not null"`
	Message      string     `json:"message" gorm:"type:text;not null"`
	IsRead       bool       `json:"isRead" gorm:"not null;default:false;index"`

	Actor *User `json:"actor,omitempty" gorm:"foreignKey:ActorID;references:ID"`
}

func (Activity) TableName() string {
	return "activities"
}

// AppointmentActivity notifies recipient about an appointment of the named
// project.
func AppointmentActivity(recipient, actor uuid.UUID, action string, appointmentID *uuid.UUID, projectName, message string) Activity {
	return Activity{
		UserID:       recipient,
		ActorID:      actor,
		Action:       action,
		ResourceType: ActivityResourceAppointment,
		ResourceID:   appointmentID,
		ResourceName: projectName,
		Message:      message,
	}
}

// IsSelf reports whether the recipient caused the activity.
func (a *Activity) IsSelf() bool {
	return a.UserID == a.ActorID
}
