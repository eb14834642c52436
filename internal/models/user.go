package models

import (
	"fmt"
	"strings"
)

type UserRole string

const (
	UserRoleContractor  UserRole = "CONTRACTOR"
	UserRoleEngineering UserRole = "ENGINEERING"
	UserRoleOwner       UserRole = "OWNER"
	UserRoleLab         UserRole = "LAB"
	UserRoleAdmin       UserRole = "ADMIN"
)

var AllUserRoles = []UserRole{
	UserRoleContractor,
	UserRoleEngineering,
	UserRoleOwner,
	UserRoleLab,
	UserRoleAdmin,
}

// ParseUserRole accepts any casing of a known role.
func ParseUserRole(value string) (UserRole, error) {
	role := UserRole(strings.ToUpper(strings.TrimSpace(value)))
	for _, known := range AllUserRoles {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown role: %q", value)
}

type User struct {
	BaseModel
	FullName     string    `json:"fullName" gorm:"type:varchar(150);not null"`
	Email        string    `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"type:text;not null"`
	Role         UserRole  `json:"role" gorm:"type:varchar(20);not null;default:'CONTRACTOR';index"`
	CompanyName  string    `json:"companyName" gorm:"type:varchar(150);not null"`
	Projects     []Project `json:"projects,omitempty" gorm:"many2many:project_assignments;"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}
