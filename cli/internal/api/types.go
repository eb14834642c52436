package api

import "time"

// User mirrors the backend User model.
type User struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	CompanyName string    `json:"companyName"`
	Projects    []Project `json:"projects,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type AppointmentFile struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	FileType     string `json:"fileType"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
}

type Appointment struct {
	ID               string            `json:"id"`
	UserID           string            `json:"userID"`
	ProjectID        string            `json:"projectID"`
	VisitReason      string            `json:"visitReason"`
	WorkshopDetail   *string           `json:"workshopDetail"`
	VisitDesc        string            `json:"visitDesc"`
	ProposedDateTime time.Time         `json:"proposedDateTime"`
	Status           string            `json:"status"`
	User             *User             `json:"user,omitempty"`
	Project          *Project          `json:"project,omitempty"`
	Files            []AppointmentFile `json:"files"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// LoginResult is returned by both login endpoints. MFARequired is set when
// an administrator still has to present a TOTP code.
type LoginResult struct {
	Token       string   `json:"token"`
	User        *User    `json:"user,omitempty"`
	MFARequired bool     `json:"mfaRequired"`
	MFAToken    string   `json:"mfaToken"`
	Methods     []string `json:"methods,omitempty"`
}

type FileURL struct {
	URL       string    `json:"url"`
	FileName  string    `json:"fileName"`
	FileType  string    `json:"fileType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VersionInfo is returned by GET /api/version.
type VersionInfo struct {
	Service    string   `json:"service"`
	Version    string   `json:"version"`
	APIVersion string   `json:"apiVersion"`
	Timezone   string   `json:"timezone"`
	FileFields []string `json:"fileFields"`
}

// Compatible reports whether the server speaks the given API version.
func (v VersionInfo) Compatible(apiVersion string) bool {
	return v.APIVersion == apiVersion
}
