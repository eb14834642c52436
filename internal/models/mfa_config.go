package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MFAConfig holds the TOTP second factor of an administrator account.
// TOTPSecret is sealed at rest; RecoveryCodes is a JSON array of bcrypt
// hashes, each usable once.
type MFAConfig struct {
	BaseModel
	UserID         uuid.UUID  `json:"userID" gorm:"type:uuid;uniqueIndex;not null"`
	TOTPEnabled    bool       `json:"totpEnabled" gorm:"default:false"`
	TOTPSecret     string     `json:"-" gorm:"type:text"`
	TOTPVerifiedAt *time.Time `json:"totpVerifiedAt,omitempty"`
	RecoveryCodes  string     `json:"-" gorm:"type:text"`
	RecoveryCount  int        `json:"recoveryCodesRemaining" gorm:"default:0"`
	User           User       `json:"-" gorm:"foreignKey:UserID"`
}

func (MFAConfig) TableName() string {
	return "mfa_configs"
}

// RecoveryHashes decodes the stored recovery code hashes. A config without
// codes yields an empty slice.
func (m *MFAConfig) RecoveryHashes() ([]string, error) {
	if m.RecoveryCodes == "" {
		return []string{}, nil
	}
	var hashes []string
	if err := json.Unmarshal([]byte(m.RecoveryCodes), &hashes); err != nil {
		return nil, err
	}
	return hashes, nil
}

// RecoveryColumns returns the column updates that store hashes as the
// remaining recovery codes.
func RecoveryColumns(hashes []string) (map[string]interface{}, error) {
	if hashes == nil {
		hashes = []string{}
	}
	encoded, err := json.Marshal(hashes)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"recovery_codes": string(encoded),
		"recovery_count": len(hashes),
	}, nil
}
