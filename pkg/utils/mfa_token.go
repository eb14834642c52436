package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sitevisit/backend/internal/models"
)

const (
	mfaChallengeTTL      = 5 * time.Minute
	mfaChallengeAudience = "sitevisit-admin-mfa"
)

// ErrMFAAdminOnly is returned when a challenge is requested for, or carries,
// a non-administrator account.
var ErrMFAAdminOnly = errors.New("second factor challenges are only issued to administrators")

// MFAChallengeClaims travel between the password step and the TOTP or
// recovery step of an administrator login.
type MFAChallengeClaims struct {
	UserID uuid.UUID       `json:"uid"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// IssueMFAChallenge signs a single-use challenge for an administrator.
func IssueMFAChallenge(user *models.User) (string, error) {
	if user == nil || !user.IsAdmin() {
		return "", ErrMFAAdminOnly
	}
	now := time.Now()
	claims := MFAChallengeClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{mfaChallengeAudience},
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(mfaChallengeTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

// ParseMFAChallenge verifies a challenge token. Session tokens do not pass.
func ParseMFAChallenge(tokenString string) (*MFAChallengeClaims, error) {
	claims := &MFAChallengeClaims{}
	if err := parseSigned(tokenString, claims, mfaChallengeAudience); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, errors.New("challenge token has no id")
	}
	if claims.Role != models.UserRoleAdmin {
		return nil, ErrMFAAdminOnly
	}
	return claims, nil
}

// usedChallenges holds consumed challenge ids until the token would have
// expired on its own.
var usedChallenges = struct {
	sync.Mutex
	expiry map[string]time.Time
}{expiry: map[string]time.Time{}}

func ChallengeUsed(id string) bool {
	usedChallenges.Lock()
	defer usedChallenges.Unlock()
	_, used := usedChallenges.expiry[id]
	return used
}

func MarkChallengeUsed(claims *MFAChallengeClaims) {
	expiresAt := time.Now().Add(mfaChallengeTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	usedChallenges.Lock()
	defer usedChallenges.Unlock()
	usedChallenges.expiry[claims.ID] = expiresAt
}

// PruneUsedChallenges forgets ids whose tokens expired before now and
// returns how many were dropped.
func PruneUsedChallenges(now time.Time) int {
	usedChallenges.Lock()
	defer usedChallenges.Unlock()
	pruned := 0
	for id, expiresAt := range usedChallenges.expiry {
		if now.After(expiresAt) {
			delete(usedChallenges.expiry, id)
			pruned++
		}
	}
	return pruned
}
