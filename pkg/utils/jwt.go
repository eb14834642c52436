package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sitevisit/backend/internal/models"
)

const (
	tokenIssuer     = "sitevisit-api"
	sessionAudience = "sitevisit-session"
)

var (
	signingKey = []byte("change-me-in-production")
	sessionTTL = 24 * time.Hour
)

// SessionClaims identify a signed-in account. Role is copied from the user
// when the token is issued.
type SessionClaims struct {
	UserID uuid.UUID       `json:"uid"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *SessionClaims) IsAdmin() bool {
	return c.Role == models.UserRoleAdmin
}

func ConfigureJWT(secret string, expirationHours int) {
	if secret != "" {
		signingKey = []byte(secret)
	}
	if expirationHours > 0 {
		sessionTTL = time.Duration(expirationHours) * time.Hour
	}
}

// IssueSessionToken signs a bearer token for user.
func IssueSessionToken(user *models.User) (string, error) {
	if user == nil || user.ID == uuid.Nil {
		return "", errors.New("cannot issue a session for an unsaved user")
	}
	now := time.Now()
	claims := SessionClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
}

// ParseSessionToken verifies signature, issuer, audience and expiry, and that
// the role claim names a known role. MFA challenge tokens are rejected here.
func ParseSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := parseSigned(tokenString, claims, sessionAudience); err != nil {
		return nil, err
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("session token has no user")
	}
	if _, err := models.ParseUserRole(string(claims.Role)); err != nil {
		return nil, fmt.Errorf("session token role: %w", err)
	}
	return claims, nil
}

func parseSigned(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
