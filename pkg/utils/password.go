package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to every role at registration.
const MinPasswordLength = 8

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeRecoveryCode strips surrounding space and dashes and lowercases
// the code, so "AB12-CD34" matches the issued "ab12cd34".
func NormalizeRecoveryCode(code string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}

// MatchRecoveryCode returns the index of the hash that code matches, or -1.
func MatchRecoveryCode(code string, hashes []string) int {
	code = NormalizeRecoveryCode(code)
	if code == "" {
		return -1
	}
	for i, hash := range hashes {
		if CheckPassword(code, hash) {
			return i
		}
	}
	return -1
}
