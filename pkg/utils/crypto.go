package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	sealedPrefix  = "v1:"
	sealSalt      = "sitevisit-totp-encryption"
	sealKeyLabel  = "admin-totp-secret"
	sealKeyLength = 32
)

var (
	sealKey []byte

	ErrSealingNotConfigured = errors.New("secret sealing is not configured")
	ErrNotSealed            = errors.New("value is not a sealed secret")
)

// ConfigureEncryption derives the key used to seal administrator TOTP
// secrets at rest. An empty secret leaves the current key in place.
func ConfigureEncryption(secret string) {
	if secret == "" {
		return
	}
	key := make([]byte, sealKeyLength)
	r := hkdf.New(sha256.New, []byte(secret), []byte(sealSalt), []byte(sealKeyLabel))
	if _, err := io.ReadFull(r, key); err != nil {
		panic(fmt.Sprintf("failed to derive sealing key: %v", err))
	}
	sealKey = key
}

func sealer() (cipher.AEAD, error) {
	if sealKey == nil {
		return nil, ErrSealingNotConfigured
	}
	block, err := aes.NewCipher(sealKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// SealSecret encrypts a TOTP secret with AES-GCM. The result is
// "v1:" followed by base64(nonce || ciphertext).
func SealSecret(plaintext string) (string, error) {
	gcm, err := sealer()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), []byte(sealKeyLabel))
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func OpenSecret(sealed string) (string, error) {
	encoded, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrNotSealed
	}
	gcm, err := sealer()
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed secret: %w", err)
	}
	if len(raw) < gcm.NonceSize() {
		return "", errors.New("sealed secret too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(sealKeyLabel))
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// OpenSecretOrPlain opens a sealed secret and returns any unsealed value as
// is, so secrets stored before sealing was configured keep working.
func OpenSecretOrPlain(value string) string {
	if value == "" || !strings.HasPrefix(value, sealedPrefix) {
		return value
	}
	plaintext, err := OpenSecret(value)
	if err != nil {
		return value
	}
	return plaintext
}
