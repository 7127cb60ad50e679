// Package security encrypts a lapp's access_token at rest inside its
// config.toml, adapted from the teacher's generic AES-GCM/PBKDF2 helper
// (originally internal/crypto/encryption.go) into a single-purpose
// "encrypt this one field with a host-wide key" API.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize   = 32 // AES-256
	nonceSize = 12 // GCM standard nonce size
	iterCount = 100000
)

// tokenSalt is fixed rather than per-value: access tokens are encrypted
// with a single host-wide key (derived once at process start from
// LAPLACE_SETTINGS_KEY), so there is no per-record salt to persist
// alongside the ciphertext the way a password hash would need one.
var tokenSalt = []byte("laplace-access-token-v1")

// DeriveKey turns an operator-supplied passphrase (LAPLACE_SETTINGS_KEY)
// into a fixed-size AES-256 key.
func DeriveKey(passphrase string) []byte {
	return pbkdf2.Key([]byte(passphrase), tokenSalt, iterCount, keySize, sha256.New)
}

// EncryptToken seals token under key and returns a base64 string suitable
// for a TOML value. An empty token encrypts to an empty string so a lapp
// with no access_token configured round-trips cleanly.
func EncryptToken(token string, key []byte) (string, error) {
	if token == "" {
		return "", nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(token), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptToken is EncryptToken's inverse.
func DecryptToken(sealed string, key []byte) (string, error) {
	if sealed == "" {
		return "", nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(ciphertext) < nonceSize {
		return "", errors.New("security: sealed token too short")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce, body := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
