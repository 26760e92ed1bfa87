package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// TokenBytes is the entropy of magic-link, session and CSRF tokens.
	TokenBytes = 32

	// PasswordCost is the bcrypt cost for the admin password hash.
	PasswordCost = 12
)

// GenerateToken returns TokenBytes of crypto/rand entropy, hex encoded.
func GenerateToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the lookup key stored for magic-link tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// HmacSHA256 keys auth session tokens with the server secret.
func HmacSHA256(secret, data string) string {
	return hex.EncodeToString(hmacDigest([]byte(secret), data))
}

// HmacSHA256Base64 signs data with a base64-encoded secret and returns the
// base64 signature, the scheme used by the video provider's webhooks.
func HmacSHA256Base64(encodedSecret, data string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(encodedSecret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(hmacDigest(secret, data)), nil
}

func hmacDigest(secret []byte, data string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(data))
	return mac.Sum(nil)
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MaskEmail keeps the first character of the local part for log output.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "****"
	}
	return email[:1] + "****" + email[at:]
}
