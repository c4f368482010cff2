package ghost

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/ghostwriter/internal/apperr"
)

// TokenTTL is how long an Admin API token stays valid.
const TokenTTL = 5 * time.Minute

// AdminKey is a parsed "id:secret" Admin API key.
type AdminKey struct {
	ID     string
	Secret []byte
}

// ParseAdminKey splits and hex-decodes an Admin API key.
func ParseAdminKey(key string) (AdminKey, error) {
	id, secret, ok := strings.Cut(strings.TrimSpace(key), ":")
	if !ok || id == "" || secret == "" {
		return AdminKey{}, fmt.Errorf("%w: admin key must look like <id>:<secret>", apperr.ErrInvalidConfig)
	}
	raw, err := hex.DecodeString(secret)
	if err != nil {
		return AdminKey{}, fmt.Errorf("%w: admin key secret is not hex: %v", apperr.ErrInvalidConfig, err)
	}
	return AdminKey{ID: id, Secret: raw}, nil
}

// Audience returns the token audience for an API version.
func Audience(version string) string {
	if version == "" {
		return "/admin/"
	}
	return "/" + version + "/admin/"
}

// Sign issues a short-lived HS256 token for the Admin API.
func (k AdminKey) Sign(version string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		Audience:  jwt.ClaimStrings{Audience(version)},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = k.ID
	signed, err := tok.SignedString(k.Secret)
	if err != nil {
		return "", fmt.Errorf("ghost: sign token: %w", err)
	}
	return signed, nil
}
