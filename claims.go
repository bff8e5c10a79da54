package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims are carried by the short lived access credential
type AccessClaims struct {
	jwt.RegisteredClaims
}

// RefreshClaims are carried by the refresh credential. SessionID must match
// the principal's stored session pointer for the credential to be honored.
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID uuid.UUID `json:"sid"`
}

// PrincipalID parses the subject claim.
func (c *AccessClaims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Expires returns the expiration time, zero when absent.
func (c *AccessClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// PrincipalID parses the subject claim.
func (c *RefreshClaims) PrincipalID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Expires returns the expiration time, zero when absent.
func (c *RefreshClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil {
		return
	}
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
