package booknetwork

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read-only view of a validated bearer token.
type AuthClaims interface {
	Subject() string
	Email() string
	FullName() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claims payload. Subject is the account email;
// fullName/email are the custom claims carried alongside it.
type JWTClaims struct {
	jwt.RegisteredClaims
	Name         string `json:"fullName,omitempty"`
	EmailAddress string `json:"email,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim.
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// Email returns the email claim, falling back to the subject.
func (c *JWTClaims) Email() string {
	if c.EmailAddress != "" {
		return c.EmailAddress
	}
	return c.RegisteredClaims.Subject
}

// FullName returns the display name claim.
func (c *JWTClaims) FullName() string {
	return c.Name
}

// Expires returns the expiration time, zero when absent.
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issuance time, zero when absent.
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
