package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the token payload: subject (user id), username, role,
// and the registered iat/exp pair. It is self-contained; nothing here is
// trusted before the signature verifies.
type SessionClaims struct {
	jwt.RegisteredClaims
	Username string   `json:"username,omitempty"`
	UserRole UserRole `json:"role,omitempty"`
}

// Subject returns the subject claim (the user id)
func (c *SessionClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID is an alias for Subject
func (c *SessionClaims) UserID() string {
	return c.Subject()
}

// Role returns the global role carried by the token
func (c *SessionClaims) Role() string {
	return c.UserRole
}

// IsAdmin reports whether the token carries the admin role
func (c *SessionClaims) IsAdmin() bool {
	return c.UserRole == RoleAdmin
}

// HasRole checks the token's role against an expected one
func (c *SessionClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// Expires returns the expiration time, zero when absent
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedTime returns the issued-at time, zero when absent
func (c *SessionClaims) IssuedTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// wellFormed type-checks the decoded payload fields. Ran only after the
// signature has been verified.
func (c *SessionClaims) wellFormed() bool {
	if c.RegisteredClaims.Subject == "" || c.Username == "" {
		return false
	}
	if !IsValidRole(c.UserRole) {
		return false
	}
	return c.IssuedAt != nil && c.ExpiresAt != nil
}
