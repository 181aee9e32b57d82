package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserStatus is the user's lifecycle state. Only active accounts can
// authenticate; deactivation is reserved for the bootstrap repair path.
type UserStatus = string

const (
	UserStatusActive UserStatus = "active"
)

// RegistrationStatus is the registration request lifecycle state.
type RegistrationStatus = string

const (
	// RegistrationPending awaits an admin decision
	RegistrationPending RegistrationStatus = "pending"
	// RegistrationApproved spawned (or matched) an active user
	RegistrationApproved RegistrationStatus = "approved"
	// RegistrationRejected is terminal; the username may apply again
	RegistrationRejected RegistrationStatus = "rejected"
)

// User is the account model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"user_role,notnull" json:"role,omitempty"`
	Status        UserStatus `bun:"status,notnull" json:"status,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Identity adapts User for token issuance.
type userIdentity struct {
	user *User
}

func (i userIdentity) ID() string       { return i.user.ID.String() }
func (i userIdentity) Username() string { return i.user.Username }
func (i userIdentity) Role() string     { return i.user.Role }

// AsIdentity wraps the user for the TokenService
func (u *User) AsIdentity() Identity {
	return userIdentity{user: u}
}

// RegistrationRequest is the pending-approval model. At most one pending
// request may exist per username; a terminal request for the same
// username is replaced on resubmission.
type RegistrationRequest struct {
	bun.BaseModel `bun:"table:registration_requests,alias:regr"`
	ID            uuid.UUID          `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string             `bun:"username,notnull,unique" json:"username,omitempty"`
	PasswordHash  string             `bun:"password_hash,notnull" json:"-"`
	Status        RegistrationStatus `bun:"status,notnull" json:"status,omitempty"`
	RequestedAt   *time.Time         `bun:"requested_at,nullzero,default:current_timestamp" json:"requested_at,omitempty"`
	DecidedAt     *time.Time         `bun:"decided_at,nullzero" json:"decided_at,omitempty"`
	DecidedBy     *uuid.UUID         `bun:"decided_by,nullzero,type:uuid" json:"decided_by,omitempty"`
}

// IsPending reports whether the request still awaits a decision
func (r *RegistrationRequest) IsPending() bool {
	return r != nil && r.Status == RegistrationPending
}
