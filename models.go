package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the flat authorization attribute of a principal
type Role = string

const (
	// RoleClient hires freelancers
	RoleClient Role = "client"
	// RoleFreelancer offers services
	RoleFreelancer Role = "freelancer"
	// RoleAdmin is stored but never accepted from self-service input
	RoleAdmin Role = "admin"
)

// SelfServiceRoles lists the roles accepted at sign-up.
var SelfServiceRoles = []any{RoleClient, RoleFreelancer}

// Principal is the authenticated subject
type Principal struct {
	bun.BaseModel  `bun:"table:principals,alias:prn"`
	ID             uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	PasswordDigest string     `bun:"password_digest,notnull" json:"-"`
	FirstName      string     `bun:"first_name,notnull" json:"first_name"`
	LastName       string     `bun:"last_name,notnull" json:"last_name"`
	Role           Role       `bun:"role,notnull" json:"role"`
	Verified       bool       `bun:"verified,notnull" json:"verified"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PrincipalResponse is the public view of a principal
type PrincipalResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
}

// Public strips private fields.
func (p *Principal) Public() PrincipalResponse {
	if p == nil {
		return PrincipalResponse{}
	}
	return PrincipalResponse{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Role:      p.Role,
	}
}

// EphemeralToken is a one-shot, time limited token bound to a principal.
type EphemeralToken struct {
	Token       string    `bun:"token,pk" json:"token"`
	PrincipalID uuid.UUID `bun:"principal_id,notnull,type:uuid" json:"principal_id"`
	ExpiresAt   time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// Expired reports whether the token is no longer usable at now.
func (t EphemeralToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// VerificationToken confirms ownership of the email at sign-up
type VerificationToken struct {
	bun.BaseModel `bun:"table:verification_tokens,alias:vt"`
	EphemeralToken
}

// PasswordResetToken authorizes a single password change
type PasswordResetToken struct {
	bun.BaseModel `bun:"table:password_reset_tokens,alias:prt"`
	EphemeralToken
}

// SessionRecord is the durable session pointer row
type SessionRecord struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	PrincipalID   uuid.UUID `bun:"principal_id,pk,type:uuid"`
	SessionID     uuid.UUID `bun:"session_id,notnull,type:uuid"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}
