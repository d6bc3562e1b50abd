package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role scopes what a token is allowed to do against the scoring API.
type Role string

const (
	// RoleUser tokens belong to end users reading their own data.
	RoleUser Role = "user"
	// RoleService tokens belong to trusted internal services that may record
	// point events and trigger badge evaluation.
	RoleService Role = "service"
	// RoleAdmin tokens may additionally write manual adjustments.
	RoleAdmin Role = "admin"
)

var validRoles = []Role{RoleUser, RoleService, RoleAdmin}

// IsValid reports whether the role is one the platform recognizes.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// CanWrite reports whether the role may append events to the ledger.
func (r Role) CanWrite() bool {
	return r == RoleService || r == RoleAdmin
}

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT accepted by the API.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   Role      `json:"role"`
	jwt.RegisteredClaims
}
