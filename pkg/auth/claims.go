package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/karimfahmy/nilecart-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.MemberRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID        `json:"user_id"`
	Email  string           `json:"email"`
	Role   enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the resolved identity attached to request contexts.
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   enums.MemberRole
}

// IsAdmin reports whether the principal can exercise back-office operations.
func (p Principal) IsAdmin() bool {
	return p.Role == enums.MemberRoleAdmin
}
