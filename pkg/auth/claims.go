package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lucalabs/luca-backend/pkg/enums"
)

// AccessTokenClaims represents the typed JWT minted by the external identity
// provider. The API only verifies and reads these; it never issues tokens.
type AccessTokenClaims struct {
	UserID   uuid.UUID        `json:"user_id"`
	TenantID uuid.UUID        `json:"tenant_id"`
	Role     enums.TenantRole `json:"role"`
	jwt.RegisteredClaims
}
