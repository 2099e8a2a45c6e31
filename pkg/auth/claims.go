// Package auth mints and verifies the HS256 access tokens handed out at login.
package auth

import (
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	// JTI doubles as the refresh session key. Empty mints a random one.
	JTI string
}

// AccessTokenClaims carries the role so authorization never needs a user lookup.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
