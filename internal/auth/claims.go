package auth

import "github.com/golang-jwt/jwt/v5"

const (
	// RoleAdmin grants access to the license key administration surface.
	RoleAdmin = "admin"
	// AdminAudience scopes admin tokens to this service.
	AdminAudience = "miraiwall-admin"
)

// AdminClaims is the payload of an admin bearer token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
