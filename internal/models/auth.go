package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the JWT payload issued by the identity service.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// CanManageClasses reports whether the caller may mutate the class catalog.
func (c *JWTClaims) CanManageClasses() bool {
	if c == nil {
		return false
	}
	switch c.Role {
	case RoleSuperAdmin, RoleAdmin, RoleStaff:
		return true
	default:
		return false
	}
}
