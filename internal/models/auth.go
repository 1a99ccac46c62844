package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the identity gateway.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleLibrarian  UserRole = "BIBLIOTECARIO"
	RoleStudent    UserRole = "ESTUDIANTE"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor returns the identifier recorded as the creator of a loan.
func (c *JWTClaims) Actor() string {
	if c == nil {
		return ""
	}
	if c.UserID != "" {
		return c.UserID
	}
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
