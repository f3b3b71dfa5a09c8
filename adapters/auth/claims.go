package auth

import "github.com/golang-jwt/jwt/v5"

// Role is the campus role carried by a bearer token
type Role string

const (
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// PrincipalClaims combines standard claims with the caller's role
type PrincipalClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID string
	Role   Role
}
