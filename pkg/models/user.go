package models

// UserRole represents user roles
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
}

// Submitter identifies the user behind a public request
type Submitter struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	Verified    bool   `json:"verified"`
}
