package auth

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleStaff  Role = "staff"
	RoleClient Role = "client"
)

// User is the domain representation of an authenticated user.
// It mirrors the users table and should not include JSON annotations so it
// can be reused by different presentation layers.
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Phone        *string
	// ClientID links a portal user to their client file. Staff and admin
	// accounts have no linked file.
	ClientID  *string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RegisterRequest contains user registration data supplied by callers.
// ClientID is only honored for the client role; it scopes the portal
// account to one client file.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Role     Role    `json:"role"`
	ClientID *string `json:"client_id"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
