package domain

import (
	"errors"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleOwner = "owner"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrUserNotFound = errors.New("user not found")
var ErrUserExists = errors.New("user already exists")
var ErrPasswordPolicy = errors.New("password does not meet policy")

// User models an account holder: a clinic admin or a pet owner.
// Accounts are provisioned out of band (seed command); this service
// never creates them through the public API.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FullName     string     `json:"full_name,omitempty"`
	Role         string     `json:"role"`
	Active       bool       `json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
