package models

import (
	"time"
)

// Role values accepted for an account
const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleManager = "manager"
)

// Account is a provisioned login identity stored in the users table
type Account struct {
	ID                  string
	Username            string // lowercase, unique
	PasswordHash        string
	Email               string // optional, used for security alerts
	Role                string // admin, staff or manager
	IsAdmin             bool
	IsActive            bool
	FailedLoginAttempts int
	LockedUntil         *time.Time // informational; lockout is decided by the rate limiter window
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ValidRole reports whether role is one of the enumerated account roles
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleStaff, RoleManager:
		return true
	default:
		return false
	}
}

// Identity returns the identity that a session binds for this account
func (a *Account) Identity() Identity {
	return Identity{
		UserID:   a.ID,
		Username: a.Username,
		Role:     a.Role,
		IsAdmin:  a.IsAdmin,
	}
}
