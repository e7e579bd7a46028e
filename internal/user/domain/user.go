package domain

import (
	"errors"
	"strings"
	"time"
)

// AdminUser is an account allowed into the admin area.
type AdminUser struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	MFAEnabled   bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Role is the admin privilege level.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// ParseRole accepts the stored role names case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", errors.New("role must be ADMIN or SUPER_ADMIN")
	}
}

// IsSuperAdmin reports whether the user holds the super admin role.
func (u *AdminUser) IsSuperAdmin() bool {
	return u != nil && u.Role == RoleSuperAdmin
}

// CanSignIn reports whether the account may complete the password + code login.
func (u *AdminUser) CanSignIn() bool {
	return u != nil && u.IsActive && u.MFAEnabled
}

// NormalizeEmail lowercases and trims an address. Every lookup and insert goes through it.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *AdminUser) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if u.Role == "" {
		u.Role = RoleAdmin
	}
	if _, err := ParseRole(string(u.Role)); err != nil {
		return err
	}
	return nil
}
