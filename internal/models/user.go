package models

import (
	"strings"
	"time"
)

// Operator roles
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// User is an operator account of the admin console
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	DateJoined   time.Time
	LastLogin    *time.Time
	Profile      UserProfile
}

// DisplayName is the full name, falling back to the username.
func (u *User) DisplayName() string {
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	return u.Username
}

// UserProfile carries the role and capability flags of a user
type UserProfile struct {
	UserID                string
	Role                  string
	Phone                 string
	Department            string
	Position              string
	CanManageCustomers    bool
	CanManageEnvironments bool
	CanViewLogs           bool
	CanGenerateLicenses   bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DefaultProfile is the profile given to accounts created without one.
func DefaultProfile() UserProfile {
	return UserProfile{Role: RoleViewer, CanViewLogs: true}
}

func (p *UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p *UserProfile) IsOperator() bool {
	return p.Role == RoleAdmin || p.Role == RoleOperator
}

type UserFilter struct {
	Search string
	Role   string
}
