package identity

import (
	"time"

	"github.com/google/uuid"
)

// Account roles.
const (
	RolePatient  = "patient"
	RoleProvider = "provider"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

var validRoles = map[string]bool{
	RolePatient:  true,
	RoleProvider: true,
	RoleStaff:    true,
	RoleAdmin:    true,
}

// User is an authenticated account. Patient demographics live in the patient
// package; this record carries only credentials and login state.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	Role                string     `json:"role"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastActive          *time.Time `json:"last_active,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Locked reports whether the account is currently locked out.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}
