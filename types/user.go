package types

import "time"

// Role is the authorization level of an account.
type Role string

// Supported roles. New accounts start as RoleUser.
const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"-" db:"id"`

	// Username is the unique handle chosen at signup.
	Username string `json:"username" db:"username"`

	// Email is the user's unique email address. Confirmation codes are
	// delivered here.
	Email string `json:"email" db:"email"`

	// FirstName and LastName are optional profile fields.
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// Bio is free-form text the user writes about themselves.
	Bio string `json:"bio" db:"bio"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// IsStaff marks superusers. Staff pass every role check.
	IsStaff bool `json:"-" db:"is_staff"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"-" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	// Changing it invalidates previously issued confirmation codes.
	UpdatedAt time.Time `json:"-" db:"updated_at"`
}
