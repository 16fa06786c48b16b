package model

import "time"

// Role identifiers as stored in users.role_id.  The catalog seeds the
// roles table with admin = 1.
const (
	RoleAdmin uint8 = 1
	RoleUser  uint8 = 2
)

// Account states stored in users.status.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// User represents an application user record as stored in the
// `users` table.  The table is shared with the catalog service; this
// service only reads it for authentication, except for self
// registration of standard users.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	RoleID       – foreign key into the roles table (1 = admin).
//	Status       – "active" or "inactive".
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    `json:"id"`         // users.id
	Name         string    `json:"name"`       // users.name
	Email        string    `json:"email"`      // users.email
	PasswordHash string    `json:"-"`          // users.password_hash
	RoleID       uint8     `json:"role_id"`    // users.role_id
	Status       string    `json:"status"`     // users.status
	CreatedAt    time.Time `json:"created_at"` // users.created_at
	UpdatedAt    time.Time `json:"updated_at"` // users.updated_at
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.RoleID == RoleAdmin }

// IsActive reports whether the account may authenticate.
func (u User) IsActive() bool { return u.Status == StatusActive }
