package models

import (
	"strconv"
	"strings"
	"time"
)

// Role is the coarse permission level carried in access tokens.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// ParseRole converts a case-insensitive string to a Role, defaulting to RoleUser.
func ParseRole(s string) Role {
	if strings.EqualFold(strings.TrimSpace(s), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleUser
}

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a User with initialized timestamps.
func NewUser(name, email string, role Role) *User {
	now := time.Now().UTC()
	return &User{
		Name:      name,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Principal returns the authenticated identity derived from u.
func (u *User) Principal() Principal {
	return Principal{ID: FormatID(u.ID), Name: u.Name, Role: u.Role}
}

// Principal is the identity attached to an authenticated request.
// ID is the canonical stringified user id.
type Principal struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// UserID returns the numeric id of the principal, or 0 when it is not numeric.
func (p Principal) UserID() int64 {
	id, err := ParseID(p.ID)
	if err != nil {
		return 0
	}
	return id
}

// FormatID renders a numeric id in its canonical string form.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID parses a canonical id string.
func ParseID(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}
