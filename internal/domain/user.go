package domain

import "time"

// User is the stored account the credential store authenticates against.
type User struct {
	ID           string
	Name         string
	Lastname     string
	Email        string
	Username     string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return HasRole(u.Roles, RoleAdmin)
}

// Identity returns the authenticated view of the user.
func (u *User) Identity() Identity {
	roles := make([]Role, len(u.Roles))
	copy(roles, u.Roles)
	return Identity{Subject: u.Username, Roles: roles}
}
