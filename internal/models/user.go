package models

import (
	"fmt"
	"slices"
	"time"
)

// UserRole is the role a user holds in the library.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleLibrarian UserRole = "librarian"
	RoleStudent   UserRole = "student"
	RoleTeacher   UserRole = "teacher"
)

// Roles lists every known role.
var Roles = []UserRole{RoleAdmin, RoleLibrarian, RoleStudent, RoleTeacher}

// StaffRoles may act on behalf of other users and read reports.
var StaffRoles = []UserRole{RoleAdmin, RoleLibrarian}

// ParseRole converts s into a UserRole.
func ParseRole(s string) (UserRole, error) {
	role := UserRole(s)
	if !slices.Contains(Roles, role) {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// Authorize reports whether role is one of required. An empty required list
// allows every known role.
func Authorize(role UserRole, required ...UserRole) bool {
	if !slices.Contains(Roles, role) {
		return false
	}
	if len(required) == 0 {
		return true
	}
	return slices.Contains(required, role)
}

// IsStaff reports whether the role belongs to library staff.
func (r UserRole) IsStaff() bool {
	return Authorize(r, StaffRoles...)
}

// User represents an account. PasswordHash is never serialized to clients.
type User struct {
	ID           int64     `json:"id" db:"id" firestore:"id"`
	Name         string    `json:"name" db:"name" firestore:"name"`
	Email        string    `json:"email" db:"email" firestore:"email"`
	PasswordHash string    `json:"-" db:"password_hash" firestore:"password_hash"`
	Role         UserRole  `json:"role" db:"role" firestore:"role"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at" firestore:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at" firestore:"updated_at"`
}

// IsAdmin reports whether the user is an administrator.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BorrowerCount is a user together with the number of borrows in a period.
type BorrowerCount struct {
	UserID int64  `json:"userId" db:"user_id"`
	Name   string `json:"name" db:"name"`
	Email  string `json:"email" db:"email"`
	Count  int    `json:"count" db:"count"`
}
