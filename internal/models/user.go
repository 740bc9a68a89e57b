// Package models contains data structures for the application's domain models.
package models

import "time"

// UserRole is the platform-wide role of a user.
type UserRole string

const (
	// UserRoleMember is a regular community member.
	UserRoleMember UserRole = "member"
	// UserRoleAdmin may moderate users, books and disputes.
	UserRoleAdmin UserRole = "admin"
)

// User represents a member of the BookSwap community.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	Role      UserRole  `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	Location  string    `gorm:"size:255" json:"location,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == UserRoleAdmin
}
