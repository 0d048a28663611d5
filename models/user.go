// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// User represents a registered InstaPurr account. The password column
// holds a bcrypt hash and is never serialized.
type User struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Username       string    `gorm:"size:50;unique;not null" json:"username"`
	Password       string    `gorm:"size:255;not null" json:"-"`
	ProfilePicture string    `gorm:"size:255" json:"profile_picture"`
	Bio            string    `json:"bio"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`

	Posts    []Post    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Likes    []Like    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Comments []Comment `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// RegisterRequest is the body for POST /api/users/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest is the body for POST /api/users/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateUserRequest is the body for PUT /api/users/:id. Both fields are
// optional but at least one must be present.
type UpdateUserRequest struct {
	Bio            *string `json:"bio"`
	ProfilePicture *string `json:"profile_picture"`
}
