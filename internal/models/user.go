// Package models contains data structures for the application's domain models.
package models

import "time"

// UserStatus is the moderation status of an account.
type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusBanned UserStatus = "banned"
)

// Valid reports whether s is a known status.
func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusBanned
}

// User is a registered student. The chat core only reads it.
type User struct {
	ID        string     `gorm:"primaryKey;size:64" json:"id"`
	Email     string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone     string     `gorm:"size:32" json:"phone"`
	FullName  string     `gorm:"size:255;not null" json:"fullname"`
	Faculty   string     `gorm:"index;size:255;not null" json:"faculty"`
	Degree    string     `gorm:"size:64" json:"degree"`
	Course    int        `json:"course"`
	Avatar    *string    `json:"avatar"`
	Status    UserStatus `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsActive reports whether the user may join group rooms and send messages.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
