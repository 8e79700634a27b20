package models

import (
	"fmt"
	"time"
)

// ExpiryUnit is the unit an admin picks for a message expiry window.
type ExpiryUnit string

const (
	ExpiryMinutes ExpiryUnit = "minutes"
	ExpiryHours   ExpiryUnit = "hours"
	ExpiryDays    ExpiryUnit = "days"
)

// ExpiryDuration is a positive value with a unit.
type ExpiryDuration struct {
	Value int        `json:"value"`
	Unit  ExpiryUnit `json:"unit"`
}

// Duration converts the value to a time.Duration.
func (d ExpiryDuration) Duration() time.Duration {
	switch d.Unit {
	case ExpiryMinutes:
		return time.Duration(d.Value) * time.Minute
	case ExpiryDays:
		return time.Duration(d.Value) * 24 * time.Hour
	default:
		return time.Duration(d.Value) * time.Hour
	}
}

// Validate checks the value is positive and the unit known.
func (d ExpiryDuration) Validate() error {
	if d.Value <= 0 {
		return fmt.Errorf("expiry value must be positive, got %d", d.Value)
	}
	switch d.Unit {
	case ExpiryMinutes, ExpiryHours, ExpiryDays:
		return nil
	default:
		return fmt.Errorf("unknown expiry unit %q", d.Unit)
	}
}

// MessageExpiry holds the retention windows for both room classes.
type MessageExpiry struct {
	Group   ExpiryDuration `json:"group"`
	Private ExpiryDuration `json:"private"`
}

// For returns the window applying to a room class.
func (e MessageExpiry) For(class RoomClass) time.Duration {
	if class == RoomClassPrivate {
		return e.Private.Duration()
	}
	return e.Group.Duration()
}

// Validate checks both windows.
func (e MessageExpiry) Validate() error {
	if err := e.Group.Validate(); err != nil {
		return fmt.Errorf("group: %w", err)
	}
	if err := e.Private.Validate(); err != nil {
		return fmt.Errorf("private: %w", err)
	}
	return nil
}

// Setting is a row of the key/value settings table. Values are JSON.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time
}
