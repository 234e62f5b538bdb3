package model

import "time"

const (
	EventUserRegistered     = "user.registered"
	EventUserLoginSucceeded = "user.login_succeeded"
	EventUserLoginFailed    = "user.login_failed"
)

// AuthEvent is one audit record of a registration or login attempt.
type AuthEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Type       string    `gorm:"size:32;not null;index" json:"type"`
	UserID     *uint     `gorm:"index" json:"userId,omitempty"`
	Email      string    `gorm:"size:128;not null;index" json:"email"`
	RemoteAddr string    `gorm:"size:64" json:"remoteAddr,omitempty"`
	OccurredAt time.Time `gorm:"not null" json:"occurredAt"`
}
