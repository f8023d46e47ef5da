package models

import "time"

// GlobalSettings is the singleton row holding the webhook secret.
// An empty WebhookAuthKey disables signature verification.
type GlobalSettings struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"` // Primary key.
	WebhookAuthKey string    `gorm:"type:text;not null"`       // Shared HMAC secret.
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime"`  // Last update timestamp.
}
