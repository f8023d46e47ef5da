package models

import (
	"time"

	"gorm.io/datatypes"
)

// ErrorLog is an append-only diagnostic entry written by the erasure pipeline.
type ErrorLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GameID *uint64 `gorm:"index"` // Local game, when one was resolved.

	ExternalGameID string `gorm:"type:varchar(64);index"` // Game id as named by the notification.
	InvocationID   string `gorm:"type:varchar(36);index"` // Webhook invocation id.
	Kind           string `gorm:"type:varchar(64);index"` // Diagnostic kind.

	Error   string         `gorm:"type:text;not null"` // Human readable message.
	Context datatypes.JSON `gorm:"type:jsonb"`         // Structured diagnostic fields.

	Timestamp time.Time `gorm:"not null;index"` // When the entry was written.
}
