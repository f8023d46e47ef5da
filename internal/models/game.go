package models

import "time"

// Game is a locally configured experience matched against erasure notifications.
type Game struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Label        string `gorm:"type:varchar(255);not null"` // Display label.
	UniverseID   int64  `gorm:"not null;index"`             // Universe id used in data-store API paths.
	StartPlaceID int64  `gorm:"not null;uniqueIndex"`       // Place id carried by erasure notifications.

	APIKeyID        uint64           `gorm:"not null;index"`       // Data-store API key reference.
	DataStoreAPIKey *DataStoreAPIKey `gorm:"foreignKey:APIKeyID"` // Data-store API key.

	Rules []Rule `gorm:"foreignKey:GameID"` // Deletion rules for this game.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
