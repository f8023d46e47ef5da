package models

import "time"

// DataStoreAPIKey stores an Open Cloud API key used to call the data-store API.
type DataStoreAPIKey struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Label  string `gorm:"type:varchar(255);not null;uniqueIndex"` // Display label.
	APIKey string `gorm:"type:text;not null"`                     // Secret sent as x-api-key.

	Games []Game `gorm:"foreignKey:APIKeyID"` // Games using this key.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName pins the table name for data-store API keys.
func (DataStoreAPIKey) TableName() string { return "datastore_api_keys" }
