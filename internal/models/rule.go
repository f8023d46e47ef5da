package models

import (
	"strings"
	"time"
)

// DatastoreType identifies which data-store flavour a rule targets.
type DatastoreType string

// DatastoreType constants.
const (
	// DatastoreTypeStandard targets a standard data store.
	DatastoreTypeStandard DatastoreType = "standard"
	// DatastoreTypeOrdered targets an ordered data store.
	DatastoreTypeOrdered DatastoreType = "ordered"
)

// DefaultScope is the data-store scope used when a rule leaves it blank.
const DefaultScope = "global"

// Valid reports whether the type is one of the supported data-store types.
func (t DatastoreType) Valid() bool {
	return t == DatastoreTypeStandard || t == DatastoreTypeOrdered
}

// Rule describes one data-store entry to delete for a game when a user requests erasure.
type Rule struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GameID uint64 `gorm:"not null;index"`    // Owning game ID.
	Game   *Game  `gorm:"foreignKey:GameID"` // Owning game.

	Label         string        `gorm:"type:varchar(255);not null"` // Display label.
	DatastoreName string        `gorm:"type:text;not null"`         // Data-store name template.
	DatastoreType DatastoreType `gorm:"type:varchar(32);not null"`  // standard or ordered.
	KeyPattern    string        `gorm:"type:text;not null"`         // Entry key template.
	Scope         string        `gorm:"type:varchar(255);not null"` // Data-store scope.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// EffectiveScope returns the rule scope, falling back to DefaultScope when blank.
func (r *Rule) EffectiveScope() string {
	if r == nil {
		return DefaultScope
	}
	return NormalizeScope(r.Scope)
}

// NormalizeScope trims a scope and substitutes DefaultScope for blank values.
func NormalizeScope(scope string) string {
	trimmed := strings.TrimSpace(scope)
	if trimmed == "" {
		return DefaultScope
	}
	return trimmed
}
