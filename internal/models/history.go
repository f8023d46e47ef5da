package models

import "time"

// History records that rules were applied for a user in a game.
type History struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	InvocationID string `gorm:"type:varchar(36);not null;index"` // Webhook invocation that created the row.
	UserID       string `gorm:"type:varchar(64);not null;index"` // Subject user id.

	GameID uint64 `gorm:"not null;index"`    // Game the rules belong to.
	Game   *Game  `gorm:"foreignKey:GameID"` // Game the rules belong to.

	Rules []HistoryRule `gorm:"foreignKey:HistoryID"` // Applied rules.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// HistoryRule links a history row to one applied rule. Rows are append-only and
// outlive the rule they reference, so RuleID carries no foreign key constraint.
type HistoryRule struct {
	HistoryID uint64 `gorm:"primaryKey"`       // History reference.
	RuleID    uint64 `gorm:"primaryKey;index"` // Rule reference.
}
