package db

import (
	"fmt"

	"github.com/router-for-me/ErasureRelay/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates all tables used by the relay.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.DataStoreAPIKey{},
		&models.Game{},
		&models.Rule{},
		&models.History{},
		&models.HistoryRule{},
		&models.ErrorLog{},
		&models.GlobalSettings{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
