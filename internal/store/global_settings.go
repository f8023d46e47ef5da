package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/router-for-me/ErasureRelay/internal/models"
	"gorm.io/gorm"
)

// GetGlobalSettings returns the singleton settings row, or nil when none exists.
func (s *GormStore) GetGlobalSettings(ctx context.Context) (*models.GlobalSettings, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var row models.GlobalSettings
	errFind := s.db.WithContext(ctx).Order("id ASC").First(&row).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if errFind != nil {
		return nil, fmt.Errorf("store: get global settings: %w", errFind)
	}
	return &row, nil
}

// UpdateGlobalSettings sets the webhook secret, creating the singleton row when missing.
func (s *GormStore) UpdateGlobalSettings(ctx context.Context, webhookAuthKey string) (*models.GlobalSettings, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var out models.GlobalSettings
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errFind := tx.Order("id ASC").First(&out).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			out = models.GlobalSettings{WebhookAuthKey: webhookAuthKey}
			return tx.Create(&out).Error
		}
		if errFind != nil {
			return errFind
		}
		out.WebhookAuthKey = webhookAuthKey
		return tx.Save(&out).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("store: update global settings: %w", errTx)
	}
	return &out, nil
}
