package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/router-for-me/ErasureRelay/internal/db"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"gorm.io/gorm"
)

// ListAPIKeys returns all data-store API keys with the games that use them.
func (s *GormStore) ListAPIKeys(ctx context.Context) ([]models.DataStoreAPIKey, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []models.DataStoreAPIKey
	if errFind := s.db.WithContext(ctx).Preload("Games").Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list api keys: %w", errFind)
	}
	return rows, nil
}

// CreateAPIKey inserts a data-store API key.
func (s *GormStore) CreateAPIKey(ctx context.Context, label, apiKey string) (*models.DataStoreAPIKey, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	apiKey = strings.TrimSpace(apiKey)
	if label == "" || apiKey == "" {
		return nil, fmt.Errorf("%w: label and api key are required", ErrInvalidInput)
	}
	row := models.DataStoreAPIKey{Label: label, APIKey: apiKey}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("store: create api key: %w", errCreate)
	}
	return &row, nil
}

// DeleteAPIKey removes an API key unless a game still references it.
func (s *GormStore) DeleteAPIKey(ctx context.Context, id uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.Game{}).Where("api_key_id = ?", id).Count(&count).Error; errCount != nil {
			return fmt.Errorf("store: count games: %w", errCount)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d game(s) use api key %d", ErrInUse, count, id)
		}
		res := tx.Delete(&models.DataStoreAPIKey{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("store: delete api key: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: api key %d", ErrNotFound, id)
		}
		return nil
	})
}

// GetGames returns every configured game with its API key, ordered by id.
func (s *GormStore) GetGames(ctx context.Context) ([]models.Game, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []models.Game
	if errFind := s.db.WithContext(ctx).
		Preload("DataStoreAPIKey").
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: get games: %w", errFind)
	}
	return rows, nil
}

// SearchGames returns games whose label contains keyword, case-insensitively.
func (s *GormStore) SearchGames(ctx context.Context, keyword string) ([]models.Game, error) {
	if strings.TrimSpace(keyword) == "" {
		return s.GetGames(ctx)
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	var rows []models.Game
	if errFind := s.db.WithContext(ctx).
		Preload("DataStoreAPIKey").
		Where(db.CaseInsensitiveLikeExpr(s.db, "label"), db.LikePattern(s.db, keyword)).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: search games: %w", errFind)
	}
	return rows, nil
}

// GameInput carries the fields needed to create a game.
type GameInput struct {
	Label        string
	UniverseID   int64
	StartPlaceID int64
	APIKeyID     uint64
}

// CreateGame inserts a game after checking that its API key exists.
func (s *GormStore) CreateGame(ctx context.Context, in GameInput) (*models.Game, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	label := strings.TrimSpace(in.Label)
	if label == "" || in.UniverseID <= 0 || in.StartPlaceID <= 0 || in.APIKeyID == 0 {
		return nil, fmt.Errorf("%w: label, universe id, start place id and api key id are required", ErrInvalidInput)
	}
	row := models.Game{
		Label:        label,
		UniverseID:   in.UniverseID,
		StartPlaceID: in.StartPlaceID,
		APIKeyID:     in.APIKeyID,
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var key models.DataStoreAPIKey
		if errFind := tx.Select("id").First(&key, "id = ?", in.APIKeyID).Error; errFind != nil {
			return notFound(errFind, fmt.Sprintf("api key %d", in.APIKeyID))
		}
		return tx.Create(&row).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("store: create game: %w", errTx)
	}
	return &row, nil
}

// DeleteGame removes a game unless rules or histories still reference it.
func (s *GormStore) DeleteGame(ctx context.Context, id uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.Rule{}).Where("game_id = ?", id).Count(&count).Error; errCount != nil {
			return fmt.Errorf("store: count rules: %w", errCount)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d rule(s) belong to game %d", ErrInUse, count, id)
		}
		if errCount := tx.Model(&models.History{}).Where("game_id = ?", id).Count(&count).Error; errCount != nil {
			return fmt.Errorf("store: count histories: %w", errCount)
		}
		if count > 0 {
			return fmt.Errorf("%w: %d history row(s) reference game %d", ErrInUse, count, id)
		}
		res := tx.Delete(&models.Game{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("store: delete game: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: game %d", ErrNotFound, id)
		}
		return nil
	})
}

// GetRules returns the rules of a game ordered by id. A zero gameID returns all rules.
func (s *GormStore) GetRules(ctx context.Context, gameID uint64) ([]models.Rule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.Rule{}).Preload("Game")
	if gameID != 0 {
		q = q.Where("game_id = ?", gameID)
	}
	var rows []models.Rule
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: get rules: %w", errFind)
	}
	return rows, nil
}

// RuleInput carries the fields needed to create a rule.
type RuleInput struct {
	GameID        uint64
	Label         string
	DatastoreName string
	DatastoreType models.DatastoreType
	KeyPattern    string
	Scope         string
}

// MissingFields lists the required fields left blank.
func (in RuleInput) MissingFields() []string {
	var missing []string
	if in.GameID == 0 {
		missing = append(missing, "gameId")
	}
	if strings.TrimSpace(in.Label) == "" {
		missing = append(missing, "label")
	}
	if strings.TrimSpace(in.DatastoreName) == "" {
		missing = append(missing, "datastoreName")
	}
	if strings.TrimSpace(string(in.DatastoreType)) == "" {
		missing = append(missing, "datastoreType")
	}
	if strings.TrimSpace(in.KeyPattern) == "" {
		missing = append(missing, "keyPattern")
	}
	return missing
}

// CreateRule inserts a rule for an existing game. Blank scopes become "global".
func (s *GormStore) CreateRule(ctx context.Context, in RuleInput) (*models.Rule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if missing := in.MissingFields(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}
	if !in.DatastoreType.Valid() {
		return nil, fmt.Errorf("%w: unsupported datastore type %q", ErrInvalidInput, in.DatastoreType)
	}
	row := models.Rule{
		GameID:        in.GameID,
		Label:         strings.TrimSpace(in.Label),
		DatastoreName: strings.TrimSpace(in.DatastoreName),
		DatastoreType: in.DatastoreType,
		KeyPattern:    strings.TrimSpace(in.KeyPattern),
		Scope:         models.NormalizeScope(in.Scope),
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if errFind := tx.Select("id").First(&game, "id = ?", in.GameID).Error; errFind != nil {
			return notFound(errFind, fmt.Sprintf("game %d", in.GameID))
		}
		return tx.Create(&row).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("store: create rule: %w", errTx)
	}
	return &row, nil
}

// DeleteRule removes a rule. Histories keep their join rows.
func (s *GormStore) DeleteRule(ctx context.Context, id uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&models.Rule{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("store: delete rule: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: rule %d", ErrNotFound, id)
	}
	return nil
}
