package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/router-for-me/ErasureRelay/internal/models"
	"gorm.io/datatypes"
)

// ErrorLogInput carries one diagnostic entry.
type ErrorLogInput struct {
	GameID         *uint64
	ExternalGameID string
	InvocationID   string
	Kind           string
	Message        string
	Context        map[string]any
}

// CreateErrorLog appends a diagnostic entry.
func (s *GormStore) CreateErrorLog(ctx context.Context, in ErrorLogInput) (*models.ErrorLog, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: error message is required", ErrInvalidInput)
	}
	row := models.ErrorLog{
		GameID:         in.GameID,
		ExternalGameID: in.ExternalGameID,
		InvocationID:   in.InvocationID,
		Kind:           in.Kind,
		Error:          message,
		Timestamp:      time.Now().UTC(),
	}
	if len(in.Context) > 0 {
		raw, errMarshal := json.Marshal(in.Context)
		if errMarshal != nil {
			return nil, fmt.Errorf("store: marshal error log context: %w", errMarshal)
		}
		row.Context = datatypes.JSON(raw)
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("store: create error log: %w", errCreate)
	}
	return &row, nil
}

// ErrorLogFilter narrows ListErrorLogs.
type ErrorLogFilter struct {
	GameID       uint64
	InvocationID string
	Kind         string
	Limit        int
}

// ListErrorLogs returns diagnostic entries newest first.
func (s *GormStore) ListErrorLogs(ctx context.Context, filter ErrorLogFilter) ([]models.ErrorLog, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.ErrorLog{})
	if filter.GameID != 0 {
		q = q.Where("game_id = ?", filter.GameID)
	}
	if invocationID := strings.TrimSpace(filter.InvocationID); invocationID != "" {
		q = q.Where("invocation_id = ?", invocationID)
	}
	if kind := strings.TrimSpace(filter.Kind); kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []models.ErrorLog
	if errFind := q.Order("timestamp DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list error logs: %w", errFind)
	}
	return rows, nil
}

// DeleteErrorLogsBefore removes up to limit entries older than cutoff and reports how many
// rows were deleted.
func (s *GormStore) DeleteErrorLogsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	res := s.db.WithContext(ctx).Exec(`
		DELETE FROM error_logs
		WHERE id IN (
			SELECT id FROM error_logs
			WHERE timestamp < ?
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, cutoff, limit)
	if res.Error != nil {
		return 0, fmt.Errorf("store: delete error logs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
