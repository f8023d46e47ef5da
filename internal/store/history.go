package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/router-for-me/ErasureRelay/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// HistoryInput carries the fields needed to create a history row.
type HistoryInput struct {
	InvocationID string
	UserID       string
	GameID       uint64
	RuleIDs      []uint64
}

// CreateHistory inserts a history row and its rule links in one transaction.
// Every referenced rule must exist; otherwise a *DanglingRuleReferenceError is returned.
func (s *GormStore) CreateHistory(ctx context.Context, in HistoryInput) (*models.History, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID := strings.TrimSpace(in.UserID)
	ruleIDs := uniqueIDs(in.RuleIDs)
	if userID == "" || in.GameID == 0 || len(ruleIDs) == 0 {
		return nil, fmt.Errorf("%w: user id, game id and rule ids are required", ErrInvalidInput)
	}

	var out models.History
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if errFind := tx.Select("id").First(&game, "id = ?", in.GameID).Error; errFind != nil {
			return notFound(errFind, fmt.Sprintf("game %d", in.GameID))
		}
		if errCheck := checkRulesExist(tx, ruleIDs); errCheck != nil {
			return errCheck
		}
		out = models.History{
			InvocationID: in.InvocationID,
			UserID:       userID,
			GameID:       in.GameID,
		}
		if errCreate := tx.Create(&out).Error; errCreate != nil {
			return errCreate
		}
		links := make([]models.HistoryRule, 0, len(ruleIDs))
		for _, ruleID := range ruleIDs {
			links = append(links, models.HistoryRule{HistoryID: out.ID, RuleID: ruleID})
		}
		if errLinks := tx.Create(&links).Error; errLinks != nil {
			return errLinks
		}
		out.Rules = links
		return nil
	})
	if errTx != nil {
		return nil, fmt.Errorf("store: create history: %w", errTx)
	}
	return &out, nil
}

// AppendHistoryRules links more rules to an existing history row. Links that already
// exist are left untouched.
func (s *GormStore) AppendHistoryRules(ctx context.Context, historyID uint64, ruleIDs []uint64) error {
	if err := s.ready(); err != nil {
		return err
	}
	ids := uniqueIDs(ruleIDs)
	if historyID == 0 || len(ids) == 0 {
		return fmt.Errorf("%w: history id and rule ids are required", ErrInvalidInput)
	}
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var history models.History
		if errFind := tx.Select("id").First(&history, "id = ?", historyID).Error; errFind != nil {
			return notFound(errFind, fmt.Sprintf("history %d", historyID))
		}
		if errCheck := checkRulesExist(tx, ids); errCheck != nil {
			return errCheck
		}
		links := make([]models.HistoryRule, 0, len(ids))
		for _, ruleID := range ids {
			links = append(links, models.HistoryRule{HistoryID: historyID, RuleID: ruleID})
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	})
	if errTx != nil {
		return fmt.Errorf("store: append history rules: %w", errTx)
	}
	return nil
}

func checkRulesExist(tx *gorm.DB, ruleIDs []uint64) error {
	var found []uint64
	if errFind := tx.Model(&models.Rule{}).Where("id IN ?", ruleIDs).Pluck("id", &found).Error; errFind != nil {
		return errFind
	}
	present := make(map[uint64]struct{}, len(found))
	for _, id := range found {
		present[id] = struct{}{}
	}
	var missing []uint64
	for _, id := range ruleIDs {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &DanglingRuleReferenceError{Missing: missing}
	}
	return nil
}

// HistoryFilter narrows ListHistories.
type HistoryFilter struct {
	UserID string
	GameID uint64
	Limit  int
}

// ListHistories returns histories newest first.
func (s *GormStore) ListHistories(ctx context.Context, filter HistoryFilter) ([]models.History, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.History{}).Preload("Game").Preload("Rules")
	if userID := strings.TrimSpace(filter.UserID); userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if filter.GameID != 0 {
		q = q.Where("game_id = ?", filter.GameID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var rows []models.History
	if errFind := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list histories: %w", errFind)
	}
	return rows, nil
}

// GetHistory returns a single history row with its game and rule links.
func (s *GormStore) GetHistory(ctx context.Context, id uint64) (*models.History, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var row models.History
	if errFind := s.db.WithContext(ctx).Preload("Game").Preload("Rules").First(&row, "id = ?", id).Error; errFind != nil {
		return nil, fmt.Errorf("store: get history: %w", notFound(errFind, fmt.Sprintf("history %d", id)))
	}
	return &row, nil
}

// AppliedRule pairs a history link with the rule it references. Rule is nil when the
// rule has since been deleted.
type AppliedRule struct {
	RuleID uint64
	Rule   *models.Rule
}

// GetHistoryRules resolves the rules linked to a history row.
func (s *GormStore) GetHistoryRules(ctx context.Context, historyID uint64) ([]AppliedRule, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var links []models.HistoryRule
	if errFind := s.db.WithContext(ctx).Where("history_id = ?", historyID).Order("rule_id ASC").Find(&links).Error; errFind != nil {
		return nil, fmt.Errorf("store: get history rules: %w", errFind)
	}
	if len(links) == 0 {
		return []AppliedRule{}, nil
	}
	ids := make([]uint64, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.RuleID)
	}
	var rules []models.Rule
	if errFind := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rules).Error; errFind != nil {
		return nil, fmt.Errorf("store: get history rules: %w", errFind)
	}
	byID := make(map[uint64]*models.Rule, len(rules))
	for i := range rules {
		byID[rules[i].ID] = &rules[i]
	}
	out := make([]AppliedRule, 0, len(links))
	for _, link := range links {
		out = append(out, AppliedRule{RuleID: link.RuleID, Rule: byID[link.RuleID]})
	}
	return out, nil
}
