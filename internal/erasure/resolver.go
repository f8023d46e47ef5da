package erasure

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/router-for-me/ErasureRelay/internal/models"
)

var (
	// ErrUnknownGame means no configured game correlates to the external id.
	ErrUnknownGame = errors.New("erasure: unknown game")
	// ErrNoRulesConfigured means the matched game has no rules.
	ErrNoRulesConfigured = errors.New("erasure: no rules configured")
)

// RuleSource loads the rules of one game.
type RuleSource interface {
	GetRules(ctx context.Context, gameID uint64) ([]models.Rule, error)
}

// Resolver maps an external game id to a configured game and its rules.
type Resolver struct {
	rules RuleSource
}

func NewResolver(rules RuleSource) *Resolver {
	return &Resolver{rules: rules}
}

// MatchGame finds the game whose start place id equals externalID.
func MatchGame(externalID string, games []models.Game) (models.Game, bool) {
	placeID, err := strconv.ParseInt(strings.TrimSpace(externalID), 10, 64)
	if err != nil || placeID <= 0 {
		return models.Game{}, false
	}
	for _, game := range games {
		if game.StartPlaceID == placeID {
			return game, true
		}
	}
	return models.Game{}, false
}

// Resolve returns the matched game and its rules ordered by id.
// The returned game is populated even when ErrNoRulesConfigured is returned.
func (r *Resolver) Resolve(ctx context.Context, externalID string, games []models.Game) (models.Game, []models.Rule, error) {
	game, ok := MatchGame(externalID, games)
	if !ok {
		return models.Game{}, nil, fmt.Errorf("%w: %s", ErrUnknownGame, externalID)
	}
	if r == nil || r.rules == nil {
		return game, nil, errors.New("erasure: rule source not configured")
	}
	rules, err := r.rules.GetRules(ctx, game.ID)
	if err != nil {
		return game, nil, fmt.Errorf("erasure: load rules for game %d: %w", game.ID, err)
	}
	if len(rules) == 0 {
		return game, nil, fmt.Errorf("%w: game %d (%s)", ErrNoRulesConfigured, game.ID, game.Label)
	}
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return game, rules, nil
}
