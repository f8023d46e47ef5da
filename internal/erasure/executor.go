package erasure

import (
	"context"
	"errors"
	"time"

	"github.com/router-for-me/ErasureRelay/internal/datastore"
	"github.com/router-for-me/ErasureRelay/internal/metrics"
	"github.com/router-for-me/ErasureRelay/internal/models"
)

// Outcome classifies one rule execution.
type Outcome string

const (
	OutcomeDeleted       Outcome = "deleted"
	OutcomeAlreadyAbsent Outcome = "already_absent"
	OutcomeFailed        Outcome = "failed"
	OutcomeInvalidRule   Outcome = "invalid_rule"
)

// Deleter removes one data-store entry.
type Deleter interface {
	DeleteEntry(ctx context.Context, req datastore.DeleteEntryRequest) (datastore.Result, error)
}

// RuleResult is the result of applying one rule.
type RuleResult struct {
	RuleID        uint64
	RuleLabel     string
	DatastoreName string
	DatastoreType models.DatastoreType
	Scope         string
	EntryKey      string
	Outcome       Outcome
	StatusCode    int
	Err           error
}

// Succeeded reports whether the rule counts as applied.
func (r RuleResult) Succeeded() bool {
	return r.Outcome == OutcomeDeleted || r.Outcome == OutcomeAlreadyAbsent
}

// Executor applies rules against the data store. Failures never escape; they are
// reported in the RuleResult.
type Executor struct {
	client  Deleter
	metrics *metrics.Metrics
}

func NewExecutor(client Deleter, m *metrics.Metrics) *Executor {
	return &Executor{client: client, metrics: m}
}

// Execute applies rules in order and returns one result per rule.
func (e *Executor) Execute(ctx context.Context, userID string, game models.Game, rules []models.Rule) []RuleResult {
	results := make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, e.ExecuteRule(ctx, userID, game, rule))
	}
	return results
}

// ExecuteRule instantiates rule for userID and issues the delete call.
func (e *Executor) ExecuteRule(ctx context.Context, userID string, game models.Game, rule models.Rule) RuleResult {
	result := RuleResult{
		RuleID:        rule.ID,
		RuleLabel:     rule.Label,
		DatastoreType: rule.DatastoreType,
		Scope:         rule.EffectiveScope(),
	}
	if result.DatastoreType == "" {
		result.DatastoreType = models.DatastoreTypeStandard
	}

	name, errName := InstantiateTemplate(rule.DatastoreName, userID)
	if errName != nil {
		return e.finish(result, OutcomeInvalidRule, errName)
	}
	result.DatastoreName = name
	key, errKey := InstantiateTemplate(rule.KeyPattern, userID)
	if errKey != nil {
		return e.finish(result, OutcomeInvalidRule, errKey)
	}
	result.EntryKey = key

	if e == nil || e.client == nil {
		return e.finish(result, OutcomeFailed, errors.New("erasure: data-store client not configured"))
	}
	apiKey := ""
	if game.DataStoreAPIKey != nil {
		apiKey = game.DataStoreAPIKey.APIKey
	}
	if apiKey == "" {
		return e.finish(result, OutcomeFailed, errors.New("erasure: game has no data-store api key"))
	}

	start := time.Now()
	res, err := e.client.DeleteEntry(ctx, datastore.DeleteEntryRequest{
		UniverseID:    game.UniverseID,
		DatastoreName: name,
		DatastoreType: result.DatastoreType,
		Scope:         result.Scope,
		EntryKey:      key,
		APIKey:        apiKey,
	})
	e.metrics.ObserveDelete(string(result.DatastoreType), time.Since(start))
	result.StatusCode = res.StatusCode
	if err != nil {
		return e.finish(result, OutcomeFailed, err)
	}
	if res.AlreadyAbsent {
		return e.finish(result, OutcomeAlreadyAbsent, nil)
	}
	return e.finish(result, OutcomeDeleted, nil)
}

func (e *Executor) finish(result RuleResult, outcome Outcome, err error) RuleResult {
	result.Outcome = outcome
	result.Err = err
	if e != nil {
		e.metrics.ObserveRule(string(outcome))
	}
	return result
}
