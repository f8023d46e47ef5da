package erasure

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/router-for-me/ErasureRelay/internal/datastore"
	"github.com/router-for-me/ErasureRelay/internal/metrics"
	"github.com/router-for-me/ErasureRelay/internal/models"
	log "github.com/sirupsen/logrus"
)

// Store is everything the pipeline reads from and writes to.
type Store interface {
	RuleSource
	AuditStore
	GetGlobalSettings(ctx context.Context) (*models.GlobalSettings, error)
	GetGames(ctx context.Context) ([]models.Game, error)
}

// Game statuses reported per external id.
const (
	GameStatusProcessed       = "processed"
	GameStatusUnknown         = "unknown_game"
	GameStatusNoRules         = "no_rules"
	GameStatusRuleLookupError = "rule_lookup_failed"
)

// GameReport summarizes one distinct external game id.
type GameReport struct {
	ExternalGameID string
	GameID         uint64
	GameLabel      string
	Status         string
	Rules          []RuleResult
}

// Report summarizes one webhook delivery.
type Report struct {
	InvocationID string
	EventType    string
	Skipped      bool
	UserID       string
	Games        []GameReport
}

// Counts returns the number of applied and failed rules.
func (r Report) Counts() (applied, failed int) {
	for _, game := range r.Games {
		for _, rule := range game.Rules {
			if rule.Succeeded() {
				applied++
			} else {
				failed++
			}
		}
	}
	return applied, failed
}

// Processor runs the full pipeline for one delivery at a time per call.
type Processor struct {
	store    Store
	resolver *Resolver
	executor *Executor
	metrics  *metrics.Metrics
	newID    func() string
}

func NewProcessor(s Store, client Deleter, m *metrics.Metrics) *Processor {
	return &Processor{
		store:    s,
		resolver: NewResolver(s),
		executor: NewExecutor(client, m),
		metrics:  m,
		newID:    uuid.NewString,
	}
}

// Process verifies, parses and executes a delivery. Only ErrAuthenticationFailure,
// ErrMalformedPayload and store failures before any deletion are returned as errors;
// everything later is reported in the Report and the error log.
func (p *Processor) Process(ctx context.Context, body []byte, signatureHeader string) (Report, error) {
	if p == nil || p.store == nil {
		return Report{}, errors.New("erasure: processor not initialized")
	}
	report := Report{InvocationID: p.newID()}
	logger := log.WithField("invocation_id", report.InvocationID)

	settings, errSettings := p.store.GetGlobalSettings(ctx)
	if errSettings != nil {
		p.metrics.ObserveWebhook("error")
		return report, fmt.Errorf("erasure: load global settings: %w", errSettings)
	}
	secret := ""
	if settings != nil {
		secret = settings.WebhookAuthKey
	}
	if errVerify := VerifySignature(body, signatureHeader, secret); errVerify != nil {
		p.metrics.ObserveWebhook("unauthorized")
		logger.Warnf("erasure: rejected delivery: %v", errVerify)
		return report, errVerify
	}

	notification, errParse := ParsePayload(body)
	if errParse != nil {
		p.metrics.ObserveWebhook("malformed")
		logger.Warnf("erasure: rejected delivery: %v", errParse)
		return report, errParse
	}
	report.EventType = notification.EventType
	if !notification.Erasure {
		report.Skipped = true
		p.metrics.ObserveWebhook("skipped")
		logger.Debugf("erasure: ignoring event type %q", notification.EventType)
		return report, nil
	}
	report.UserID = notification.UserID

	games, errGames := p.store.GetGames(ctx)
	if errGames != nil {
		p.metrics.ObserveWebhook("error")
		return report, fmt.Errorf("erasure: load games: %w", errGames)
	}

	recorder := NewRecorder(p.store, report.InvocationID, p.metrics)
	seen := make(map[string]struct{}, len(notification.GameIDs))
	for _, externalID := range notification.GameIDs {
		if _, dup := seen[externalID]; dup {
			continue
		}
		seen[externalID] = struct{}{}
		report.Games = append(report.Games, p.processGame(ctx, recorder, notification.UserID, externalID, games))
	}

	applied, failed := report.Counts()
	logger.WithFields(log.Fields{
		"user_id": report.UserID,
		"games":   len(report.Games),
		"applied": applied,
		"failed":  failed,
	}).Info("erasure: delivery processed")
	p.metrics.ObserveWebhook("accepted")
	return report, nil
}

func (p *Processor) processGame(ctx context.Context, recorder *Recorder, userID, externalID string, games []models.Game) GameReport {
	out := GameReport{ExternalGameID: externalID}
	game, rules, err := p.resolver.Resolve(ctx, externalID, games)
	if err != nil {
		diag := Diagnostic{ExternalGameID: externalID, Message: err.Error()}
		switch {
		case errors.Is(err, ErrUnknownGame):
			out.Status = GameStatusUnknown
			diag.Kind = KindUnknownGame
			diag.Message = fmt.Sprintf("no configured game matches external id %s", externalID)
		case errors.Is(err, ErrNoRulesConfigured):
			out.Status = GameStatusNoRules
			diag.Kind = KindNoRulesConfigured
			diag.Message = fmt.Sprintf("game %q has no rules configured", game.Label)
		default:
			out.Status = GameStatusRuleLookupError
			diag.Kind = KindRuleLookupFailure
		}
		if game.ID != 0 {
			out.GameID, out.GameLabel = game.ID, game.Label
			gid := game.ID
			diag.GameID = &gid
		}
		_ = recorder.RecordDiagnostic(ctx, diag)
		return out
	}

	out.GameID, out.GameLabel, out.Status = game.ID, game.Label, GameStatusProcessed
	for _, rule := range rules {
		result := p.executor.ExecuteRule(ctx, userID, game, rule)
		out.Rules = append(out.Rules, result)
		if result.Succeeded() {
			_ = recorder.RecordSuccess(ctx, userID, game.ID, rule.ID)
			continue
		}
		_ = recorder.RecordDiagnostic(ctx, failureDiagnostic(game, externalID, result))
	}
	return out
}

func failureDiagnostic(game models.Game, externalID string, result RuleResult) Diagnostic {
	gid := game.ID
	diagCtx := map[string]any{
		"game_label":     game.Label,
		"universe_id":    game.UniverseID,
		"rule_id":        result.RuleID,
		"rule_label":     result.RuleLabel,
		"datastore_name": result.DatastoreName,
		"datastore_type": string(result.DatastoreType),
		"scope":          result.Scope,
		"entry_key":      result.EntryKey,
	}
	kind := KindUpstreamDeleteFailure
	if errors.Is(result.Err, ErrTemplateSyntax) {
		kind = KindTemplateSyntax
	}
	var statusErr *datastore.StatusError
	if errors.As(result.Err, &statusErr) {
		diagCtx["status"] = statusErr.StatusCode
		diagCtx["body"] = statusErr.Body
	}
	return Diagnostic{
		GameID:         &gid,
		ExternalGameID: externalID,
		Kind:           kind,
		Message: fmt.Sprintf("rule %q of game %q failed for datastore %q key %q: %v",
			result.RuleLabel, game.Label, result.DatastoreName, result.EntryKey, result.Err),
		Context: diagCtx,
	}
}
