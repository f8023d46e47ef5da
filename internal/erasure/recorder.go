package erasure

import (
	"context"
	"errors"
	"fmt"

	"github.com/router-for-me/ErasureRelay/internal/metrics"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"github.com/router-for-me/ErasureRelay/internal/store"
	log "github.com/sirupsen/logrus"
)

// Diagnostic kinds written to the error log.
const (
	KindUnknownGame             = "unknown_game"
	KindNoRulesConfigured       = "no_rules_configured"
	KindRuleLookupFailure       = "rule_lookup_failure"
	KindTemplateSyntax          = "template_syntax"
	KindUpstreamDeleteFailure   = "upstream_delete_failure"
	KindDanglingRuleReference   = "dangling_rule_reference"
	KindAuditPersistenceFailure = "audit_persistence_failure"
)

// AuditStore persists history and error-log rows.
type AuditStore interface {
	CreateHistory(ctx context.Context, in store.HistoryInput) (*models.History, error)
	AppendHistoryRules(ctx context.Context, historyID uint64, ruleIDs []uint64) error
	CreateErrorLog(ctx context.Context, in store.ErrorLogInput) (*models.ErrorLog, error)
}

// Diagnostic is one error-log entry.
type Diagnostic struct {
	GameID         *uint64
	ExternalGameID string
	Kind           string
	Message        string
	Context        map[string]any
}

type historyKey struct {
	userID string
	gameID uint64
}

// Recorder writes the audit trail of one webhook invocation. It is not safe for
// concurrent use.
type Recorder struct {
	store        AuditStore
	invocationID string
	metrics      *metrics.Metrics
	histories    map[historyKey]uint64
}

func NewRecorder(auditStore AuditStore, invocationID string, m *metrics.Metrics) *Recorder {
	return &Recorder{
		store:        auditStore,
		invocationID: invocationID,
		metrics:      m,
		histories:    make(map[historyKey]uint64),
	}
}

// InvocationID returns the id stamped on every row this recorder writes.
func (r *Recorder) InvocationID() string { return r.invocationID }

// RecordSuccess links ruleID to the history row of (userID, gameID), creating the row on
// first use within the invocation. Failures are recorded as diagnostics and returned.
func (r *Recorder) RecordSuccess(ctx context.Context, userID string, gameID, ruleID uint64) error {
	key := historyKey{userID: userID, gameID: gameID}
	var err error
	if historyID, ok := r.histories[key]; ok {
		err = r.store.AppendHistoryRules(ctx, historyID, []uint64{ruleID})
	} else {
		var history *models.History
		history, err = r.store.CreateHistory(ctx, store.HistoryInput{
			InvocationID: r.invocationID,
			UserID:       userID,
			GameID:       gameID,
			RuleIDs:      []uint64{ruleID},
		})
		if err == nil {
			r.histories[key] = history.ID
		}
	}
	if err == nil {
		return nil
	}

	gid := gameID
	diag := Diagnostic{
		GameID:  &gid,
		Kind:    KindAuditPersistenceFailure,
		Message: fmt.Sprintf("record history for user %s rule %d: %v", userID, ruleID, err),
		Context: map[string]any{"user_id": userID, "rule_id": ruleID},
	}
	var dangling *store.DanglingRuleReferenceError
	if errors.As(err, &dangling) {
		diag.Kind = KindDanglingRuleReference
		diag.Context["missing_rule_ids"] = dangling.Missing
	}
	_ = r.RecordDiagnostic(ctx, diag)
	return err
}

// RecordDiagnostic logs d and appends it to the error log.
func (r *Recorder) RecordDiagnostic(ctx context.Context, d Diagnostic) error {
	r.metrics.ObserveDiagnostic(d.Kind)
	fields := log.Fields{
		"invocation_id": r.invocationID,
		"kind":          d.Kind,
	}
	if d.ExternalGameID != "" {
		fields["external_game_id"] = d.ExternalGameID
	}
	if d.GameID != nil {
		fields["game_id"] = *d.GameID
	}
	log.WithFields(fields).Warn(d.Message)

	_, err := r.store.CreateErrorLog(ctx, store.ErrorLogInput{
		GameID:         d.GameID,
		ExternalGameID: d.ExternalGameID,
		InvocationID:   r.invocationID,
		Kind:           d.Kind,
		Message:        d.Message,
		Context:        d.Context,
	})
	if err != nil {
		log.WithFields(fields).Errorf("erasure: persist diagnostic: %v", err)
		r.metrics.ObserveDiagnostic(KindAuditPersistenceFailure)
		return fmt.Errorf("erasure: persist diagnostic: %w", err)
	}
	return nil
}
