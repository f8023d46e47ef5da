package erasure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/router-for-me/ErasureRelay/internal/datastore"
	"github.com/router-for-me/ErasureRelay/internal/db"
	"github.com/router-for-me/ErasureRelay/internal/models"
	"github.com/router-for-me/ErasureRelay/internal/store"
	"gorm.io/gorm"
)

const erasureBody = `{"EventType":"RightToErasureRequest","EventPayload":{"UserId":42,"GameIds":[999]}}`

type deleteCall struct {
	Path   string
	Query  map[string]string
	APIKey string
}

type fakeDataStore struct {
	mu     sync.Mutex
	calls  []deleteCall
	status func(r *http.Request) int
	srv    *httptest.Server
}

func newFakeDataStore(t *testing.T, status func(r *http.Request) int) *fakeDataStore {
	t.Helper()
	f := &fakeDataStore{status: status}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := map[string]string{}
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		f.mu.Lock()
		f.calls = append(f.calls, deleteCall{Path: r.URL.Path, Query: query, APIKey: r.Header.Get("x-api-key")})
		f.mu.Unlock()
		code := http.StatusNoContent
		if f.status != nil {
			code = f.status(r)
		}
		w.WriteHeader(code)
		if code >= 400 {
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeDataStore) Calls() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]deleteCall(nil), f.calls...)
}

func (f *fakeDataStore) Client() *datastore.Client {
	return datastore.NewClient(f.srv.URL, f.srv.Client(), time.Second)
}

func setupStore(t *testing.T) *store.GormStore {
	t.Helper()
	dsn := fmt.Sprintf("file:erasure_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return store.NewGormStore(conn)
}

func seedGame(t *testing.T, s *store.GormStore, startPlaceID int64, patterns ...string) (*models.Game, []*models.Rule) {
	t.Helper()
	ctx := context.Background()
	key, errKey := s.CreateAPIKey(ctx, fmt.Sprintf("key-%d", startPlaceID), "secret-key")
	if errKey != nil {
		t.Fatalf("create api key: %v", errKey)
	}
	game, errGame := s.CreateGame(ctx, store.GameInput{Label: fmt.Sprintf("Game %d", startPlaceID), UniverseID: 111, StartPlaceID: startPlaceID, APIKeyID: key.ID})
	if errGame != nil {
		t.Fatalf("create game: %v", errGame)
	}
	rules := make([]*models.Rule, 0, len(patterns))
	for i, pattern := range patterns {
		rule, errRule := s.CreateRule(ctx, store.RuleInput{
			GameID:        game.ID,
			Label:         fmt.Sprintf("rule-%d", i),
			DatastoreName: "PlayerData",
			DatastoreType: models.DatastoreTypeStandard,
			KeyPattern:    pattern,
		})
		if errRule != nil {
			t.Fatalf("create rule: %v", errRule)
		}
		rules = append(rules, rule)
	}
	return game, rules
}

func countRows(t *testing.T, s *store.GormStore, model any) int64 {
	t.Helper()
	var n int64
	if err := s.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestProcessEndToEndErasure(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	if _, err := s.UpdateGlobalSettings(ctx, "abc123"); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	game, rules := seedGame(t, s, 999, "user_{playerId}_save")
	fake := newFakeDataStore(t, nil)
	p := NewProcessor(s, fake.Client(), nil)

	body := []byte(erasureBody)
	report, err := p.Process(ctx, body, SignatureHeader("abc123", time.Now().Unix(), body))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Skipped || report.UserID != "42" || len(report.Games) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}

	calls := fake.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected one delete call, got %d", len(calls))
	}
	call := calls[0]
	if call.Path != "/datastores/v1/universes/111/standard-datastores/datastore/entries/entry" {
		t.Fatalf("unexpected path %s", call.Path)
	}
	if call.Query["entryKey"] != "user_42_save" || call.Query["scope"] != "global" || call.Query["datastoreName"] != "PlayerData" {
		t.Fatalf("unexpected query %+v", call.Query)
	}
	if call.APIKey != "secret-key" {
		t.Fatalf("expected api key header, got %q", call.APIKey)
	}

	histories, err := s.ListHistories(ctx, store.HistoryFilter{UserID: "42"})
	if err != nil {
		t.Fatalf("list histories: %v", err)
	}
	if len(histories) != 1 || histories[0].GameID != game.ID || histories[0].InvocationID != report.InvocationID {
		t.Fatalf("unexpected histories: %+v", histories)
	}
	applied, err := s.GetHistoryRules(ctx, histories[0].ID)
	if err != nil {
		t.Fatalf("history rules: %v", err)
	}
	if len(applied) != 1 || applied[0].RuleID != rules[0].ID {
		t.Fatalf("unexpected applied rules: %+v", applied)
	}
	if n := countRows(t, s, &models.ErrorLog{}); n != 0 {
		t.Fatalf("expected no error logs, got %d", n)
	}
}

func TestProcessNonErasureEvent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	if _, err := s.UpdateGlobalSettings(ctx, "abc123"); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	seedGame(t, s, 999, "user_{playerId}_save")
	fake := newFakeDataStore(t, nil)
	p := NewProcessor(s, fake.Client(), nil)

	body := []byte(strings.Replace(erasureBody, "RightToErasureRequest", "Other", 1))
	report, err := p.Process(ctx, body, SignatureHeader("abc123", 1, body))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !report.Skipped || report.EventType != "Other" {
		t.Fatalf("expected skipped report, got %+v", report)
	}
	if len(fake.Calls()) != 0 {
		t.Fatalf("expected no delete calls")
	}
	if n := countRows(t, s, &models.History{}); n != 0 {
		t.Fatalf("expected no histories, got %d", n)
	}
}

func TestProcessRejectsBadSignatureWithoutSideEffects(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	if _, err := s.UpdateGlobalSettings(ctx, "abc123"); err != nil {
		t.Fatalf("set secret: %v", err)
	}
	seedGame(t, s, 999, "user_{playerId}_save")
	fake := newFakeDataStore(t, nil)
	p := NewProcessor(s, fake.Client(), nil)

	body := []byte(erasureBody)
	header := SignatureHeader("abc123", 1, body)
	tampered := []byte(strings.Replace(erasureBody, "42", "43", 1))
	if _, err := p.Process(ctx, tampered, header); !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
	if _, err := p.Process(ctx, body, ""); !errors.Is(err, ErrAuthenticationFailure) {
		t.Fatalf("expected authentication failure without header, got %v", err)
	}
	if len(fake.Calls()) != 0 {
		t.Fatalf("expected no delete calls")
	}
	if n := countRows(t, s, &models.History{}) + countRows(t, s, &models.ErrorLog{}); n != 0 {
		t.Fatalf("expected no store writes, got %d rows", n)
	}
}

func TestProcessWithoutSecretAcceptsUnsigned(t *testing.T) {
	s := setupStore(t)
	seedGame(t, s, 999, "user_{playerId}_save")
	fake := newFakeDataStore(t, nil)
	p := NewProcessor(s, fake.Client(), nil)

	if _, err := p.Process(context.Background(), []byte(erasureBody), ""); err != nil {
		t.Fatalf("expected accept, got %v", err)
	}
	if len(fake.Calls()) != 1 {
		t.Fatalf("expected one delete call, got %d", len(fake.Calls()))
	}
}

func TestProcessMalformedPayload(t *testing.T) {
	s := setupStore(t)
	p := NewProcessor(s, newFakeDataStore(t, nil).Client(), nil)
	if _, err := p.Process(context.Background(), []byte(`{"EventType":"RightToErasureRequest"}`), ""); !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("expected malformed payload, got %v", err)
	}
}

func TestProcessUnknownGamesContinue(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedGame(t, s, 999, "user_{playerId}_save")
	fake := newFakeDataStore(t, nil)
	p := NewProcessor(s, fake.Client(), nil)

	body := []byte(`{"EventType":"RightToErasureRequest","EventPayload":{"UserId":42,"GameIds":[1,999,2,1]}}`)
	report, err := p.Process(ctx, body, "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(report.Games) != 3 {
		t.Fatalf("expected three distinct games, got %+v", report.Games)
	}
	if report.Games[1].Status != GameStatusProcessed || report.Games[0].Status != GameStatusUnknown {
		t.Fatalf("unexpected statuses: %+v", report.Games)
	}
	if len(fake.Calls()) != 1 {
		t.Fatalf("expected one delete call, got %d", len(fake.Calls()))
	}

	logs, err := s.ListErrorLogs(ctx, store.ErrorLogFilter{Kind: KindUnknownGame})
	if err != nil {
		t.Fatalf("list error logs: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected one diagnostic per unmatched id, got %d", len(logs))
	}
	seen := map[string]bool{}
	for _, row := range logs {
		seen[row.ExternalGameID] = true
		if row.GameID != nil {
			t.Fatalf("unknown game diagnostic should not carry a game id: %+v", row)
		}
	}
	if !seen["1"] || !seen["2"] {
		t.Fatalf("unexpected external ids: %+v", seen)
	}
}

func TestProcessNoRulesCreatesNoHistory(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	game, _ := seedGame(t, s, 999)
	fake := newFakeDataStore(t, nil)
	p := NewProcessor(s, fake.Client(), nil)

	report, err := p.Process(ctx, []byte(erasureBody), "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Games[0].Status != GameStatusNoRules {
		t.Fatalf("expected no_rules status, got %+v", report.Games[0])
	}
	if n := countRows(t, s, &models.History{}); n != 0 {
		t.Fatalf("expected no histories, got %d", n)
	}
	logs, err := s.ListErrorLogs(ctx, store.ErrorLogFilter{GameID: game.ID})
	if err != nil {
		t.Fatalf("list error logs: %v", err)
	}
	if len(logs) != 1 || logs[0].Kind != KindNoRulesConfigured {
		t.Fatalf("expected a no_rules diagnostic, got %+v", logs)
	}
}

func TestProcessNotFoundCountsAsApplied(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedGame(t, s, 999, "user_{playerId}_save")
	fake := newFakeDataStore(t, func(*http.Request) int { return http.StatusNotFound })
	p := NewProcessor(s, fake.Client(), nil)

	report, err := p.Process(ctx, []byte(erasureBody), "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if got := report.Games[0].Rules[0].Outcome; got != OutcomeAlreadyAbsent {
		t.Fatalf("expected already_absent, got %s", got)
	}
	if n := countRows(t, s, &models.HistoryRule{}); n != 1 {
		t.Fatalf("expected one history rule, got %d", n)
	}
	if n := countRows(t, s, &models.ErrorLog{}); n != 0 {
		t.Fatalf("expected no error logs, got %d", n)
	}
}

func TestProcessUpstreamFailureIsContained(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	game, rules := seedGame(t, s, 999, "user_{playerId}_save", "inventory_{playerId}")
	fake := newFakeDataStore(t, func(r *http.Request) int {
		if strings.HasPrefix(r.URL.Query().Get("entryKey"), "user_") {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	})
	p := NewProcessor(s, fake.Client(), nil)

	report, err := p.Process(ctx, []byte(erasureBody), "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	results := report.Games[0].Rules
	if len(results) != 2 || results[0].Outcome != OutcomeFailed || results[1].Outcome != OutcomeDeleted {
		t.Fatalf("unexpected results: %+v", results)
	}
	var statusErr *datastore.StatusError
	if !errors.As(results[0].Err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected status error, got %v", results[0].Err)
	}
	if applied, failed := report.Counts(); applied != 1 || failed != 1 {
		t.Fatalf("expected 1 applied and 1 failed, got %d/%d", applied, failed)
	}

	histories, err := s.ListHistories(ctx, store.HistoryFilter{GameID: game.ID})
	if err != nil || len(histories) != 1 {
		t.Fatalf("expected one history, got %v %v", histories, err)
	}
	applied, err := s.GetHistoryRules(ctx, histories[0].ID)
	if err != nil {
		t.Fatalf("history rules: %v", err)
	}
	if len(applied) != 1 || applied[0].RuleID != rules[1].ID {
		t.Fatalf("expected only the second rule applied, got %+v", applied)
	}

	logs, err := s.ListErrorLogs(ctx, store.ErrorLogFilter{Kind: KindUpstreamDeleteFailure})
	if err != nil {
		t.Fatalf("list error logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one error log, got %d", len(logs))
	}
	if !strings.Contains(logs[0].Error, game.Label) || !strings.Contains(logs[0].Error, "user_42_save") {
		t.Fatalf("error log should carry game label and key: %s", logs[0].Error)
	}
	if !strings.Contains(string(logs[0].Context), `"status":500`) {
		t.Fatalf("error log context should carry upstream status: %s", logs[0].Context)
	}
}

func TestProcessTemplateErrorSkipsRule(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedGame(t, s, 999, "user_{name}", "user_{playerId}")
	fake := newFakeDataStore(t, nil)
	p := NewProcessor(s, fake.Client(), nil)

	report, err := p.Process(ctx, []byte(erasureBody), "")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if report.Games[0].Rules[0].Outcome != OutcomeInvalidRule {
		t.Fatalf("expected invalid rule outcome, got %+v", report.Games[0].Rules[0])
	}
	if len(fake.Calls()) != 1 {
		t.Fatalf("expected only the valid rule to be executed, got %d calls", len(fake.Calls()))
	}
	logs, err := s.ListErrorLogs(ctx, store.ErrorLogFilter{Kind: KindTemplateSyntax})
	if err != nil || len(logs) != 1 {
		t.Fatalf("expected one template diagnostic, got %v %v", logs, err)
	}
}

func TestProcessMultipleRulesShareOneHistory(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedGame(t, s, 999, "a_{playerId}", "b_{playerId}", "c_{playerId}")
	p := NewProcessor(s, newFakeDataStore(t, nil).Client(), nil)

	if _, err := p.Process(ctx, []byte(erasureBody), ""); err != nil {
		t.Fatalf("process: %v", err)
	}
	if n := countRows(t, s, &models.History{}); n != 1 {
		t.Fatalf("expected one history, got %d", n)
	}
	if n := countRows(t, s, &models.HistoryRule{}); n != 3 {
		t.Fatalf("expected three history rules, got %d", n)
	}

	// Redelivery creates a second history row rather than failing.
	if _, err := p.Process(ctx, []byte(erasureBody), ""); err != nil {
		t.Fatalf("process redelivery: %v", err)
	}
	if n := countRows(t, s, &models.History{}); n != 2 {
		t.Fatalf("expected two histories after redelivery, got %d", n)
	}
}
