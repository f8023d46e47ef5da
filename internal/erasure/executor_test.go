package erasure

import (
	"context"
	"errors"
	"testing"

	"github.com/router-for-me/ErasureRelay/internal/datastore"
	"github.com/router-for-me/ErasureRelay/internal/models"
)

type stubDeleter struct {
	requests []datastore.DeleteEntryRequest
	result   datastore.Result
	err      error
}

func (s *stubDeleter) DeleteEntry(_ context.Context, req datastore.DeleteEntryRequest) (datastore.Result, error) {
	s.requests = append(s.requests, req)
	return s.result, s.err
}

func testGame() models.Game {
	return models.Game{
		ID:              7,
		Label:           "Obby",
		UniverseID:      111,
		StartPlaceID:    999,
		DataStoreAPIKey: &models.DataStoreAPIKey{ID: 1, APIKey: "k"},
	}
}

func TestExecuteInstantiatesNameAndKey(t *testing.T) {
	deleter := &stubDeleter{result: datastore.Result{StatusCode: 200}}
	e := NewExecutor(deleter, nil)
	rules := []models.Rule{
		{ID: 1, DatastoreName: "Store_{playerId}", DatastoreType: models.DatastoreTypeOrdered, KeyPattern: "{playerId}", Scope: "s"},
		{ID: 2, DatastoreName: "Plain", KeyPattern: "k_{playerId}"},
	}
	results := e.Execute(context.Background(), "42", testGame(), rules)
	if len(results) != 2 {
		t.Fatalf("expected two results, got %d", len(results))
	}
	if len(deleter.requests) != 2 {
		t.Fatalf("expected two requests, got %d", len(deleter.requests))
	}
	first := deleter.requests[0]
	if first.DatastoreName != "Store_42" || first.EntryKey != "42" || first.Scope != "s" || first.DatastoreType != models.DatastoreTypeOrdered {
		t.Fatalf("unexpected first request: %+v", first)
	}
	second := deleter.requests[1]
	if second.Scope != models.DefaultScope || second.DatastoreType != models.DatastoreTypeStandard || second.UniverseID != 111 || second.APIKey != "k" {
		t.Fatalf("unexpected second request: %+v", second)
	}
	for _, res := range results {
		if res.Outcome != OutcomeDeleted || !res.Succeeded() {
			t.Fatalf("expected deleted outcome, got %+v", res)
		}
	}
}

func TestExecuteRuleOutcomes(t *testing.T) {
	rule := models.Rule{ID: 1, DatastoreName: "d", KeyPattern: "k_{playerId}"}

	absent := NewExecutor(&stubDeleter{result: datastore.Result{StatusCode: 404, AlreadyAbsent: true}}, nil)
	if res := absent.ExecuteRule(context.Background(), "42", testGame(), rule); res.Outcome != OutcomeAlreadyAbsent || !res.Succeeded() {
		t.Fatalf("expected already absent success, got %+v", res)
	}

	upstream := &datastore.StatusError{StatusCode: 500, Body: "boom"}
	failing := NewExecutor(&stubDeleter{result: datastore.Result{StatusCode: 500}, err: upstream}, nil)
	res := failing.ExecuteRule(context.Background(), "42", testGame(), rule)
	if res.Outcome != OutcomeFailed || res.Succeeded() || res.StatusCode != 500 || !errors.Is(res.Err, upstream) {
		t.Fatalf("expected failed outcome, got %+v", res)
	}
	if res.EntryKey != "k_42" {
		t.Fatalf("failed result should carry the instantiated key, got %q", res.EntryKey)
	}
}

func TestExecuteRuleWithoutAPIKey(t *testing.T) {
	deleter := &stubDeleter{}
	game := testGame()
	game.DataStoreAPIKey = nil
	res := NewExecutor(deleter, nil).ExecuteRule(context.Background(), "42", game, models.Rule{ID: 1, DatastoreName: "d", KeyPattern: "k"})
	if res.Outcome != OutcomeFailed || res.Err == nil {
		t.Fatalf("expected failure without api key, got %+v", res)
	}
	if len(deleter.requests) != 0 {
		t.Fatalf("expected no request without api key")
	}
}

func TestExecuteRuleTemplateError(t *testing.T) {
	deleter := &stubDeleter{}
	res := NewExecutor(deleter, nil).ExecuteRule(context.Background(), "42", testGame(), models.Rule{ID: 1, DatastoreName: "d", KeyPattern: "{oops}"})
	if res.Outcome != OutcomeInvalidRule || !errors.Is(res.Err, ErrTemplateSyntax) {
		t.Fatalf("expected invalid rule, got %+v", res)
	}
	if len(deleter.requests) != 0 {
		t.Fatalf("expected no request for invalid template")
	}
}
