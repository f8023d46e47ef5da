package datastore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/router-for-me/ErasureRelay/internal/models"
)

func TestEntryURLStandard(t *testing.T) {
	c := NewClient("https://example.test/", nil, 0)
	got, err := c.EntryURL(DeleteEntryRequest{UniverseID: 111, DatastoreName: "Player Data", EntryKey: "user_42_save"})
	if err != nil {
		t.Fatalf("entry url: %v", err)
	}
	want := "https://example.test/datastores/v1/universes/111/standard-datastores/datastore/entries/entry?datastoreName=Player+Data&entryKey=user_42_save&scope=global"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestEntryURLOrdered(t *testing.T) {
	c := NewClient("https://example.test", nil, 0)
	got, err := c.EntryURL(DeleteEntryRequest{UniverseID: 7, DatastoreName: "Leaders", DatastoreType: models.DatastoreTypeOrdered, Scope: "season/1", EntryKey: "42"})
	if err != nil {
		t.Fatalf("entry url: %v", err)
	}
	want := "https://example.test/ordered-data-stores/v1/universes/7/orderedDataStores/Leaders/scopes/season%2F1/entries/42"
	if got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestEntryURLRejectsBadInput(t *testing.T) {
	c := NewClient("", nil, 0)
	if _, err := c.EntryURL(DeleteEntryRequest{DatastoreName: "a", EntryKey: "b"}); err == nil {
		t.Fatalf("expected error for missing universe")
	}
	if _, err := c.EntryURL(DeleteEntryRequest{UniverseID: 1, DatastoreName: "a", EntryKey: "b", DatastoreType: "memory"}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}

func TestDeleteEntryStatusHandling(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantAbsent bool
		wantErr    bool
	}{
		{name: "ok", status: http.StatusNoContent},
		{name: "not found", status: http.StatusNotFound, wantAbsent: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotKey, gotMethod string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotKey = r.Header.Get("x-api-key")
				gotMethod = r.Method
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"x"}`))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, srv.Client(), time.Second)
			res, err := c.DeleteEntry(context.Background(), DeleteEntryRequest{UniverseID: 1, DatastoreName: "d", EntryKey: "k", APIKey: "secret"})
			if gotMethod != http.MethodDelete {
				t.Fatalf("expected DELETE, got %s", gotMethod)
			}
			if gotKey != "secret" {
				t.Fatalf("expected api key header, got %q", gotKey)
			}
			if res.AlreadyAbsent != tc.wantAbsent {
				t.Fatalf("expected absent=%v, got %v", tc.wantAbsent, res.AlreadyAbsent)
			}
			if tc.wantErr {
				var statusErr *StatusError
				if !errors.As(err, &statusErr) {
					t.Fatalf("expected StatusError, got %v", err)
				}
				if statusErr.StatusCode != tc.status || !strings.Contains(statusErr.Body, "error") {
					t.Fatalf("unexpected status error: %+v", statusErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestDeleteEntryTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client(), 50*time.Millisecond)
	if _, err := c.DeleteEntry(context.Background(), DeleteEntryRequest{UniverseID: 1, DatastoreName: "d", EntryKey: "k", APIKey: "secret"}); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestDeleteEntryRequiresAPIKey(t *testing.T) {
	c := NewClient("", nil, 0)
	if _, err := c.DeleteEntry(context.Background(), DeleteEntryRequest{UniverseID: 1, DatastoreName: "d", EntryKey: "k"}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestSummarizePayloadTruncates(t *testing.T) {
	long := strings.Repeat("a", maxErrorBodyBytes+10)
	got := summarizePayload([]byte(long))
	if !strings.HasSuffix(got, "...(truncated)") || len(got) != maxErrorBodyBytes+len("...(truncated)") {
		t.Fatalf("unexpected summary length %d", len(got))
	}
}

func TestSummarizePayloadKeepsValidUTF8(t *testing.T) {
	body := strings.Repeat("a", maxErrorBodyBytes-1) + "é" + "tail"
	got := summarizePayload([]byte(body))
	if !utf8.ValidString(got) {
		t.Fatalf("summary is not valid utf-8: %q", got[len(got)-20:])
	}
	if want := strings.Repeat("a", maxErrorBodyBytes-1) + "...(truncated)"; got != want {
		t.Fatalf("expected cut before the split rune, got suffix %q", got[len(got)-20:])
	}

	invalid := summarizePayload([]byte("bad \xff body"))
	if !utf8.ValidString(invalid) || invalid != "bad \uFFFD body" {
		t.Fatalf("expected invalid bytes replaced, got %q", invalid)
	}
}
