package retention

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	internalsettings "github.com/router-for-me/ErasureRelay/internal/settings"
)

type fakePruner struct {
	remaining int64
	cutoffs   []time.Time
	err       error
}

func (f *fakePruner) DeleteErrorLogsBefore(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	if f.err != nil {
		return 0, f.err
	}
	n := int64(limit)
	if f.remaining < n {
		n = f.remaining
	}
	f.remaining -= n
	return n, nil
}

func withRetentionDays(t *testing.T, raw string) {
	t.Helper()
	values := map[string]json.RawMessage{}
	if raw != "" {
		values[internalsettings.ErrorLogRetentionDaysKey] = json.RawMessage(raw)
	}
	internalsettings.StoreDBConfig(time.Now(), values)
	t.Cleanup(func() { internalsettings.StoreDBConfig(time.Time{}, nil) })
}

func TestCleanupOnceDeletesInBatches(t *testing.T) {
	withRetentionDays(t, "7")
	pruner := &fakePruner{remaining: 25}
	c := NewErrorLogCleaner(pruner, nil, nil, time.Minute, 10)
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	if got := c.CleanupOnce(context.Background()); got != 25 {
		t.Fatalf("expected 25 deleted rows, got %d", got)
	}
	if len(pruner.cutoffs) != 3 {
		t.Fatalf("expected three batches, got %d", len(pruner.cutoffs))
	}
	if want := fixed.AddDate(0, 0, -7); !pruner.cutoffs[0].Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, pruner.cutoffs[0])
	}
}

func TestCleanupOnceDefaultsAndDisable(t *testing.T) {
	withRetentionDays(t, "")
	pruner := &fakePruner{}
	c := NewErrorLogCleaner(pruner, nil, nil, 0, 0)
	fixed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	c.CleanupOnce(context.Background())
	if len(pruner.cutoffs) != 1 || !pruner.cutoffs[0].Equal(fixed.AddDate(0, 0, -internalsettings.DefaultErrorLogRetentionDays)) {
		t.Fatalf("expected default retention cutoff, got %v", pruner.cutoffs)
	}

	withRetentionDays(t, "0")
	pruner.cutoffs = nil
	c.CleanupOnce(context.Background())
	if len(pruner.cutoffs) != 0 {
		t.Fatalf("retention 0 must disable pruning")
	}
}

func TestCleanupOnceStopsOnError(t *testing.T) {
	withRetentionDays(t, "1")
	refreshed := 0
	pruner := &fakePruner{err: errors.New("db down")}
	c := NewErrorLogCleaner(pruner, func(context.Context) error { refreshed++; return nil }, nil, time.Minute, 10)
	if got := c.CleanupOnce(context.Background()); got != 0 {
		t.Fatalf("expected nothing deleted, got %d", got)
	}
	if len(pruner.cutoffs) != 1 || refreshed != 1 {
		t.Fatalf("expected a single attempt and refresh, got %d/%d", len(pruner.cutoffs), refreshed)
	}
}

func TestNewErrorLogCleanerNilPruner(t *testing.T) {
	if c := NewErrorLogCleaner(nil, nil, nil, 0, 0); c != nil {
		t.Fatalf("expected nil cleaner")
	}
}
