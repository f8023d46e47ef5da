// Package retention prunes old error-log entries in the background.
package retention

import (
	"context"
	"time"

	"github.com/router-for-me/ErasureRelay/internal/metrics"
	internalsettings "github.com/router-for-me/ErasureRelay/internal/settings"
	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval        = time.Hour
	defaultDeleteBatchSize = 5000
	maxDeleteBatchesPerRun = 2000
)

// Pruner deletes up to limit error logs older than cutoff.
type Pruner interface {
	DeleteErrorLogsBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

// ErrorLogCleaner periodically deletes error logs older than ERROR_LOG_RETENTION_DAYS.
type ErrorLogCleaner struct {
	pruner    Pruner
	refresh   func(context.Context) error
	metrics   *metrics.Metrics
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// NewErrorLogCleaner builds a cleaner. refresh, when set, reloads runtime settings before
// each pass so changes made by other replicas are honoured.
func NewErrorLogCleaner(pruner Pruner, refresh func(context.Context) error, m *metrics.Metrics, interval time.Duration, batchSize int) *ErrorLogCleaner {
	if pruner == nil {
		return nil
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if batchSize <= 0 {
		batchSize = defaultDeleteBatchSize
	}
	return &ErrorLogCleaner{
		pruner:    pruner,
		refresh:   refresh,
		metrics:   m,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start launches the cleanup loop in a background goroutine.
func (c *ErrorLogCleaner) Start(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go c.run(ctx)
	log.Infof("error log retention cleaner started (interval=%s)", c.interval)
}

func (c *ErrorLogCleaner) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.CleanupOnce(ctx)
		timer := time.NewTimer(c.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// CleanupOnce runs one pruning pass and returns the number of deleted rows.
func (c *ErrorLogCleaner) CleanupOnce(ctx context.Context) int64 {
	if c == nil || c.pruner == nil {
		return 0
	}
	if c.refresh != nil {
		if errRefresh := c.refresh(ctx); errRefresh != nil {
			log.WithError(errRefresh).Warn("error log retention cleaner: refresh settings failed")
		}
	}

	retentionDays := internalsettings.IntValue(internalsettings.ErrorLogRetentionDaysKey, internalsettings.DefaultErrorLogRetentionDays)
	if retentionDays <= 0 {
		return 0
	}
	cutoff := c.now().UTC().AddDate(0, 0, -retentionDays)

	deletedTotal := int64(0)
	for i := 0; i < maxDeleteBatchesPerRun; i++ {
		if ctx.Err() != nil {
			break
		}
		n, err := c.pruner.DeleteErrorLogsBefore(ctx, cutoff, c.batchSize)
		if err != nil {
			log.WithError(err).Warn("error log retention cleaner: delete batch failed")
			break
		}
		if n <= 0 {
			break
		}
		deletedTotal += n
		if n < int64(c.batchSize) {
			break
		}
	}

	if deletedTotal > 0 {
		c.metrics.AddRetentionDeleted(deletedTotal)
		log.Infof("error log retention cleaner: deleted %d rows (cutoff=%s retention_days=%d)", deletedTotal, cutoff.Format(time.RFC3339), retentionDays)
	}
	return deletedTotal
}
