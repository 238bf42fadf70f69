package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bookhaven/bookhaven/internal/inventory"
	jobmetrics "github.com/bookhaven/bookhaven/internal/jobs"
)

// KeyPurger is implemented by shared.IdempotencyStore.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob removes idempotency keys older than Retention.
type IdempotencyCleanupJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	n, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return tracker.End(err)
	}
	j.Metrics.AddItems(TaskIdempotencyCleanup, "idempotency_keys", n)
	if j.Logger != nil {
		j.Logger.Info("idempotency keys purged", slog.Int64("count", n), slog.Duration("retention", retention))
	}
	return tracker.End(nil)
}

// DriftSource is implemented by inventory.Repository.
type DriftSource interface {
	Drift(ctx context.Context) ([]inventory.Drift, error)
}

// InventoryReconcileJob reports products whose cached stock disagrees with the ledger.
// It never rewrites stock; the ledger is corrected with STOCKTAKE transactions.
type InventoryReconcileJob struct {
	Source  DriftSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskInventoryReconcile tasks.
func (j *InventoryReconcileJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Source == nil {
		return errors.New("inventory reconcile: handler not configured")
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := j.Metrics.Track(TaskInventoryReconcile)
	drift, err := j.Source.Drift(ctx)
	if err != nil {
		return tracker.End(err)
	}
	for _, d := range drift {
		logger.Warn("stock drift", slog.Int64("product_id", d.ProductID), slog.Int("cached", d.CachedStock), slog.Int("ledger", d.LedgerStock))
	}
	j.Metrics.AddItems(TaskInventoryReconcile, "drifting_products", int64(len(drift)))
	logger.Info("inventory reconcile done", slog.Int("drifting", len(drift)))
	return tracker.End(nil)
}
