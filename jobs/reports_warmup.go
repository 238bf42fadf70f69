package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bookhaven/bookhaven/internal/jobs"
	"github.com/bookhaven/bookhaven/internal/reports"
)

// SalesReporter is implemented by reports.Service.
type SalesReporter interface {
	Sales(ctx context.Context, rng reports.Range, topN int) (reports.SalesReport, error)
}

// ReportsWarmupJob pre-populates the cache for the default dashboard windows.
type ReportsWarmupJob struct {
	Reports SalesReporter
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

func (j *ReportsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

// Handle processes TaskReportsWarmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskReportsWarmup)
	today := j.now().UTC().Truncate(24 * time.Hour)
	tomorrow := today.AddDate(0, 0, 1)
	windows := []reports.Range{
		{From: today, To: tomorrow},
		{From: today.AddDate(0, 0, -6), To: tomorrow},
		{From: today.AddDate(0, 0, -29), To: tomorrow},
	}
	for _, rng := range windows {
		// Bound each window so one slow query does not hold the worker.
		scopeCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
		_, err := j.Reports.Sales(scopeCtx, rng, 10)
		cancel()
		if err != nil {
			return tracker.End(err)
		}
	}
	if j.Logger != nil {
		j.Logger.Info("reports warmed", slog.Int("windows", len(windows)))
	}
	return tracker.End(nil)
}
