package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/bookhaven/bookhaven/cmd/worker/cli"
	"github.com/bookhaven/bookhaven/internal/app"
	"github.com/bookhaven/bookhaven/internal/events"
	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/invoices"
	jobmetrics "github.com/bookhaven/bookhaven/internal/jobs"
	"github.com/bookhaven/bookhaven/internal/notifications"
	"github.com/bookhaven/bookhaven/internal/observability"
	"github.com/bookhaven/bookhaven/internal/platform/cache"
	"github.com/bookhaven/bookhaven/internal/platform/db"
	"github.com/bookhaven/bookhaven/internal/reports"
	"github.com/bookhaven/bookhaven/internal/shared"
	"github.com/bookhaven/bookhaven/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	if len(os.Args) > 1 {
		if err := runCommand(ctx, redisOpts, os.Args[1:]); err != nil {
			logger.Error("worker command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLife})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if cfg.EventsEnabled() {
		kafkaCfg := events.KafkaConfig{
			Brokers:          cfg.KafkaBrokers,
			Topic:            cfg.KafkaTopic,
			FailureThreshold: cfg.KafkaBreakerThreshold,
			OpenTimeout:      cfg.KafkaBreakerTimeout,
		}
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(kafkaCfg), kafkaCfg, logger, metrics)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close", slog.Any("error", err))
		}
	}()

	notificationService := notifications.NewService(notifications.NewRepository(pool), logger)
	invoiceService := invoices.NewService(invoices.NewRepository(pool), notificationService, publisher, logger)
	reportService := reports.NewService(reports.NewRepository(pool), reports.NewCache(redisClient, cfg.ReportCacheTTL), logger)

	mailJob := &jobs.MailOTPJob{Mailer: jobs.LogMailer{Logger: logger}, Metrics: jobMetrics}
	invoiceJob := &jobs.InvoiceIssueJob{Invoices: invoiceService, Logger: logger, Metrics: jobMetrics}
	cleanupJob := &jobs.IdempotencyCleanupJob{
		Store:     shared.NewIdempotencyStore(pool),
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   jobMetrics,
	}
	reconcileJob := &jobs.InventoryReconcileJob{Source: inventory.NewRepository(pool), Logger: logger, Metrics: jobMetrics}
	warmupJob := &jobs.ReportsWarmupJob{Reports: reportService, Logger: logger, Metrics: jobMetrics}

	now := time.Now().UTC()
	cron := make([]jobs.CronRegistration, 0, 3)
	for _, entry := range []struct {
		spec     string
		taskType string
	}{
		{"0 3 * * *", jobs.TaskIdempotencyCleanup},
		{"30 3 * * *", jobs.TaskInventoryReconcile},
		{"*/15 * * * *", jobs.TaskReportsWarmup},
	} {
		task, err := jobs.NewScheduledTask(entry.taskType, now)
		if err != nil {
			logger.Error("build cron task", slog.String("type", entry.taskType), slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: entry.spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMailOTP, Handler: mailJob.Handle},
			{Type: jobs.TaskInvoiceIssue, Handler: invoiceJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
			{Type: jobs.TaskInventoryReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

// runCommand handles "trigger <task>" and "stats".
func runCommand(ctx context.Context, opts asynq.RedisClientOpt, args []string) error {
	helper := cli.NewJobsCLI(opts)
	defer func() { _ = helper.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: worker trigger <%v>", cli.Triggerable)
		}
		info, err := helper.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := helper.InspectQueues(ctx)
		if err != nil {
			return err
		}
		for _, s := range stats {
			fmt.Printf("%-10s pending=%d active=%d scheduled=%d retry=%d archived=%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
