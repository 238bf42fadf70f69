package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/bookhaven/bookhaven/internal/app"
	"github.com/bookhaven/bookhaven/internal/audit"
	"github.com/bookhaven/bookhaven/internal/auth"
	"github.com/bookhaven/bookhaven/internal/cart"
	"github.com/bookhaven/bookhaven/internal/catalog"
	"github.com/bookhaven/bookhaven/internal/checkout"
	"github.com/bookhaven/bookhaven/internal/events"
	"github.com/bookhaven/bookhaven/internal/inventory"
	"github.com/bookhaven/bookhaven/internal/invoices"
	"github.com/bookhaven/bookhaven/internal/notifications"
	"github.com/bookhaven/bookhaven/internal/observability"
	"github.com/bookhaven/bookhaven/internal/orders"
	"github.com/bookhaven/bookhaven/internal/platform/cache"
	"github.com/bookhaven/bookhaven/internal/platform/db"
	"github.com/bookhaven/bookhaven/internal/reports"
	"github.com/bookhaven/bookhaven/internal/shared"
	"github.com/bookhaven/bookhaven/internal/shipping"
	"github.com/bookhaven/bookhaven/internal/vouchers"
	"github.com/bookhaven/bookhaven/jobs"
	"github.com/bookhaven/bookhaven/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolConfig{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLife})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate || (len(os.Args) > 1 && os.Args[1] == "migrate") {
		applied, err := db.Migrate(ctx, dbpool, migrations.Files)
		if err != nil {
			logger.Error("apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Any("files", applied))
		if !cfg.AutoMigrate {
			return
		}
	}

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

	var publisher events.Publisher = events.LogPublisher{Logger: logger}
	if cfg.EventsEnabled() {
		kafkaCfg := events.KafkaConfig{
			Brokers:          cfg.KafkaBrokers,
			Topic:            cfg.KafkaTopic,
			FailureThreshold: cfg.KafkaBreakerThreshold,
			OpenTimeout:      cfg.KafkaBreakerTimeout,
		}
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(kafkaCfg), kafkaCfg, logger, metrics)
		logger.Info("publishing domain events to kafka", slog.String("topic", cfg.KafkaTopic))
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("event publisher close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts, cfg.OTPTTL)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authMiddleware := auth.NewMiddleware(tokens, logger)
	authService := auth.NewService(auth.NewRepository(dbpool), auth.NewOTPStore(redisClient), jobClient, tokens, publisher, logger, auth.Config{
		OTPTTL:     cfg.OTPTTL,
		BcryptCost: cfg.BcryptCost,
	})
	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Error("bootstrap admin", slog.Any("error", err))
		os.Exit(1)
	}
	authHandler := auth.NewHandler(logger, authService, authMiddleware.Require, app.RateLimit(cfg.AuthRateLimitPerMinute, time.Minute))

	catalogService := catalog.NewService(catalog.NewRepository(dbpool), auditLogger, publisher, logger)
	catalogHandler := catalog.NewHandler(logger, catalogService, authMiddleware.Admin)

	cartService := cart.NewService(cart.NewRepository(dbpool), cart.CatalogLookup(func(ctx context.Context, productID int64) (bool, error) {
		p, err := catalogService.Get(ctx, productID, true)
		if err != nil {
			return false, err
		}
		return p.Active, nil
	}), logger)
	cartHandler := cart.NewHandler(logger, cartService)

	notificationService := notifications.NewService(notifications.NewRepository(dbpool), logger)
	notificationHandler := notifications.NewHandler(logger, notificationService)

	reportService := reports.NewService(reports.NewRepository(dbpool), reports.NewCache(redisClient, cfg.ReportCacheTTL), logger)
	reportHandler := reports.NewHandler(logger, reportService)
	auditHandler := audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)))

	orderService := orders.NewService(orders.NewRepository(dbpool), orders.Options{
		Audit:    auditLogger,
		Events:   publisher,
		Notifier: notificationService,
		Invoices: jobClient,
		Reports:  reportService,
		Metrics:  metrics,
		Logger:   logger,
	})
	orderHandler := orders.NewHandler(logger, orderService, authMiddleware.Admin)

	voucherService := vouchers.NewService(vouchers.NewRepository(dbpool), auditLogger, logger)
	voucherHandler := vouchers.NewHandler(logger, voucherService, authMiddleware.Admin)

	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, metrics, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	shippingPolicy := shipping.Policy{
		BaseFee:       cfg.ShippingBaseFee,
		FreeThreshold: cfg.ShippingFreeThreshold,
		PerKm:         cfg.ShippingPerKm,
	}
	checkoutService := checkout.NewService(checkout.NewRepository(dbpool), shippingPolicy, idempotencyStore, orderService, metrics, logger)
	checkoutHandler := checkout.NewHandler(logger, checkoutService)

	invoiceService := invoices.NewService(invoices.NewRepository(dbpool), notificationService, publisher, logger)
	invoiceHandler := invoices.NewHandler(logger, invoiceService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Auth:    authMiddleware,
		Checks: map[string]app.Pinger{
			"postgres": app.PingFunc(dbpool.Ping),
			"redis": app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
		AuthHandler:          authHandler,
		CatalogHandler:       catalogHandler,
		CartHandler:          cartHandler,
		CheckoutHandler:      checkoutHandler,
		OrdersHandler:        orderHandler,
		VouchersHandler:      voucherHandler,
		InventoryHandler:     inventoryHandler,
		InvoicesHandler:      invoiceHandler,
		NotificationsHandler: notificationHandler,
		ReportsHandler:       reportHandler,
		AuditHandler:         auditHandler,
		JobHandler:           jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
