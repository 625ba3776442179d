package bootstrap

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

	cacheadapter "github.com/jmrebull/refund-service/internal/adapters/cache"
	eventadapter "github.com/jmrebull/refund-service/internal/adapters/events"
	httpadapter "github.com/jmrebull/refund-service/internal/adapters/http"
	"github.com/jmrebull/refund-service/internal/adapters/memory"
	pgadapter "github.com/jmrebull/refund-service/internal/adapters/postgres"
	"github.com/jmrebull/refund-service/internal/application"
	"github.com/jmrebull/refund-service/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Info("bootstrapping refund service",
		"http_port", cfg.HTTPPort, "store_backend", cfg.StoreBackend, "environment", cfg.Environment)

	cleanups := make([]func(), 0, 3)
	cleanup := func(context.Context) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	var (
		transactions ports.TransactionRepository
		refunds      ports.RefundRepository
		idempotency  ports.IdempotencyRepository
		audit        ports.AuditRepository
	)
	switch cfg.StoreBackend {
	case "postgres":
		db, err := pgadapter.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		cleanups = append(cleanups, func() { _ = sqlDB.Close() })
		if err := pgadapter.RunMigrations(ctx, db); err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		transactions = pgadapter.NewTransactionRepository(db)
		refunds = pgadapter.NewRefundRepository(db)
		idempotency = pgadapter.NewIdempotencyRepository(db)
		audit = pgadapter.NewAuditRepository(db)
	default:
		store := memory.NewStore()
		transactions = memory.NewTransactionRepository(store)
		refunds = memory.NewRefundRepository(store)
		idempotency = memory.NewIdempotencyRepository(store)
		audit = memory.NewAuditRepository(store)
	}

	var lockout ports.LockoutStore
	if cfg.RedisURL != "" {
		redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		cleanups = append(cleanups, func() { _ = redisClient.Close() })
		lockout = cacheadapter.NewRedisLockoutStore(redisClient)
	} else {
		lockout = memory.NewLockoutStore()
	}

	var publisher ports.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			"refund.approved": cfg.TopicRefundApproved,
		})
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		cleanups = append(cleanups, func() { _ = kafkaPublisher.Close() })
		publisher = kafkaPublisher
	} else {
		publisher = eventadapter.NewLoggingPublisher(logger)
	}

	if cfg.SeedData {
		count, err := SeedTransactions(ctx, transactions)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("seed data: %w", err)
		}
		logger.Info("seed data loaded", "transactions", count)
	}

	svc := application.NewService(
		application.Config{ServiceName: cfg.ServiceID},
		application.Dependencies{
			Transactions: transactions,
			Refunds:      refunds,
			Idempotency:  idempotency,
			Audit:        audit,
			Events:       publisher,
			Logger:       logger,
		})

	handler := httpadapter.NewHandler(svc)
	router := httpadapter.NewRouter(handler, httpadapter.RouterConfig{
		APIKey:           cfg.APIKey,
		Production:       cfg.IsProduction(),
		MaxRequestBytes:  cfg.MaxRequestBytes,
		LockoutThreshold: cfg.LockoutThreshold,
		LockoutWindow:    cfg.LockoutWindow,
		Lockout:          lockout,
		Logger:           logger,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		cleanupFn:  cleanup,
	}, nil
}

func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}
