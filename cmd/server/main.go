package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	appcart "github.com/storefront/backend/internal/application/cart"
	appcatalog "github.com/storefront/backend/internal/application/catalog"
	"github.com/storefront/backend/internal/application/checkout"
	"github.com/storefront/backend/internal/domain/order"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.FromConfig(cfg.App, cfg.Log))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting storefront",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry), log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	meter := meterProvider.Meter(cfg.Telemetry.ServiceName)

	gormLog := logger.NewSQLLogger(log, logger.SQLLogLevel(cfg.Database.LogLevel), persistence.ClassifiedSQL())
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database), log).RegisterOtelGorm(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	if cfg.Database.Driver == config.DriverSQLite {
		// sqlite is used for local development only; server-grade drivers use cmd/migrate
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected successfully", zap.String("driver", db.Driver))

	readyChecks := map[string]handler.Pinger{"database": db}

	// Redis backs both idempotency keys and token revocation when selected
	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	if cfg.Checkout.IdempotencyBackend == config.IdempotencyRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			_ = client.Close()
		}()
		revocations = auth.NewRedisRevocationList(client)
		readyChecks["redis"] = redisPinger{client}
	}

	metrics, err := telemetry.NewStorefrontMetrics(telemetry.StorefrontMetricsConfig{
		Meter:          meter,
		Logger:         log,
		HealthProvider: telemetry.NewGormCartHealthProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create storefront metrics", zap.Error(err))
	}
	if meterProvider.IsEnabled() {
		metrics.StartPeriodicCollection(ctx, 5*time.Minute)
	}
	defer metrics.Stop()

	// Repositories
	cartRepo := persistence.NewGormCartRepository(db.DB)
	integrityRepo := persistence.NewGormCartIntegrityRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB, order.NewInvoiceGenerator(
		order.WithAttempts(cfg.Checkout.InvoiceAttempts),
		order.WithBackoff(cfg.Checkout.InvoiceBackoff),
	))

	// Application services
	cartService := appcart.NewCartService(cartRepo, productRepo, appcart.WithTransferRecorder(metrics))
	integrityService := appcart.NewIntegrityService(integrityRepo,
		appcart.WithRepairRecorder(metrics),
		appcart.WithTrigger(telemetry.TriggerAPI),
		appcart.WithStaleGuestTTL(cfg.Cart.StaleGuestTTL),
	)
	productService := appcatalog.NewProductService(productRepo)

	checkoutOpts := []checkout.Option{
		checkout.WithDefaultCurrency(cfg.Checkout.DefaultCurrency),
		checkout.WithRecorder(metrics),
	}
	if cfg.Checkout.IdempotencyEnabled {
		store, err := cache.NewIdempotencyStoreFactory(cfg,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(cfg.App.Env != "production"),
		).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		checkoutOpts = append(checkoutOpts, checkout.WithIdempotency(store, shared.IdempotencyConfig{
			TTL:     cfg.Checkout.IdempotencyTTL,
			Enabled: true,
		}))
	}
	checkoutService := checkout.NewCheckoutService(orderRepo, cartRepo, integrityRepo, checkoutOpts...)

	var cleanup *scheduler.CartCleanupTrigger
	if cfg.Cart.CleanupEnabled {
		scheduled := appcart.NewIntegrityService(integrityRepo,
			appcart.WithRepairRecorder(metrics),
			appcart.WithTrigger(telemetry.TriggerScheduled),
			appcart.WithStaleGuestTTL(cfg.Cart.StaleGuestTTL),
		)
		cleanup, err = scheduler.NewCartCleanupTrigger(scheduler.CartCleanupConfig{
			Interval:   cfg.Cart.CleanupInterval,
			RunOnStart: true,
		}, scheduled, log.Named("cart_cleanup"))
		if err != nil {
			log.Fatal("Failed to create cart cleanup trigger", zap.Error(err))
		}
		if err := cleanup.Start(ctx); err != nil {
			log.Fatal("Failed to start cart cleanup trigger", zap.Error(err))
		}
	}

	engine, err := router.NewStorefrontEngine(router.Dependencies{
		Config:       cfg,
		Logger:       log,
		Version:      Version,
		Carts:        cartService,
		Integrity:    integrityService,
		Checkout:     checkoutService,
		Products:     productService,
		Tokens:       auth.NewTokenService(cfg.JWT),
		Revocations:  revocations,
		Meter:        meter,
		ReadyChecks:  readyChecks,
		TraceEnabled: tracerProvider.IsEnabled(),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}
	if cfg.HTTP.AdminToken == "" {
		log.Warn("http.admin_token is empty, admin API is disabled")
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	failed := false
	select {
	case <-ctx.Done():
		log.Info("Shutting down server...")
	case err := <-serveErr:
		log.Error("Server failed", zap.Error(err))
		failed = true
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cleanup != nil {
		if err := cleanup.Stop(shutdownCtx); err != nil {
			log.Warn("Cart cleanup did not stop in time", zap.Error(err))
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if failed {
		_ = log.Sync()
		os.Exit(1)
	}
}

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
