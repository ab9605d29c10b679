package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	financeapp "github.com/cas-inventory/backend/internal/application/finance"
	reportapp "github.com/cas-inventory/backend/internal/application/report"
	tradeapp "github.com/cas-inventory/backend/internal/application/trade"
	"github.com/cas-inventory/backend/internal/infrastructure/auth"
	"github.com/cas-inventory/backend/internal/infrastructure/cache"
	"github.com/cas-inventory/backend/internal/infrastructure/config"
	"github.com/cas-inventory/backend/internal/infrastructure/lock"
	"github.com/cas-inventory/backend/internal/infrastructure/logger"
	"github.com/cas-inventory/backend/internal/infrastructure/persistence"
	"github.com/cas-inventory/backend/internal/infrastructure/scheduler"
	"github.com/cas-inventory/backend/internal/infrastructure/telemetry"
	"github.com/cas-inventory/backend/internal/interfaces/http/handler"
	"github.com/cas-inventory/backend/internal/interfaces/http/middleware"
	"github.com/cas-inventory/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//	@title			CAS Inventory API
//	@version		1.0
//	@description	Debts, sales, stock and analytics for a retail shop

//	@host		localhost:8080
//	@BasePath	/api

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Admin token from /auth/login. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting CAS Inventory",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("store", cfg.Store.Driver),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := cfg.App.Location()
	if err != nil {
		log.Fatal("Invalid time zone", zap.String("timezone", cfg.App.Timezone), zap.Error(err))
	}

	ctx := context.Background()

	// Tracing
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics(strings.ReplaceAll(cfg.App.Name, "-", "_"))
	}

	// Store
	store, err := persistence.NewStoreFromConfig(ctx, cfg, storeOptions(cfg, log, metrics)...)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer func() {
		closer, ok := store.(persistence.Closer)
		if !ok {
			return
		}
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := closer.Close(closeCtx); err != nil {
			log.Error("Error closing store", zap.Error(err))
		}
	}()
	syncer, _ := store.(persistence.Syncer)

	// Entity locks, the token blacklist and idempotent replay share Redis when it is enabled, as do the ledgers
	var (
		locker      lock.Locker = lock.NewKeyedMutex()
		blacklist   auth.TokenBlacklist
		idempotency cache.IdempotencyStore
		debtOpts    = []financeapp.DebtLedgerOption{financeapp.WithLogger(log)}
		salesOpts   = []tradeapp.SalesLedgerOption{tradeapp.WithLogger(log), tradeapp.WithLocation(loc)}
	)
	if cfg.Redis.Enabled {
		redisLocker, err := lock.NewRedisLocker(ctx, &cfg.Redis, log)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := redisLocker.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		locker = redisLocker
		blacklist = auth.NewRedisTokenBlacklist(redisLocker.Client())
		idempotency = cache.NewRedisIdempotencyStore(redisLocker.Client(), "")
		// other instances write the same store, so ledgers reload under a shared lock
		debtOpts = append(debtOpts, financeapp.WithStoreLock(redisLocker, middleware.DefaultLockWait))
		salesOpts = append(salesOpts, tradeapp.WithStoreLock(redisLocker, middleware.DefaultLockWait))
		log.Info("Using Redis for entity locks, token revocation and idempotency keys", zap.String("addr", cfg.Redis.Addr()))
	} else {
		blacklist = auth.NewInMemoryTokenBlacklist()
		memStore := cache.NewInMemoryIdempotencyStore()
		defer func() { _ = memStore.Close() }()
		idempotency = memStore
	}

	// Ledgers
	debts, err := financeapp.NewDebtLedger(ctx, store, debtOpts...)
	if err != nil {
		log.Fatal("Failed to load debt ledger", zap.Error(err))
	}
	sales, err := tradeapp.NewSalesLedger(ctx, store, salesOpts...)
	if err != nil {
		log.Fatal("Failed to load sales ledger", zap.Error(err))
	}
	analytics, err := reportapp.NewAnalyticsService(ctx, sales, debts, store, reportapp.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to load analytics history", zap.Error(err))
	}
	debts.OnChange(analytics.Refresh)
	sales.OnChange(analytics.Refresh)

	if metrics != nil {
		debts.OnChange(metrics.LedgerChangeListener("debts"))
		sales.OnChange(metrics.LedgerChangeListener("sales"))
		registerGauges(metrics, debts, sales, syncer, log)
	}

	// Background jobs
	jobs := scheduler.New(scheduler.Config{
		ResyncInterval: cfg.Store.ResyncInterval,
		SnapshotAt:     scheduler.DefaultConfig().SnapshotAt,
		JobTimeout:     scheduler.DefaultConfig().JobTimeout,
	}, loc, log)
	if syncer != nil {
		if err := jobs.AddResyncJob(syncer); err != nil {
			log.Fatal("Failed to schedule resync job", zap.Error(err))
		}
	}
	if err := jobs.AddDailySnapshotJob(analytics); err != nil {
		log.Fatal("Failed to schedule snapshot job", zap.Error(err))
	}
	jobs.Start()
	defer jobs.Stop()

	handlers := router.Handlers{
		Debtor:    handler.NewDebtorHandler(debts),
		Purchase:  handler.NewPurchaseHandler(sales),
		Stock:     handler.NewStockHandler(sales),
		Analytics: handler.NewAnalyticsHandler(analytics),
		Sync:      handler.NewSyncHandler(syncer),
		Health:    handler.NewHealthHandler(store, syncer),
	}
	adminCfg := middleware.AdminAuthConfig{Logger: log}
	if cfg.Auth.Enabled {
		verifier, err := auth.NewPasscodeVerifier(cfg.Auth.Passcode, cfg.Auth.PasscodeHash)
		if err != nil {
			log.Fatal("Failed to set up admin passcode", zap.Error(err))
		}
		jwtService := auth.NewJWTService(cfg.Auth)
		handlers.Auth = handler.NewAuthHandler(verifier, jwtService, blacklist)
		adminCfg.JWTService = jwtService
		adminCfg.TokenBlacklist = blacklist
	} else {
		log.Warn("Admin authentication is disabled; admin routes are open")
	}

	engine := router.NewEngine(router.EngineConfig{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     tp.IsEnabled(),
		MetricsPath: cfg.Metrics.Path,
		LockWait:    middleware.DefaultLockWait,
		Logger:      log,
		Metrics:     metrics,
		Locker:      locker,
		Idempotency: idempotency,
		Admin:       adminCfg,
	}, handlers)

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// storeOptions wires the gorm logger, query tracing and pool metrics into the SQL drivers
func storeOptions(cfg *config.Config, log *zap.Logger, metrics *telemetry.Metrics) []persistence.FactoryOption {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	if cfg.Store.Driver == config.DriverSQLite || cfg.Store.LocalDriver == config.DriverSQLite {
		dbTracing.DBSystem = "sqlite"
	}
	plugin := telemetry.NewDBTracingPlugin(dbTracing, log)

	opts := []persistence.FactoryOption{
		persistence.WithFactoryLogger(log),
		persistence.WithDatabaseOptions(persistence.WithGormLogger(gormLog)),
		persistence.WithDatabaseHook(plugin.RegisterOtelGorm),
	}
	if metrics != nil {
		opts = append(opts, persistence.WithDatabaseHook(func(db *gorm.DB) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return metrics.RegisterDBStats(sqlDB, "store")
		}))
	}
	return opts
}

// registerGauges exposes the ledger totals and the store mode at scrape time
func registerGauges(m *telemetry.Metrics, debts *financeapp.DebtLedger, sales *tradeapp.SalesLedger, syncer persistence.Syncer, log *zap.Logger) {
	ctx := context.Background()
	gauges := []struct {
		name string
		help string
		fn   func() float64
	}{
		{"outstanding_debt", "Total balance owed by active debtors", func() float64 {
			return debts.TotalOutstanding(ctx).InexactFloat64()
		}},
		{"active_debtors", "Debtors with an outstanding balance", func() float64 {
			return float64(debts.ActiveCount(ctx))
		}},
		{"stock_value", "Shelf value of all stock items", func() float64 {
			value, _ := sales.StockValue(ctx)
			return value.InexactFloat64()
		}},
		{"store_degraded", "1 while the remote store is unreachable", func() float64 {
			if syncer != nil && syncer.Status().Mode == persistence.ModeDegraded {
				return 1
			}
			return 0
		}},
	}
	for _, g := range gauges {
		if err := m.GaugeFunc(g.name, g.help, g.fn); err != nil {
			log.Warn("Failed to register gauge", zap.String("gauge", g.name), zap.Error(err))
		}
	}
}
