package router

import (
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/cache"
	"github.com/cas-inventory/backend/internal/infrastructure/config"
	"github.com/cas-inventory/backend/internal/infrastructure/lock"
	"github.com/cas-inventory/backend/internal/infrastructure/logger"
	"github.com/cas-inventory/backend/internal/infrastructure/telemetry"
	"github.com/cas-inventory/backend/internal/interfaces/http/handler"
	"github.com/cas-inventory/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers groups the API handlers. Auth may be nil when admin auth is disabled.
type Handlers struct {
	Debtor    *handler.DebtorHandler
	Purchase  *handler.PurchaseHandler
	Stock     *handler.StockHandler
	Analytics *handler.AnalyticsHandler
	Sync      *handler.SyncHandler
	Auth      *handler.AuthHandler
	Health    *handler.HealthHandler
}

// EngineConfig holds what the engine needs besides the handlers
type EngineConfig struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Tracing     bool
	MetricsPath string
	LockWait    time.Duration

	Logger      *zap.Logger
	Metrics     *telemetry.Metrics     // nil disables /metrics and request metrics
	Locker      lock.Locker            // nil disables entity locking
	Idempotency cache.IdempotencyStore // nil disables Idempotency-Key replay
	Admin       middleware.AdminAuthConfig
}

// NewEngine builds the gin engine with the full middleware chain and every API route
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
			_ = engine.SetTrustedProxies(nil)
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(
		middleware.RequestID(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		middleware.CORS(cfg.HTTP),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.ServiceName, Enabled: cfg.Tracing}),
		middleware.SpanAttributes(),
		middleware.Metrics(cfg.Metrics),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	engine.GET("/health", h.Health.Health)
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(cfg.Metrics.Handler()))
	}

	admin := middleware.AdminAuth(cfg.Admin)
	entityLock := func(scope string) gin.HandlerFunc {
		return middleware.EntityLock(cfg.Locker, scope, "id", cfg.LockWait)
	}
	idempotent := middleware.Idempotency(cfg.Idempotency, cfg.HTTP.IdempotencyTTL)

	r := NewRouter(engine)

	if h.Auth != nil {
		r.Register(NewDomainGroup("auth", "/auth").
			POST("/login", h.Auth.Login).
			POST("/logout", admin, h.Auth.Logout))
	}

	r.Register(NewDomainGroup("debtors", "/debtors").
		GET("", h.Debtor.ListActive).
		POST("", idempotent, h.Debtor.Create).
		GET("/paid", h.Debtor.ListPaid).
		GET("/outstanding", h.Debtor.Outstanding).
		GET("/:id", h.Debtor.Get).
		PUT("/:id/payment", idempotent, entityLock("debtor"), h.Debtor.RecordPayment))

	r.Register(NewDomainGroup("purchases", "/purchases").
		GET("", h.Purchase.List).
		POST("", idempotent, h.Purchase.Create).
		DELETE("", admin, h.Purchase.Clear).
		GET("/today", h.Purchase.Today).
		GET("/date/:date", h.Purchase.ByDate).
		POST("/reverse", idempotent, h.Purchase.Reverse).
		DELETE("/:id", entityLock("sale"), h.Purchase.Delete))

	r.Register(NewDomainGroup("deleted-sales", "/deleted-sales").
		GET("", h.Purchase.ListDeleted).
		DELETE("/clear", admin, h.Purchase.ClearDeleted))

	r.Register(NewDomainGroup("reversals", "/reversals").
		GET("", h.Purchase.ListReversals))

	r.Register(NewDomainGroup("stock", "/stock").
		GET("", h.Stock.List).
		POST("", idempotent, h.Stock.Create).
		DELETE("", admin, h.Stock.Clear).
		GET("/value", h.Stock.Value).
		POST("/import", admin, h.Stock.Import).
		GET("/:id", h.Stock.Get).
		PUT("/:id", entityLock("stock"), h.Stock.Update).
		DELETE("/:id", entityLock("stock"), h.Stock.Delete).
		POST("/:id/sell", idempotent, entityLock("stock"), h.Stock.Sell).
		POST("/:id/reverse", idempotent, entityLock("stock"), h.Stock.Reverse))

	r.Register(NewDomainGroup("analytics", "/analytics").
		GET("", h.Analytics.History).
		GET("/summary", h.Analytics.Summary))

	r.Register(NewDomainGroup("sync", "/sync").
		GET("/status", h.Sync.Status).
		POST("", admin, h.Sync.Resync))

	r.Setup()
	return engine
}
