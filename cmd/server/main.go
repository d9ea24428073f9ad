package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	inventoryapp "github.com/OsbanCerejo/inventoz-sub000/internal/application/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/cache"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/config"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/logger"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/scheduler"
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/handler"
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/middleware"
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Inventoz API
//	@version		1.0
//	@description	Local inventory with marketplace order reconciliation and quantity push
//	@BasePath		/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	startCtx := context.Background()

	// Telemetry comes first so the zap bridge and otelgorm see the providers
	tel, err := setupTelemetry(startCtx, cfg, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := tel.logs.Bridge(baseLog, zapcore.InfoLevel)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting inventoz",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		if err := applyMigrations(cfg, log); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	dbMetrics, err := instrumentDatabase(db, cfg, tel, log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(startCtx)
		defer dbMetrics.Stop()
	}

	syncMetrics, err := tel.syncMetrics()
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Shared stores: token cache and distributed cycle lock
	stores := cache.NewStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(!cfg.Sync.DistributedLock),
	)
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing Redis", zap.Error(err))
		}
	}()

	client, err := newMarketplace(cfg, stores, log)
	if err != nil {
		log.Fatal("Failed to initialize marketplace client", zap.Error(err))
	}

	// Repositories and services
	inventoryRepo := persistence.NewGormInventoryItemRepository(db.DB)
	ledgerRepo := persistence.NewGormStockSyncRecordRepository(db.DB)
	orderLineRepo := persistence.NewGormRemoteOrderLineRepository(db.DB)
	auditRepo := persistence.NewGormAuditLogRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB)

	skuLocks := appintegration.NewKeyedMutex()
	quantityService := inventoryapp.NewQuantityService(inventoryRepo, scope, log, inventoryapp.WithQuantityLocks(skuLocks))
	stockSyncService := appintegration.NewStockSyncService(
		ledgerRepo, inventoryRepo, auditRepo, client,
		appintegration.StockSyncConfig{BatchSize: cfg.Sync.BatchSize, MaxAttempts: cfg.Sync.MaxAttempts},
		log,
		appintegration.WithStockSyncRecorder(syncMetrics),
	)
	fetcher := appintegration.NewOrderFetcher(client,
		appintegration.OrderFetcherConfig{
			PageSize:     cfg.Marketplace.PageSize,
			PageDelay:    cfg.Marketplace.PageDelay,
			RetryBackoff: cfg.Marketplace.RetryBackoff,
		},
		log,
		appintegration.WithFetcherRecorder(syncMetrics),
	)
	reconciler := appintegration.NewOrderReconciler(scope,
		appintegration.OrderReconcilerConfig{MaxOrderAge: cfg.Sync.MaxOrderAge, Workers: cfg.Sync.Workers},
		log,
		appintegration.WithReconcilerRecorder(syncMetrics),
		appintegration.WithReconcilerLocks(skuLocks),
	)

	coordinatorOpts := []scheduler.CoordinatorOption{scheduler.WithCycleRecorder(syncMetrics)}
	if cfg.Sync.DistributedLock {
		lock, err := stores.CreateCycleLock()
		if err != nil {
			log.Fatal("Failed to create cycle lock", zap.Error(err))
		}
		coordinatorOpts = append(coordinatorOpts, scheduler.WithCycleLock(lock))
	}
	coordinator := scheduler.NewSyncCoordinator(fetcher, reconciler, stockSyncService,
		scheduler.CoordinatorConfig{
			CycleTimeout:    cfg.Sync.CycleTimeout,
			BatchSize:       cfg.Sync.BatchSize,
			MaxAttempts:     cfg.Sync.MaxAttempts,
			HistorySize:     cfg.Sync.HistorySize,
			LockTTL:         cfg.Sync.LockTTL,
			InboundLookback: cfg.Sync.InboundLookback,
			InboundOverlap:  cfg.Sync.InboundOverlap,
			InboundRevisit:  cfg.Sync.InboundRevisit,
		},
		log,
		coordinatorOpts...,
	)

	trigger := scheduler.NewSyncTrigger(scheduler.SyncTriggerConfig{
		InboundInterval:  cfg.Sync.InboundInterval,
		OutboundInterval: cfg.Sync.OutboundInterval,
		RunOnStart:       true,
	}, coordinator, log)
	if cfg.Sync.Enabled && cfg.MarketplaceConfigured() {
		if err := trigger.Start(startCtx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
	} else {
		log.Warn("Scheduled sync disabled; cycles only run when triggered manually",
			zap.Bool("sync_enabled", cfg.Sync.Enabled),
			zap.Bool("marketplace_configured", cfg.MarketplaceConfigured()),
		)
	}

	engine := newEngine(cfg, log, tel)

	systemHandler := handler.NewSystemHandler(db, cfg.App.Name, version)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	inventoryRoutes := router.InventoryRoutes(handler.NewInventoryHandler(quantityService))
	syncRoutes := router.SyncRoutes(handler.NewSyncHandler(stockSyncService, coordinator, orderLineRepo, auditRepo))
	r.Register(systemRoutes, inventoryRoutes, syncRoutes)
	r.Setup()

	for _, group := range []*router.DomainGroup{inventoryRoutes, syncRoutes} {
		log.Debug("Routes registered", zap.String("group", group.Name()), zap.Int("count", len(group.Routes())))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop scheduling first, then let running cycles finish or hit the deadline
	if err := trigger.Stop(ctx); err != nil {
		log.Warn("Sync trigger did not stop cleanly", zap.Error(err))
	}
	if err := coordinator.Shutdown(ctx); err != nil {
		log.Warn("Sync cycles still running at shutdown", zap.Error(err))
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	tel.shutdown(ctx)

	log.Info("Server exited gracefully")
}

// newEngine builds the gin engine with the shared middleware chain
func newEngine(cfg *config.Config, log *zap.Logger, tel *telemetryStack) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))

	tracingConfig := middleware.DefaultTracingConfig()
	tracingConfig.ServiceName = cfg.Telemetry.ServiceName
	tracingConfig.Enabled = tel.tracer.IsEnabled()
	engine.Use(middleware.TracingWithConfig(tracingConfig))
	engine.Use(middleware.SpanErrorMarker())

	engine.Use(middleware.HTTPMetrics(tel.httpMeter()))
	engine.Use(middleware.Profiling(tel.profiler.IsEnabled(), "/health"))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))

	securityConfig := middleware.DefaultSecurityConfig()
	securityConfig.HSTSEnabled = cfg.App.Env == "production"
	engine.Use(middleware.SecureWithConfig(securityConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	return engine
}
