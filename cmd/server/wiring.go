package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/cache"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/config"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/ecommerce"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/migration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/telemetry"
	"github.com/OsbanCerejo/inventoz-sub000/migrations"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// telemetryStack owns the OpenTelemetry providers and the profiler
type telemetryStack struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
	log      *zap.Logger
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryStack, error) {
	t := cfg.Telemetry
	tel := &telemetryStack{log: log}

	var err error
	tel.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		SamplingRatio:     t.SamplingRatio,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}

	tel.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           t.MetricsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ExportInterval:    t.ExportInterval,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("meter provider: %w", err)
	}

	tel.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           t.LogsEnabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("logger provider: %w", err)
	}

	tel.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           t.ProfilingEnabled,
		ServerAddress:     t.PyroscopeAddress,
		ApplicationName:   t.ServiceName,
		BasicAuthUser:     t.PyroscopeUser,
		BasicAuthPassword: t.PyroscopePassword,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("profiler: %w", err)
	}
	if tel.profiler.IsEnabled() {
		tel.tracer.EnableSpanProfiles()
	}

	return tel, nil
}

func (t *telemetryStack) httpMeter() metric.Meter {
	if !t.meter.IsEnabled() {
		return nil
	}
	return t.meter.Meter("http.server")
}

func (t *telemetryStack) syncMetrics() (*telemetry.SyncMetrics, error) {
	return telemetry.NewSyncMetrics(t.meter.Meter("inventoz.sync"))
}

// shutdown flushes exporters in reverse start order
func (t *telemetryStack) shutdown(ctx context.Context) {
	if err := t.profiler.Stop(); err != nil {
		t.log.Warn("Profiler shutdown failed", zap.Error(err))
	}
	if err := t.logs.Shutdown(ctx); err != nil {
		t.log.Warn("Logger provider shutdown failed", zap.Error(err))
	}
	if err := t.meter.Shutdown(ctx); err != nil {
		t.log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := t.tracer.Shutdown(ctx); err != nil {
		t.log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
}

// instrumentDatabase installs otelgorm and the database metrics plugin
func instrumentDatabase(db *persistence.Database, cfg *config.Config, tel *telemetryStack, log *zap.Logger) (*telemetry.DBMetrics, error) {
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log)
	if err := tracing.Register(db.DB); err != nil {
		return nil, fmt.Errorf("register db tracing: %w", err)
	}

	return telemetry.RegisterDBMetrics(db.DB, tel.meter, telemetry.DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		PoolStatsInterval:  15 * time.Second,
	}, log)
}

// applyMigrations runs the embedded schema migrations on a dedicated connection
func applyMigrations(cfg *config.Config, log *zap.Logger) error {
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}

	m, err := migration.NewFromFS(sqlDB, migrations.FS, ".", log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	// Closing the migrator also closes sqlDB
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()

	if err := m.Up(); err != nil {
		return err
	}
	status, err := m.Status()
	if err != nil {
		return err
	}
	log.Info("Schema up to date", zap.Uint("version", status.Version), zap.Bool("dirty", status.Dirty))
	return nil
}

// marketplace is what the sync engine needs from the eBay adapter
type marketplace interface {
	integration.MarketplaceClient
	integration.OrderPageSource
}

// newMarketplace builds the eBay adapter. Without credentials every call
// fails with ErrCredentialUnavailable so manual cycles abort cleanly.
func newMarketplace(cfg *config.Config, stores *cache.StoreFactory, log *zap.Logger) (marketplace, error) {
	if !cfg.MarketplaceConfigured() {
		log.Warn("Marketplace credentials missing; sync cycles will abort")
		return unconfiguredMarketplace{}, nil
	}

	m := cfg.Marketplace
	ebayConfig := ecommerce.NewEbayConfig(m.ClientID, m.ClientSecret, m.RefreshToken)
	if m.Sandbox {
		ebayConfig = ecommerce.NewSandboxEbayConfig(m.ClientID, m.ClientSecret, m.RefreshToken)
	}
	ebayConfig.TokenURL = m.TokenURL
	ebayConfig.APIBaseURL = m.APIBaseURL
	ebayConfig.Scope = m.Scope
	ebayConfig.MarketplaceID = m.MarketplaceID
	ebayConfig.TimeoutSeconds = int(m.RequestTimeout / time.Second)

	tokenCache, err := stores.CreateTokenCache()
	if err != nil {
		return nil, err
	}
	tokens, err := ecommerce.NewEbayTokenProvider(ebayConfig, ecommerce.WithTokenCache(tokenCache))
	if err != nil {
		return nil, fmt.Errorf("ebay token provider: %w", err)
	}
	adapter, err := ecommerce.NewEbayAdapter(ebayConfig, tokens)
	if err != nil {
		return nil, fmt.Errorf("ebay adapter: %w", err)
	}

	log.Info("Marketplace client ready",
		zap.String("api_base_url", ebayConfig.APIBaseURL),
		zap.String("marketplace_id", ebayConfig.MarketplaceID),
		zap.Bool("sandbox", ebayConfig.IsSandbox),
	)
	return adapter, nil
}

type unconfiguredMarketplace struct{}

func (unconfiguredMarketplace) BulkUpdateQuantity(context.Context, []integration.QuantityUpdate) (*integration.BulkUpdateResult, error) {
	return nil, fmt.Errorf("%w: marketplace credentials not configured", integration.ErrCredentialUnavailable)
}

func (unconfiguredMarketplace) FetchOrderPage(context.Context, integration.OrderPageRequest) (*integration.OrderPage, error) {
	return nil, fmt.Errorf("%w: marketplace credentials not configured", integration.ErrCredentialUnavailable)
}
