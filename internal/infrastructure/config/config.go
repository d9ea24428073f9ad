package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Marketplace MarketplaceConfig
	Sync        SyncConfig
	Telemetry   TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	AutoMigrate     bool // apply embedded migrations at startup
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
}

// MarketplaceConfig holds the marketplace API credentials and paging behavior
type MarketplaceConfig struct {
	Sandbox        bool
	TokenURL       string
	APIBaseURL     string
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	Scope          string
	MarketplaceID  string
	RequestTimeout time.Duration
	PageSize       int
	PageDelay      time.Duration
	RetryBackoff   time.Duration // wait before re-requesting a failed order page
}

// SyncConfig holds the inbound/outbound cycle settings
type SyncConfig struct {
	Enabled          bool
	InboundInterval  time.Duration
	OutboundInterval time.Duration
	CycleTimeout     time.Duration
	BatchSize        int
	MaxAttempts      int
	InboundLookback  time.Duration // window used when no cycle has succeeded yet
	InboundOverlap   time.Duration // re-read this much before the last successful window end
	InboundRevisit   time.Duration // orders this recent are re-read every cycle to catch cancellations
	Workers          int
	MaxOrderAge      time.Duration
	HistorySize      int
	DistributedLock  bool // guard cycles across instances with a Redis lease
	LockTTL          time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry tracing
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Metrics export
	MetricsEnabled bool
	ExportInterval time.Duration
	// zap -> OTLP log bridge
	LogsEnabled bool
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
	// Continuous profiling
	ProfilingEnabled  bool
	PyroscopeAddress  string
	PyroscopeUser     string
	PyroscopePassword string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with INVENTOZ_ prefix (e.g., INVENTOZ_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("INVENTOZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans whose default is true must be registered so an explicit false sticks
	v.SetDefault("sync.enabled", true)
	v.SetDefault("redis.enabled", false)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
		},
		Marketplace: MarketplaceConfig{
			Sandbox:        v.GetBool("marketplace.sandbox"),
			TokenURL:       v.GetString("marketplace.token_url"),
			APIBaseURL:     v.GetString("marketplace.api_base_url"),
			ClientID:       v.GetString("marketplace.client_id"),
			ClientSecret:   v.GetString("marketplace.client_secret"),
			RefreshToken:   v.GetString("marketplace.refresh_token"),
			Scope:          v.GetString("marketplace.scope"),
			MarketplaceID:  v.GetString("marketplace.marketplace_id"),
			RequestTimeout: v.GetDuration("marketplace.request_timeout"),
			PageSize:       v.GetInt("marketplace.page_size"),
			PageDelay:      v.GetDuration("marketplace.page_delay"),
			RetryBackoff:   v.GetDuration("marketplace.retry_backoff"),
		},
		Sync: SyncConfig{
			Enabled:          v.GetBool("sync.enabled"),
			InboundInterval:  v.GetDuration("sync.inbound_interval"),
			OutboundInterval: v.GetDuration("sync.outbound_interval"),
			CycleTimeout:     v.GetDuration("sync.cycle_timeout"),
			BatchSize:        v.GetInt("sync.batch_size"),
			MaxAttempts:      v.GetInt("sync.max_attempts"),
			InboundLookback:  v.GetDuration("sync.inbound_lookback"),
			InboundOverlap:   v.GetDuration("sync.inbound_overlap"),
			InboundRevisit:   v.GetDuration("sync.inbound_revisit"),
			Workers:          v.GetInt("sync.workers"),
			MaxOrderAge:      v.GetDuration("sync.max_order_age"),
			HistorySize:      v.GetInt("sync.history_size"),
			DistributedLock:  v.GetBool("sync.distributed_lock"),
			LockTTL:          v.GetDuration("sync.lock_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
			PyroscopeUser:     v.GetString("telemetry.pyroscope_user"),
			PyroscopePassword: v.GetString("telemetry.pyroscope_password"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "inventoz"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "inventoz"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "inventoz:"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	// Marketplace defaults: production endpoints unless sandbox is set
	if cfg.Marketplace.TokenURL == "" {
		if cfg.Marketplace.Sandbox {
			cfg.Marketplace.TokenURL = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"
		} else {
			cfg.Marketplace.TokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
		}
	}
	if cfg.Marketplace.APIBaseURL == "" {
		if cfg.Marketplace.Sandbox {
			cfg.Marketplace.APIBaseURL = "https://api.sandbox.ebay.com"
		} else {
			cfg.Marketplace.APIBaseURL = "https://api.ebay.com"
		}
	}
	if cfg.Marketplace.Scope == "" {
		cfg.Marketplace.Scope = "https://api.ebay.com/oauth/api_scope/sell.inventory https://api.ebay.com/oauth/api_scope/sell.fulfillment"
	}
	if cfg.Marketplace.MarketplaceID == "" {
		cfg.Marketplace.MarketplaceID = "EBAY_US"
	}
	if cfg.Marketplace.RequestTimeout == 0 {
		cfg.Marketplace.RequestTimeout = 30 * time.Second
	}
	if cfg.Marketplace.PageSize == 0 {
		cfg.Marketplace.PageSize = 50
	}
	if cfg.Marketplace.PageDelay == 0 {
		cfg.Marketplace.PageDelay = time.Second
	}
	if cfg.Marketplace.RetryBackoff == 0 {
		cfg.Marketplace.RetryBackoff = 30 * time.Second
	}

	if cfg.Sync.InboundInterval == 0 {
		cfg.Sync.InboundInterval = 15 * time.Minute
	}
	if cfg.Sync.OutboundInterval == 0 {
		cfg.Sync.OutboundInterval = 5 * time.Minute
	}
	if cfg.Sync.CycleTimeout == 0 {
		cfg.Sync.CycleTimeout = 10 * time.Minute
	}
	if cfg.Sync.BatchSize == 0 {
		cfg.Sync.BatchSize = 25
	}
	if cfg.Sync.MaxAttempts == 0 {
		cfg.Sync.MaxAttempts = 10
	}
	if cfg.Sync.InboundLookback == 0 {
		cfg.Sync.InboundLookback = 24 * time.Hour
	}
	if cfg.Sync.InboundOverlap == 0 {
		cfg.Sync.InboundOverlap = 5 * time.Minute
	}
	if cfg.Sync.InboundRevisit == 0 {
		cfg.Sync.InboundRevisit = 72 * time.Hour
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.MaxOrderAge == 0 {
		cfg.Sync.MaxOrderAge = 24 * time.Hour
	}
	if cfg.Sync.HistorySize == 0 {
		cfg.Sync.HistorySize = 20
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = cfg.Sync.CycleTimeout + time.Minute
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "inventoz"
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.PyroscopeAddress == "" {
		cfg.Telemetry.PyroscopeAddress = "http://localhost:4040"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Sync.BatchSize < 1 || c.Sync.BatchSize > 25 {
		return fmt.Errorf("sync.batch_size must be between 1 and 25, got %d", c.Sync.BatchSize)
	}
	if c.Sync.MaxAttempts < 1 {
		return fmt.Errorf("sync.max_attempts must be positive")
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be positive")
	}
	if c.Sync.InboundOverlap >= c.Sync.InboundLookback {
		return fmt.Errorf("sync.inbound_overlap (%s) must be shorter than sync.inbound_lookback (%s)",
			c.Sync.InboundOverlap, c.Sync.InboundLookback)
	}
	if c.Sync.InboundRevisit < c.Sync.MaxOrderAge {
		return fmt.Errorf("sync.inbound_revisit (%s) must cover sync.max_order_age (%s)",
			c.Sync.InboundRevisit, c.Sync.MaxOrderAge)
	}
	if c.Sync.DistributedLock && !c.Redis.Enabled {
		return fmt.Errorf("sync.distributed_lock requires redis.enabled")
	}
	if c.Marketplace.PageSize < 1 || c.Marketplace.PageSize > 200 {
		return fmt.Errorf("marketplace.page_size must be between 1 and 200, got %d", c.Marketplace.PageSize)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Marketplace.ClientID == "" || c.Marketplace.ClientSecret == "" || c.Marketplace.RefreshToken == "" {
			return fmt.Errorf("marketplace.client_id, marketplace.client_secret and marketplace.refresh_token are required in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// MarketplaceConfigured reports whether marketplace credentials are present
func (c *Config) MarketplaceConfigured() bool {
	return c.Marketplace.ClientID != "" && c.Marketplace.ClientSecret != "" && c.Marketplace.RefreshToken != ""
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
