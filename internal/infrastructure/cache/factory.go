package cache

import (
	"fmt"
	"sync"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StoreFactory creates the shared stores (token cache, cycle lock) based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool

	once      sync.Once
	client    *redis.Client
	clientErr error
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithInMemoryFallback controls whether to fall back to process-local stores when Redis is unavailable.
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RedisClient connects once and returns the shared client
func (f *StoreFactory) RedisClient() (*redis.Client, error) {
	f.once.Do(func() {
		if !f.redisConfig.Enabled {
			f.clientErr = fmt.Errorf("redis is disabled")
			return
		}
		f.client, f.clientErr = NewRedisClient(RedisConfig{
			Host:     f.redisConfig.Host,
			Port:     f.redisConfig.Port,
			Password: f.redisConfig.Password,
			DB:       f.redisConfig.DB,
		})
	})
	return f.client, f.clientErr
}

// CreateTokenCache returns a Redis token cache, or an in-memory one when
// Redis is unavailable and fallback is allowed
func (f *StoreFactory) CreateTokenCache() (integration.TokenCache, error) {
	client, err := f.RedisClient()
	if err == nil {
		f.logger.Info("using Redis token cache")
		return NewRedisTokenCacheWithClient(client, f.redisConfig.KeyPrefix), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for token cache but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory token cache. "+
		"Each instance will refresh its own marketplace token.",
		zap.Error(err),
	)
	return NewInMemoryTokenCache(), nil
}

// CreateCycleLock returns a Redis cycle lock. It returns nil without error
// when Redis is unavailable and fallback is allowed; cycles are then only
// guarded within this process.
func (f *StoreFactory) CreateCycleLock() (*RedisCycleLock, error) {
	client, err := f.RedisClient()
	if err == nil {
		return NewRedisCycleLockWithClient(client, f.redisConfig.KeyPrefix+"lock:"), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for cycle lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, sync cycles are only guarded within this process", zap.Error(err))
	return nil, nil
}

// Close releases the Redis connection, if any
func (f *StoreFactory) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
