package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/redis/go-redis/v9"
)

const defaultTokenKeyPrefix = "inventoz:"

// RedisTokenCache shares marketplace access tokens between instances.
// Entries expire in Redis at the token's own expiry.
type RedisTokenCache struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

type tokenEntry struct {
	Value     string    `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewRedisTokenCacheWithClient creates a token cache on an existing client
func NewRedisTokenCacheWithClient(client *redis.Client, keyPrefix string) *RedisTokenCache {
	if keyPrefix == "" {
		keyPrefix = defaultTokenKeyPrefix
	}
	return &RedisTokenCache{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

// Get returns the cached token or ErrCacheMiss
func (c *RedisTokenCache) Get(ctx context.Context, key string) (*integration.AccessToken, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}

	var entry tokenEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return &integration.AccessToken{Value: entry.Value, ExpiresAt: entry.ExpiresAt}, nil
}

// Set stores the token until it expires. Expired tokens are not stored.
func (c *RedisTokenCache) Set(ctx context.Context, key string, token *integration.AccessToken) error {
	if token == nil {
		return nil
	}
	ttl := token.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(tokenEntry{Value: token.Value, ExpiresAt: token.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}
	return nil
}

// Delete removes the token
func (c *RedisTokenCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

var _ integration.TokenCache = (*RedisTokenCache)(nil)
