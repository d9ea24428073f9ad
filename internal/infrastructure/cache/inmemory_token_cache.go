package cache

import (
	"context"
	"sync"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
)

// InMemoryTokenCache implements TokenCache using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryTokenCache struct {
	mu        sync.RWMutex
	entries   map[string]tokenEntry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryTokenCache creates a new in-memory token cache.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryTokenCache() *InMemoryTokenCache {
	c := &InMemoryTokenCache{
		entries:  make(map[string]tokenEntry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	return c
}

// Get returns the cached token or ErrCacheMiss
func (c *InMemoryTokenCache) Get(ctx context.Context, key string) (*integration.AccessToken, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.ExpiresAt) {
		return nil, ErrCacheMiss
	}
	return &integration.AccessToken{Value: e.Value, ExpiresAt: e.ExpiresAt}, nil
}

// Set stores the token until it expires
func (c *InMemoryTokenCache) Set(ctx context.Context, key string, token *integration.AccessToken) error {
	if token == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tokenEntry{Value: token.Value, ExpiresAt: token.ExpiresAt}
	return nil
}

// Delete removes the token
func (c *InMemoryTokenCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryTokenCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryTokenCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryTokenCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries (for testing/monitoring)
func (c *InMemoryTokenCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ integration.TokenCache = (*InMemoryTokenCache)(nil)
