package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
)

const tokenOperation = "token refresh"

// EbayTokenProvider exchanges the refresh token for short-lived access tokens.
// Tokens are cached until shortly before expiry. Concurrent callers share one
// refresh request. An optional TokenCache lets several processes share a token.
type EbayTokenProvider struct {
	config     *EbayConfig
	httpClient *http.Client
	cache      integration.TokenCache
	cacheKey   string
	now        func() time.Time

	mu    sync.Mutex
	token *integration.AccessToken
}

// EbayTokenProviderOption configures an EbayTokenProvider
type EbayTokenProviderOption func(*EbayTokenProvider)

// WithTokenCache shares tokens through cache
func WithTokenCache(cache integration.TokenCache) EbayTokenProviderOption {
	return func(p *EbayTokenProvider) {
		p.cache = cache
	}
}

// WithTokenHTTPClient replaces the HTTP client
func WithTokenHTTPClient(client *http.Client) EbayTokenProviderOption {
	return func(p *EbayTokenProvider) {
		if client != nil {
			p.httpClient = client
		}
	}
}

// WithTokenClock overrides the clock used for expiry checks
func WithTokenClock(now func() time.Time) EbayTokenProviderOption {
	return func(p *EbayTokenProvider) {
		p.now = now
	}
}

// NewEbayTokenProvider creates a new token provider
func NewEbayTokenProvider(config *EbayConfig, opts ...EbayTokenProviderOption) (*EbayTokenProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &EbayTokenProvider{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		cacheKey: "ebay:token:" + config.ClientID,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Token returns a valid access token, refreshing it when needed.
// Errors wrap integration.ErrCredentialUnavailable.
func (p *EbayTokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	skew := p.config.TokenRefreshSkew
	if p.token.ValidAt(p.now(), skew) {
		return p.token.Value, nil
	}

	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, p.cacheKey); err == nil && cached.ValidAt(p.now(), skew) {
			p.token = cached
			return cached.Value, nil
		}
	}

	token, err := p.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", integration.ErrCredentialUnavailable, err)
	}
	p.token = token

	if p.cache != nil {
		// A failed cache write only costs the other instances a refresh.
		_ = p.cache.Set(ctx, p.cacheKey, token)
	}
	return token.Value, nil
}

// Invalidate drops the cached token
func (p *EbayTokenProvider) Invalidate(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = nil
	if p.cache != nil {
		_ = p.cache.Delete(ctx, p.cacheKey)
	}
}

func (p *EbayTokenProvider) refresh(ctx context.Context) (*integration.AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", p.config.RefreshToken)
	form.Set("scope", p.config.Scope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.config.ClientID, p.config.ClientSecret)

	requestedAt := p.now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, integration.NewTransportError(tokenOperation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, integration.NewTransportError(tokenOperation, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, integration.NewStatusError(tokenOperation, resp.StatusCode, string(body), parseRetryAfter(resp.Header.Get("Retry-After"), p.now()))
	}

	var tokenResp EbayTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("%w: token response: %v", integration.ErrInvalidResponse, err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", integration.ErrInvalidResponse)
	}

	lifetime := time.Duration(tokenResp.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = 2 * time.Hour
	}
	return &integration.AccessToken{
		Value:     tokenResp.AccessToken,
		ExpiresAt: requestedAt.Add(lifetime),
	}, nil
}

var _ integration.TokenSource = (*EbayTokenProvider)(nil)
