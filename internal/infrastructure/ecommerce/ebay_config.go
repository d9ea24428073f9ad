package ecommerce

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// EbayConfig holds configuration for the eBay Sell APIs
type EbayConfig struct {
	// ClientID is the application's OAuth client id
	ClientID string
	// ClientSecret is the application's OAuth client secret
	ClientSecret string
	// RefreshToken is the long-lived user refresh token
	RefreshToken string
	// Scope is the space separated OAuth scope list requested on refresh
	Scope string
	// TokenURL is the OAuth token endpoint
	TokenURL string
	// APIBaseURL is the base URL for the Sell APIs
	APIBaseURL string
	// MarketplaceID is sent as X-EBAY-C-MARKETPLACE-ID
	MarketplaceID string
	// IsSandbox indicates if this is a sandbox environment
	IsSandbox bool
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
	// TokenRefreshSkew is how long before expiry a token is considered stale
	TokenRefreshSkew time.Duration
}

const (
	// EbayProductionAPIURL is the production API endpoint
	EbayProductionAPIURL = "https://api.ebay.com"
	// EbaySandboxAPIURL is the sandbox API endpoint
	EbaySandboxAPIURL = "https://api.sandbox.ebay.com"
	// EbayProductionTokenURL is the production OAuth token endpoint
	EbayProductionTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	// EbaySandboxTokenURL is the sandbox OAuth token endpoint
	EbaySandboxTokenURL = "https://api.sandbox.ebay.com/identity/v1/oauth2/token"

	// EbayDefaultScope covers inventory and fulfillment access
	EbayDefaultScope = "https://api.ebay.com/oauth/api_scope/sell.inventory https://api.ebay.com/oauth/api_scope/sell.fulfillment"
	// EbayDefaultMarketplaceID is the US marketplace
	EbayDefaultMarketplaceID = "EBAY_US"

	defaultTokenRefreshSkew = 60 * time.Second
)

// Errors for eBay configuration
var (
	ErrEbayConfigMissingClientID     = errors.New("ebay: client id is required")
	ErrEbayConfigMissingClientSecret = errors.New("ebay: client secret is required")
	ErrEbayConfigMissingRefreshToken = errors.New("ebay: refresh token is required")
	ErrEbayConfigInvalidURL          = errors.New("ebay: invalid API URL")
)

// NewEbayConfig creates a new eBay configuration with defaults
func NewEbayConfig(clientID, clientSecret, refreshToken string) *EbayConfig {
	return &EbayConfig{
		ClientID:         clientID,
		ClientSecret:     clientSecret,
		RefreshToken:     refreshToken,
		Scope:            EbayDefaultScope,
		TokenURL:         EbayProductionTokenURL,
		APIBaseURL:       EbayProductionAPIURL,
		MarketplaceID:    EbayDefaultMarketplaceID,
		TimeoutSeconds:   30,
		TokenRefreshSkew: defaultTokenRefreshSkew,
	}
}

// NewSandboxEbayConfig creates a new eBay configuration for the sandbox environment
func NewSandboxEbayConfig(clientID, clientSecret, refreshToken string) *EbayConfig {
	config := NewEbayConfig(clientID, clientSecret, refreshToken)
	config.TokenURL = EbaySandboxTokenURL
	config.APIBaseURL = EbaySandboxAPIURL
	config.IsSandbox = true
	return config
}

// Validate validates the eBay configuration and fills in defaults
func (c *EbayConfig) Validate() error {
	if c.ClientID == "" {
		return ErrEbayConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrEbayConfigMissingClientSecret
	}
	if c.RefreshToken == "" {
		return ErrEbayConfigMissingRefreshToken
	}
	if c.APIBaseURL == "" {
		if c.IsSandbox {
			c.APIBaseURL = EbaySandboxAPIURL
		} else {
			c.APIBaseURL = EbayProductionAPIURL
		}
	}
	if c.TokenURL == "" {
		if c.IsSandbox {
			c.TokenURL = EbaySandboxTokenURL
		} else {
			c.TokenURL = EbayProductionTokenURL
		}
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Host == "" {
		return ErrEbayConfigInvalidURL
	}
	if c.Scope == "" {
		c.Scope = EbayDefaultScope
	}
	if c.MarketplaceID == "" {
		c.MarketplaceID = EbayDefaultMarketplaceID
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.TokenRefreshSkew <= 0 {
		c.TokenRefreshSkew = defaultTokenRefreshSkew
	}
	return nil
}
