package integration

import (
	"context"
	"time"
)

// MaxBulkUpdateSize is the marketplace's per-call limit for bulk quantity updates
const MaxBulkUpdateSize = 25

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

// QuantityUpdate is one (sku, quantity) pair in a bulk update request
type QuantityUpdate struct {
	SKU      string
	Quantity int64
}

// BulkUpdateResult is the marketplace's answer to an accepted bulk update
type BulkUpdateResult struct {
	StatusCode int
	// RawResponse holds the per-item response body verbatim
	RawResponse string
}

// MarketplaceClient pushes quantities to the marketplace.
// A nil error means the whole batch was accepted (HTTP 200).
type MarketplaceClient interface {
	BulkUpdateQuantity(ctx context.Context, updates []QuantityUpdate) (*BulkUpdateResult, error)
}

// ---------------------------------------------------------------------------
// Inbound
// ---------------------------------------------------------------------------

// OrderPageRequest identifies one page of the order list.
// When Cursor is set it is the server-provided next URL and the window is ignored.
type OrderPageRequest struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Limit       int
	Cursor      string
}

// OrderPage is one page of remote orders
type OrderPage struct {
	Orders []RemoteOrder
	// Next is the cursor for the following page, empty on the last page
	Next  string
	Total int
}

// HasNext reports whether another page follows
func (p *OrderPage) HasNext() bool {
	return p != nil && p.Next != ""
}

// OrderPageSource fetches single pages of the marketplace order list
type OrderPageSource interface {
	FetchOrderPage(ctx context.Context, req OrderPageRequest) (*OrderPage, error)
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// AccessToken is a short-lived bearer token
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// ValidAt reports whether the token can still be used at now, leaving skew for in-flight requests
func (t *AccessToken) ValidAt(now time.Time, skew time.Duration) bool {
	return t != nil && t.Value != "" && now.Add(skew).Before(t.ExpiresAt)
}

// TokenSource hands out bearer tokens. Errors wrap ErrCredentialUnavailable.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops the cached token, e.g. after the marketplace answered 401
	Invalidate(ctx context.Context)
}

// TokenCache stores tokens so several processes can share one refresh
type TokenCache interface {
	Get(ctx context.Context, key string) (*AccessToken, error)
	Set(ctx context.Context, key string, token *AccessToken) error
	Delete(ctx context.Context, key string) error
}
