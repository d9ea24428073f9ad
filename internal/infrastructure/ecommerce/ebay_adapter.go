package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
)

// maxResponseSize is the maximum allowed response size from the eBay API (10MB)
const maxResponseSize = 10 * 1024 * 1024

const (
	bulkUpdatePath = "/sell/inventory/v1/bulk_update_price_quantity"
	ordersPath     = "/sell/fulfillment/v1/order"

	bulkUpdateOperation = "bulk update"
	orderPageOperation  = "order page"

	// ebayTimeFormat is the ISO 8601 form accepted by the creationdate filter
	ebayTimeFormat = "2006-01-02T15:04:05.000Z"
)

// ErrEbayForeignCursor is returned when a next cursor points outside the API host
var ErrEbayForeignCursor = errors.New("ebay: next cursor points to a foreign host")

// EbayAdapter implements the marketplace client and order page source for eBay
type EbayAdapter struct {
	config     *EbayConfig
	tokens     integration.TokenSource
	httpClient *http.Client
	now        func() time.Time
}

// NewEbayAdapter creates a new eBay adapter with the given configuration
func NewEbayAdapter(config *EbayConfig, tokens integration.TokenSource) (*EbayAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &EbayAdapter{
		config: config,
		tokens: tokens,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		now: time.Now,
	}, nil
}

// SetHTTPClient replaces the HTTP client (tests)
func (a *EbayAdapter) SetHTTPClient(client *http.Client) {
	a.httpClient = client
}

// ---------------------------------------------------------------------------
// Inventory Operations
// ---------------------------------------------------------------------------

// BulkUpdateQuantity pushes quantities for up to 25 SKUs in one call.
// Only HTTP 200 counts as acceptance; the per-item body is returned verbatim.
func (a *EbayAdapter) BulkUpdateQuantity(ctx context.Context, updates []integration.QuantityUpdate) (*integration.BulkUpdateResult, error) {
	if len(updates) == 0 {
		return &integration.BulkUpdateResult{StatusCode: http.StatusOK}, nil
	}
	if len(updates) > integration.MaxBulkUpdateSize {
		return nil, integration.NewStatusError(bulkUpdateOperation, http.StatusBadRequest,
			fmt.Sprintf("batch of %d exceeds the %d item limit", len(updates), integration.MaxBulkUpdateSize), 0)
	}

	payload := EbayBulkUpdateRequest{Requests: make([]EbayQuantityRequest, 0, len(updates))}
	for _, u := range updates {
		payload.Requests = append(payload.Requests, EbayQuantityRequest{
			SKU:                        u.SKU,
			ShipToLocationAvailability: EbayShipToLocationAvailability{Quantity: u.Quantity},
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("ebay: failed to encode bulk update: %w", err)
	}

	status, respBody, err := a.doRequest(ctx, bulkUpdateOperation, http.MethodPost, a.config.APIBaseURL+bulkUpdatePath, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		// 207 and other non-200 successes report per-item failures; the batch is treated as failed.
		return nil, integration.NewStatusError(bulkUpdateOperation, status, string(respBody), 0)
	}
	return &integration.BulkUpdateResult{StatusCode: status, RawResponse: string(respBody)}, nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// FetchOrderPage fetches one page of orders. The first page is addressed by
// the creation window; later pages follow the server's next URL.
func (a *EbayAdapter) FetchOrderPage(ctx context.Context, req integration.OrderPageRequest) (*integration.OrderPage, error) {
	pageURL, err := a.orderPageURL(req)
	if err != nil {
		return nil, err
	}

	_, body, err := a.doRequest(ctx, orderPageOperation, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}

	var resp EbayOrderSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse order page: %v", integration.ErrInvalidResponse, err)
	}

	page := &integration.OrderPage{
		Orders: make([]integration.RemoteOrder, 0, len(resp.Orders)),
		Next:   resp.Next,
		Total:  resp.Total,
	}
	for i := range resp.Orders {
		page.Orders = append(page.Orders, convertEbayOrder(&resp.Orders[i]))
	}
	return page, nil
}

func (a *EbayAdapter) orderPageURL(req integration.OrderPageRequest) (string, error) {
	if req.Cursor != "" {
		next, err := url.Parse(req.Cursor)
		if err != nil {
			return "", fmt.Errorf("%w: %v", integration.ErrInvalidResponse, err)
		}
		base, _ := url.Parse(a.config.APIBaseURL)
		if !next.IsAbs() {
			return base.ResolveReference(next).String(), nil
		}
		// The bearer token must never be sent to another host.
		if next.Host != base.Host {
			return "", ErrEbayForeignCursor
		}
		return next.String(), nil
	}

	query := url.Values{}
	if req.Limit > 0 {
		query.Set("limit", strconv.Itoa(req.Limit))
	}
	if !req.WindowStart.IsZero() || !req.WindowEnd.IsZero() {
		query.Set("filter", creationDateFilter(req.WindowStart, req.WindowEnd))
	}
	return a.config.APIBaseURL + ordersPath + "?" + query.Encode(), nil
}

// creationDateFilter renders [start, end) as eBay's inclusive range filter
func creationDateFilter(start, end time.Time) string {
	from, to := "", ""
	if !start.IsZero() {
		from = start.UTC().Format(ebayTimeFormat)
	}
	if !end.IsZero() {
		to = end.Add(-time.Millisecond).UTC().Format(ebayTimeFormat)
	}
	return fmt.Sprintf("creationdate:[%s..%s]", from, to)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// doRequest performs an authenticated call. A 401 invalidates the token and
// the call is repeated once with a fresh one. Non-2xx answers come back as
// *integration.RemoteError carrying the raw body.
func (a *EbayAdapter) doRequest(ctx context.Context, operation, method, target string, body []byte) (int, []byte, error) {
	for attempt := 0; ; attempt++ {
		token, err := a.tokens.Token(ctx)
		if err != nil {
			return 0, nil, err
		}

		status, respBody, header, err := a.send(ctx, operation, method, target, token, body)
		if err != nil {
			return 0, nil, err
		}

		if status == http.StatusUnauthorized {
			a.tokens.Invalidate(ctx)
			statusErr := integration.NewStatusError(operation, status, string(respBody), 0)
			if attempt == 0 {
				continue
			}
			return 0, nil, fmt.Errorf("%w: %w", integration.ErrCredentialUnavailable, statusErr)
		}
		if status < 200 || status >= 300 {
			return 0, nil, integration.NewStatusError(operation, status, string(respBody), parseRetryAfter(header.Get("Retry-After"), a.now()))
		}
		return status, respBody, nil
	}
}

func (a *EbayAdapter) send(ctx context.Context, operation, method, target, token string, body []byte) (int, []byte, http.Header, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("ebay: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", a.config.MarketplaceID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, integration.NewTransportError(operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, nil, integration.NewTransportError(operation, err)
	}
	return resp.StatusCode, respBody, resp.Header, nil
}

// parseRetryAfter reads a Retry-After header in delta-seconds or HTTP-date form
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// ---------------------------------------------------------------------------
// Conversion
// ---------------------------------------------------------------------------

func convertEbayOrder(o *EbayOrder) integration.RemoteOrder {
	status := mapEbayOrderStatus(o)
	order := integration.RemoteOrder{
		OrderID:    o.OrderID,
		Status:     status,
		CreatedAt:  parseEbayTime(o.CreationDate),
		ModifiedAt: parseEbayTime(o.LastModifiedDate),
		Items:      make([]integration.RemoteOrderItem, 0, len(o.LineItems)),
		Metadata:   ebayOrderMetadata(o),
	}

	for _, li := range o.LineItems {
		item := integration.RemoteOrderItem{
			LineItemID: li.LineItemID,
			SKU:        li.SKU,
			Title:      li.Title,
			Quantity:   li.Quantity,
			UnitPrice:  unitPrice(li),
			Currency:   li.LineItemCost.Currency,
		}
		// Cancellation applies to the whole order; otherwise a shipped line can lead its order.
		if status != integration.FulfillmentStatusCancelled && li.LineItemFulfillmentStatus == EbayFulfillmentFulfilled {
			item.Status = integration.FulfillmentStatusShipped
		}
		order.Items = append(order.Items, item)
	}
	return order
}

// mapEbayOrderStatus maps eBay order state to the normalized fulfillment status
func mapEbayOrderStatus(o *EbayOrder) integration.FulfillmentStatus {
	if o.CancelStatus.CancelState == EbayCancelStateCanceled {
		return integration.FulfillmentStatusCancelled
	}
	switch o.OrderFulfillmentStatus {
	case EbayFulfillmentNotStarted, EbayFulfillmentInProgress:
		return integration.FulfillmentStatusOpen
	case EbayFulfillmentFulfilled:
		return integration.FulfillmentStatusShipped
	default:
		return integration.FulfillmentStatusUnknown
	}
}

// unitPrice derives the per-unit price from the line total
func unitPrice(li EbayLineItem) decimal.Decimal {
	total, err := decimal.NewFromString(li.LineItemCost.Value)
	if err != nil {
		return decimal.Zero
	}
	if li.Quantity <= 1 {
		return total
	}
	return total.DivRound(decimal.NewFromInt(li.Quantity), 2)
}

func parseEbayTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func ebayOrderMetadata(o *EbayOrder) json.RawMessage {
	meta := map[string]any{
		"buyer_username": o.Buyer.Username,
	}
	if o.OrderPaymentStatus != "" {
		meta["payment_status"] = o.OrderPaymentStatus
	}
	if len(o.FulfillmentStartInstructions) > 0 {
		shipTo := o.FulfillmentStartInstructions[0].ShippingStep.ShipTo
		meta["ship_to"] = map[string]string{
			"full_name":    shipTo.FullName,
			"city":         shipTo.ContactAddress.City,
			"state":        shipTo.ContactAddress.StateOrProvince,
			"postal_code":  shipTo.ContactAddress.PostalCode,
			"country_code": shipTo.ContactAddress.CountryCode,
		}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return raw
}

// Ensure EbayAdapter implements the marketplace ports
var (
	_ integration.MarketplaceClient = (*EbayAdapter)(nil)
	_ integration.OrderPageSource   = (*EbayAdapter)(nil)
)
