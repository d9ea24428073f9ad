package ecommerce

// ---------------------------------------------------------------------------
// OAuth
// ---------------------------------------------------------------------------

// EbayTokenResponse is the OAuth refresh grant response
type EbayTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// ---------------------------------------------------------------------------
// Inventory
// ---------------------------------------------------------------------------

// EbayBulkUpdateRequest is the bulk_update_price_quantity request body
type EbayBulkUpdateRequest struct {
	Requests []EbayQuantityRequest `json:"requests"`
}

// EbayQuantityRequest updates the available quantity of one SKU
type EbayQuantityRequest struct {
	SKU                        string                         `json:"sku"`
	ShipToLocationAvailability EbayShipToLocationAvailability `json:"shipToLocationAvailability"`
}

// EbayShipToLocationAvailability holds the quantity available for purchase
type EbayShipToLocationAvailability struct {
	Quantity int64 `json:"quantity"`
}

// ---------------------------------------------------------------------------
// Fulfillment
// ---------------------------------------------------------------------------

// EbayOrderSearchResponse is one page of getOrders
type EbayOrderSearchResponse struct {
	Orders []EbayOrder `json:"orders"`
	Next   string      `json:"next,omitempty"`
	Total  int         `json:"total"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// EbayOrder is an order as returned by the Fulfillment API
type EbayOrder struct {
	OrderID                      string                 `json:"orderId"`
	CreationDate                 string                 `json:"creationDate"`
	LastModifiedDate             string                 `json:"lastModifiedDate"`
	OrderFulfillmentStatus       string                 `json:"orderFulfillmentStatus"`
	OrderPaymentStatus           string                 `json:"orderPaymentStatus"`
	CancelStatus                 EbayCancelStatus       `json:"cancelStatus"`
	Buyer                        EbayBuyer              `json:"buyer"`
	LineItems                    []EbayLineItem         `json:"lineItems"`
	FulfillmentStartInstructions []EbayFulfillmentStart `json:"fulfillmentStartInstructions"`
}

// EbayCancelStatus reports order cancellation
type EbayCancelStatus struct {
	CancelState string `json:"cancelState"`
}

// EbayBuyer identifies the buyer
type EbayBuyer struct {
	Username string `json:"username"`
}

// EbayLineItem is one line of an order
type EbayLineItem struct {
	LineItemID                string     `json:"lineItemId"`
	SKU                       string     `json:"sku"`
	Title                     string     `json:"title"`
	Quantity                  int64      `json:"quantity"`
	LineItemCost              EbayAmount `json:"lineItemCost"`
	LineItemFulfillmentStatus string     `json:"lineItemFulfillmentStatus"`
}

// EbayAmount is a monetary value
type EbayAmount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// EbayFulfillmentStart holds shipping instructions
type EbayFulfillmentStart struct {
	ShippingStep EbayShippingStep `json:"shippingStep"`
}

// EbayShippingStep holds the ship-to address
type EbayShippingStep struct {
	ShipTo EbayShipTo `json:"shipTo"`
}

// EbayShipTo is the recipient
type EbayShipTo struct {
	FullName       string             `json:"fullName"`
	ContactAddress EbayContactAddress `json:"contactAddress"`
}

// EbayContactAddress is the recipient address
type EbayContactAddress struct {
	City            string `json:"city"`
	StateOrProvince string `json:"stateOrProvince"`
	PostalCode      string `json:"postalCode"`
	CountryCode     string `json:"countryCode"`
}

// eBay fulfillment and cancel states
const (
	EbayFulfillmentNotStarted = "NOT_STARTED"
	EbayFulfillmentInProgress = "IN_PROGRESS"
	EbayFulfillmentFulfilled  = "FULFILLED"
	EbayCancelStateCanceled   = "CANCELED"
)
