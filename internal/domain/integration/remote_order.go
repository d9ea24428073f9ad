package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Fulfillment status
// ---------------------------------------------------------------------------

// FulfillmentStatus is the normalized status of a remote order line
type FulfillmentStatus string

const (
	FulfillmentStatusOpen      FulfillmentStatus = "OPEN"
	FulfillmentStatusShipped   FulfillmentStatus = "SHIPPED"
	FulfillmentStatusCancelled FulfillmentStatus = "CANCELLED"
	FulfillmentStatusUnknown   FulfillmentStatus = "UNKNOWN"
)

// IsValid checks if the status is valid
func (s FulfillmentStatus) IsValid() bool {
	switch s {
	case FulfillmentStatusOpen, FulfillmentStatusShipped, FulfillmentStatusCancelled, FulfillmentStatusUnknown:
		return true
	}
	return false
}

// String returns the string representation
func (s FulfillmentStatus) String() string {
	return string(s)
}

// IsCancelled reports whether the line was cancelled
func (s FulfillmentStatus) IsCancelled() bool {
	return s == FulfillmentStatusCancelled
}

// ParseFulfillmentStatus normalizes free-form status text, falling back to UNKNOWN
func ParseFulfillmentStatus(raw string) FulfillmentStatus {
	s := FulfillmentStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if s == "CANCELED" {
		return FulfillmentStatusCancelled
	}
	if s.IsValid() {
		return s
	}
	return FulfillmentStatusUnknown
}

// ---------------------------------------------------------------------------
// Remote order (value objects produced by the fetcher)
// ---------------------------------------------------------------------------

// RemoteOrder is an order as reported by the marketplace
type RemoteOrder struct {
	OrderID    string
	Status     FulfillmentStatus
	CreatedAt  time.Time
	ModifiedAt time.Time
	Items      []RemoteOrderItem
	// Metadata is buyer and shipping information, passed through untouched
	Metadata json.RawMessage
}

// RemoteOrderItem is one line item of a RemoteOrder
type RemoteOrderItem struct {
	LineItemID string
	SKU        string
	Title      string
	Quantity   int64
	UnitPrice  decimal.Decimal
	Currency   string
	// Status overrides the order status when the marketplace reports it per line
	Status FulfillmentStatus
}

// LineStatus returns the effective status for item within the order
func (o *RemoteOrder) LineStatus(item RemoteOrderItem) FulfillmentStatus {
	if item.Status != "" && item.Status != FulfillmentStatusUnknown {
		return item.Status
	}
	if o.Status == "" {
		return FulfillmentStatusUnknown
	}
	return o.Status
}

// AgeAt returns how old the order is at now
func (o *RemoteOrder) AgeAt(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// ---------------------------------------------------------------------------
// Remote order line (entity)
// ---------------------------------------------------------------------------

// RemoteOrderLine is the durable, deduplicated record of one observed order line,
// keyed by (OrderID, LineItemID). Notes is an append-only decision log.
type RemoteOrderLine struct {
	shared.BaseEntity
	OrderID         string
	LineItemID      string
	SKU             string
	Quantity        int64
	Status          FulfillmentStatus
	OrderCreatedAt  time.Time
	OrderModifiedAt time.Time
	// StockApplied is true while a decrement from this line is in effect
	StockApplied bool
	Metadata     json.RawMessage
	Notes        string
}

// NewRemoteOrderLine creates the record for a first sighting
func NewRemoteOrderLine(order *RemoteOrder, item RemoteOrderItem) (*RemoteOrderLine, error) {
	if order.OrderID == "" || item.LineItemID == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_LINE", "Order ID and line item ID are required")
	}
	if item.Quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Line quantity cannot be negative")
	}
	line := &RemoteOrderLine{
		BaseEntity:      shared.NewBaseEntity(),
		OrderID:         order.OrderID,
		LineItemID:      item.LineItemID,
		SKU:             item.SKU,
		Quantity:        item.Quantity,
		Status:          order.LineStatus(item),
		OrderCreatedAt:  order.CreatedAt,
		OrderModifiedAt: order.ModifiedAt,
		Metadata:        lineMetadata(order, item),
	}
	return line, nil
}

// Key returns the audit entity id of the line
func (l *RemoteOrderLine) Key() string {
	return l.OrderID + "/" + l.LineItemID
}

// AppendNote adds a timestamped entry to the decision log
func (l *RemoteOrderLine) AppendNote(at time.Time, message string) {
	entry := fmt.Sprintf("%s %s", at.UTC().Format(time.RFC3339), message)
	if l.Notes == "" {
		l.Notes = entry
	} else {
		l.Notes += "\n" + entry
	}
	l.Touch()
}

// NoteEntries splits the decision log
func (l *RemoteOrderLine) NoteEntries() []string {
	if l.Notes == "" {
		return nil
	}
	return strings.Split(l.Notes, "\n")
}

// TransitionTo moves the line to status and reports the previous one.
// changed is false when the status is the same.
func (l *RemoteOrderLine) TransitionTo(status FulfillmentStatus, modifiedAt time.Time) (previous FulfillmentStatus, changed bool) {
	previous = l.Status
	if previous == status {
		return previous, false
	}
	l.Status = status
	if !modifiedAt.IsZero() {
		l.OrderModifiedAt = modifiedAt
	}
	l.Touch()
	return previous, true
}

func lineMetadata(order *RemoteOrder, item RemoteOrderItem) json.RawMessage {
	payload := map[string]any{
		"title":    item.Title,
		"currency": item.Currency,
	}
	if !item.UnitPrice.IsZero() {
		payload["unit_price"] = item.UnitPrice.String()
		payload["line_total"] = item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)).String()
	}
	if len(order.Metadata) > 0 && json.Valid(order.Metadata) {
		payload["order"] = order.Metadata
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return raw
}

// RemoteOrderLineRepository persists observed order lines
type RemoteOrderLineRepository interface {
	// FindByKey returns the line or shared.ErrNotFound
	FindByKey(ctx context.Context, orderID, lineItemID string) (*RemoteOrderLine, error)

	// Claim inserts the line unless (OrderID, LineItemID) already exists.
	// claimed is false when another ingestion got there first.
	Claim(ctx context.Context, line *RemoteOrderLine) (claimed bool, err error)

	// Update persists status, StockApplied and Notes
	Update(ctx context.Context, line *RemoteOrderLine) error

	// FindByOrderID lists the lines of one order
	FindByOrderID(ctx context.Context, orderID string) ([]RemoteOrderLine, error)
}
