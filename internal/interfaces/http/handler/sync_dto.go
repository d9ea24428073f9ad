package handler

import (
	"encoding/json"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/google/uuid"
)

// EnqueueLedgerRequest asks for a marketplace quantity push
// @Description Desired marketplace quantity for a SKU
type EnqueueLedgerRequest struct {
	SKU      string `json:"sku" binding:"required,sku,max=50" example:"WIDGET-001"`
	Quantity *int64 `json:"quantity" binding:"required,min=0" example:"12"`
}

// InboundCycleRequest optionally pins the order window of a manual inbound cycle.
// Both bounds must be given together; the window is [window_start, window_end).
// @Description Optional inbound window
type InboundCycleRequest struct {
	WindowStart *time.Time `json:"window_start" example:"2026-01-23T10:00:00Z"`
	WindowEnd   *time.Time `json:"window_end" example:"2026-01-23T12:00:00Z"`
}

// CycleQuery selects synchronous execution of a manual cycle
type CycleQuery struct {
	Wait bool `form:"wait"`
}

// LedgerRecordResponse is one ledger entry
// @Description Outbound ledger entry
type LedgerRecordResponse struct {
	ID           uuid.UUID  `json:"id"`
	SKU          string     `json:"sku" example:"WIDGET-001"`
	OldQuantity  int64      `json:"old_quantity" example:"10"`
	NewQuantity  int64      `json:"new_quantity" example:"12"`
	AttemptCount int        `json:"attempt_count" example:"0"`
	LastResponse string     `json:"last_response,omitempty"`
	Synced       bool       `json:"synced" example:"false"`
	SyncedAt     *time.Time `json:"synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toLedgerRecordResponse(r *integration.StockSyncRecord) LedgerRecordResponse {
	return LedgerRecordResponse{
		ID:           r.ID,
		SKU:          r.SKU,
		OldQuantity:  r.OldQuantity,
		NewQuantity:  r.NewQuantity,
		AttemptCount: r.AttemptCount,
		LastResponse: r.LastResponse,
		Synced:       r.Synced,
		SyncedAt:     r.SyncedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toLedgerRecordResponses(records []integration.StockSyncRecord) []LedgerRecordResponse {
	out := make([]LedgerRecordResponse, len(records))
	for i := range records {
		out[i] = toLedgerRecordResponse(&records[i])
	}
	return out
}

// OrderLineResponse is one observed marketplace order line with its decision log
// @Description Remote order line
type OrderLineResponse struct {
	OrderID         string          `json:"order_id" example:"12-34567-89012"`
	LineItemID      string          `json:"line_item_id" example:"10012345678"`
	SKU             string          `json:"sku" example:"WIDGET-001"`
	Quantity        int64           `json:"quantity" example:"1"`
	Status          string          `json:"status" example:"OPEN"`
	StockApplied    bool            `json:"stock_applied"`
	OrderCreatedAt  time.Time       `json:"order_created_at"`
	OrderModifiedAt time.Time       `json:"order_modified_at"`
	Metadata        json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
	Notes           []string        `json:"notes"`
}

func toOrderLineResponses(lines []integration.RemoteOrderLine) []OrderLineResponse {
	out := make([]OrderLineResponse, len(lines))
	for i := range lines {
		l := &lines[i]
		notes := l.NoteEntries()
		if notes == nil {
			notes = []string{}
		}
		out[i] = OrderLineResponse{
			OrderID:         l.OrderID,
			LineItemID:      l.LineItemID,
			SKU:             l.SKU,
			Quantity:        l.Quantity,
			Status:          l.Status.String(),
			StockApplied:    l.StockApplied,
			OrderCreatedAt:  l.OrderCreatedAt,
			OrderModifiedAt: l.OrderModifiedAt,
			Metadata:        l.Metadata,
			Notes:           notes,
		}
	}
	return out
}

// AuditEntryResponse is one audit log line
// @Description Audit log entry
type AuditEntryResponse struct {
	ID         uuid.UUID `json:"id"`
	EntityType string    `json:"entity_type" example:"stock_sync_record"`
	EntityID   string    `json:"entity_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func toAuditEntryResponses(entries []integration.AuditEntry) []AuditEntryResponse {
	out := make([]AuditEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = AuditEntryResponse{
			ID:         e.ID,
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Message:    e.Message,
			CreatedAt:  e.CreatedAt,
		}
	}
	return out
}
