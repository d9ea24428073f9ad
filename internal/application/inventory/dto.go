package inventory

import (
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"github.com/google/uuid"
)

// RegisterItemRequest represents a request to register a catalog SKU
type RegisterItemRequest struct {
	SKU      string `json:"sku" binding:"required,sku,max=50"`
	Title    string `json:"title" binding:"max=200"`
	Quantity int64  `json:"quantity" binding:"min=0"`
	Verified bool   `json:"verified"`
}

// SetQuantityRequest represents a manual quantity edit
type SetQuantityRequest struct {
	Quantity int64  `json:"quantity" binding:"min=0"`
	Reason   string `json:"reason" binding:"max=255"`
}

// RecordSaleRequest represents units sold outside the marketplace
type RecordSaleRequest struct {
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
	Reference string `json:"reference" binding:"max=100"`
}

// SetVerifiedRequest toggles marketplace mirroring for an item
type SetVerifiedRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// InventoryItemResponse represents an inventory item in API responses
type InventoryItemResponse struct {
	ID        uuid.UUID `json:"id"`
	SKU       string    `json:"sku"`
	Title     string    `json:"title"`
	Quantity  int64     `json:"quantity"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuantityChangeResponse reports an applied quantity mutation
type QuantityChangeResponse struct {
	SKU    string `json:"sku"`
	Before int64  `json:"before"`
	After  int64  `json:"after"`
	// Mirrored is true when a marketplace push was queued
	Mirrored       bool       `json:"mirrored"`
	LedgerRecordID *uuid.UUID `json:"ledger_record_id,omitempty"`
}

// ToInventoryItemResponse converts a domain item to a response
func ToInventoryItemResponse(item *inventory.InventoryItem) InventoryItemResponse {
	return InventoryItemResponse{
		ID:        item.ID,
		SKU:       item.SKU,
		Title:     item.Title,
		Quantity:  item.Quantity,
		Verified:  item.Verified,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
	}
}
