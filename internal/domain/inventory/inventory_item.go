package inventory

import (
	"strings"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
)

// InventoryItem is the authoritative local quantity on hand for one SKU.
// Quantity may transiently go negative when remote sales race local edits;
// the store never clamps it.
type InventoryItem struct {
	shared.BaseEntity
	SKU      string
	Title    string
	Quantity int64
	// Verified gates whether quantity changes are mirrored to the marketplace ledger
	Verified bool
}

// NewInventoryItem creates a new inventory item for a SKU
func NewInventoryItem(sku, title string, quantity int64, verified bool) (*InventoryItem, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if len(sku) > 50 {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot exceed 50 characters")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Initial quantity cannot be negative")
	}

	return &InventoryItem{
		BaseEntity: shared.NewBaseEntity(),
		SKU:        sku,
		Title:      strings.TrimSpace(title),
		Quantity:   quantity,
		Verified:   verified,
	}, nil
}

// QuantityChange describes one applied quantity mutation, captured atomically
// by the store so callers can mirror it without re-reading the row.
type QuantityChange struct {
	SKU      string
	Before   int64
	After    int64
	Verified bool
}

// Delta returns After - Before
func (c QuantityChange) Delta() int64 {
	return c.After - c.Before
}

// Changed reports whether the mutation actually moved the quantity
func (c QuantityChange) Changed() bool {
	return c.Before != c.After
}

// ShouldMirror reports whether the change must be pushed outward
func (c QuantityChange) ShouldMirror() bool {
	return c.Verified && c.Changed()
}
