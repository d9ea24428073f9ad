package inventory

import (
	"context"
)

// InventoryItemRepository defines persistence for inventory items.
// Quantity writes are atomic at the storage layer; implementations must not
// read-modify-write in application code.
type InventoryItemRepository interface {
	// FindBySKU finds an item by SKU, returning shared.ErrNotFound if absent
	FindBySKU(ctx context.Context, sku string) (*InventoryItem, error)

	// Create inserts a new item, returning shared.ErrAlreadyExists on a duplicate SKU
	Create(ctx context.Context, item *InventoryItem) error

	// UpdateQuantity sets an absolute quantity and reports the previous value
	UpdateQuantity(ctx context.Context, sku string, quantity int64) (QuantityChange, error)

	// IncrementQuantity atomically adds delta (negative to decrement)
	IncrementQuantity(ctx context.Context, sku string, delta int64) (QuantityChange, error)

	// SetVerified toggles the verified flag
	SetVerified(ctx context.Context, sku string, verified bool) error
}
