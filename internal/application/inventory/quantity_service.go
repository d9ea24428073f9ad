package inventory

import (
	"context"
	"fmt"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// QuantityService handles human-driven quantity changes. Every change runs in
// one transaction with its ledger mirror and audit entry.
type QuantityService struct {
	inventoryRepo inventory.InventoryItemRepository
	scope         appintegration.TransactionScope
	locks         *appintegration.KeyedMutex
	logger        *zap.Logger
}

// QuantityServiceOption configures a QuantityService
type QuantityServiceOption func(*QuantityService)

// WithQuantityLocks serializes changes per SKU with the order reconciler
func WithQuantityLocks(locks *appintegration.KeyedMutex) QuantityServiceOption {
	return func(s *QuantityService) {
		if locks != nil {
			s.locks = locks
		}
	}
}

// NewQuantityService creates a new QuantityService
func NewQuantityService(
	inventoryRepo inventory.InventoryItemRepository,
	scope appintegration.TransactionScope,
	logger *zap.Logger,
	opts ...QuantityServiceOption,
) *QuantityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &QuantityService{
		inventoryRepo: inventoryRepo,
		scope:         scope,
		locks:         appintegration.NewKeyedMutex(),
		logger:        logger.Named("quantity_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterItem creates an inventory item. A verified item with stock is queued
// for its first marketplace push.
func (s *QuantityService) RegisterItem(ctx context.Context, req RegisterItemRequest) (*InventoryItemResponse, error) {
	item, err := inventory.NewInventoryItem(req.SKU, req.Title, req.Quantity, req.Verified)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos appintegration.TransactionalRepositories) error {
		if err := repos.InventoryRepo().Create(ctx, item); err != nil {
			return err
		}
		change := inventory.QuantityChange{SKU: item.SKU, Before: 0, After: item.Quantity, Verified: item.Verified}
		if _, err := appintegration.MirrorQuantityChange(ctx, repos.StockSyncRepo(), change); err != nil {
			return err
		}
		msg := fmt.Sprintf("registered with quantity %d (verified=%t)", item.Quantity, item.Verified)
		return repos.AuditLog().AppendLog(ctx, integration.AuditEntityInventory, item.SKU, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inventory item registered",
		zap.String("sku", item.SKU),
		zap.Int64("quantity", item.Quantity),
		zap.Bool("verified", item.Verified),
	)
	resp := ToInventoryItemResponse(item)
	return &resp, nil
}

// GetItem returns the item for sku
func (s *QuantityService) GetItem(ctx context.Context, sku string) (*InventoryItemResponse, error) {
	item, err := s.inventoryRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	resp := ToInventoryItemResponse(item)
	return &resp, nil
}

// SetQuantity applies a manual edit
func (s *QuantityService) SetQuantity(ctx context.Context, sku string, req SetQuantityRequest) (*QuantityChangeResponse, error) {
	if req.Quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity cannot be negative")
	}
	return s.apply(ctx, sku, func(repo inventory.InventoryItemRepository) (inventory.QuantityChange, string, error) {
		change, err := repo.UpdateQuantity(ctx, sku, req.Quantity)
		if err != nil {
			return change, "", err
		}
		msg := fmt.Sprintf("quantity set %d -> %d", change.Before, change.After)
		if req.Reason != "" {
			msg += ": " + req.Reason
		}
		return change, msg, nil
	})
}

// RecordSale decrements the item by units sold through another channel
func (s *QuantityService) RecordSale(ctx context.Context, sku string, req RecordSaleRequest) (*QuantityChangeResponse, error) {
	if req.Quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Sold quantity must be positive")
	}
	return s.apply(ctx, sku, func(repo inventory.InventoryItemRepository) (inventory.QuantityChange, string, error) {
		change, err := repo.IncrementQuantity(ctx, sku, -req.Quantity)
		if err != nil {
			return change, "", err
		}
		msg := fmt.Sprintf("sale of %d (%d -> %d)", req.Quantity, change.Before, change.After)
		if req.Reference != "" {
			msg += " ref " + req.Reference
		}
		return change, msg, nil
	})
}

// SetVerified toggles whether future changes are mirrored
func (s *QuantityService) SetVerified(ctx context.Context, sku string, verified bool) (*InventoryItemResponse, error) {
	var item *inventory.InventoryItem
	err := s.scope.Execute(ctx, func(repos appintegration.TransactionalRepositories) error {
		if err := repos.InventoryRepo().SetVerified(ctx, sku, verified); err != nil {
			return err
		}
		var err error
		item, err = repos.InventoryRepo().FindBySKU(ctx, sku)
		if err != nil {
			return err
		}
		return repos.AuditLog().AppendLog(ctx, integration.AuditEntityInventory, sku, fmt.Sprintf("verified set to %t", verified))
	})
	if err != nil {
		return nil, err
	}
	resp := ToInventoryItemResponse(item)
	return &resp, nil
}

type quantityMutation func(repo inventory.InventoryItemRepository) (inventory.QuantityChange, string, error)

func (s *QuantityService) apply(ctx context.Context, sku string, mutate quantityMutation) (*QuantityChangeResponse, error) {
	resp := &QuantityChangeResponse{SKU: sku}

	unlock := s.locks.Lock(appintegration.SKULockKey(sku))
	defer unlock()

	err := s.scope.Execute(ctx, func(repos appintegration.TransactionalRepositories) error {
		change, msg, err := mutate(repos.InventoryRepo())
		if err != nil {
			return err
		}
		resp.Before = change.Before
		resp.After = change.After

		record, err := appintegration.MirrorQuantityChange(ctx, repos.StockSyncRepo(), change)
		if err != nil {
			return err
		}
		if record != nil {
			resp.Mirrored = true
			id := record.ID
			resp.LedgerRecordID = &id
			msg += fmt.Sprintf("; marketplace push of %d queued", record.NewQuantity)
		}
		return repos.AuditLog().AppendLog(ctx, integration.AuditEntityInventory, sku, msg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Inventory quantity changed",
		zap.String("sku", sku),
		zap.Int64("before", resp.Before),
		zap.Int64("after", resp.After),
		zap.Bool("mirrored", resp.Mirrored),
	)
	return resp, nil
}
