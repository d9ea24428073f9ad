package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInventoryItemRepository implements InventoryItemRepository using GORM.
// Quantity changes are computed by the database (quantity = quantity + ?) so
// concurrent writers never lose an update.
type GormInventoryItemRepository struct {
	db *gorm.DB
}

// NewGormInventoryItemRepository creates a new GormInventoryItemRepository
func NewGormInventoryItemRepository(db *gorm.DB) *GormInventoryItemRepository {
	return &GormInventoryItemRepository{db: db}
}

// FindBySKU finds an inventory item by SKU
func (r *GormInventoryItemRepository) FindBySKU(ctx context.Context, sku string) (*inventory.InventoryItem, error) {
	var model models.InventoryItemModel
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new inventory item
func (r *GormInventoryItemRepository) Create(ctx context.Context, item *inventory.InventoryItem) error {
	model := models.InventoryItemModelFromDomain(item)
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyExists
	}
	return nil
}

// UpdateQuantity sets an absolute quantity. The row is locked while the
// previous value is read so Before is exact.
func (r *GormInventoryItemRepository) UpdateQuantity(ctx context.Context, sku string, quantity int64) (inventory.QuantityChange, error) {
	var change inventory.QuantityChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.InventoryItemModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("sku = ?", sku).
			First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}

		if err := tx.Model(&models.InventoryItemModel{}).
			Where("id = ?", model.ID).
			Updates(map[string]any{
				"quantity":   quantity,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		change = inventory.QuantityChange{
			SKU:      sku,
			Before:   model.Quantity,
			After:    quantity,
			Verified: model.Verified,
		}
		return nil
	})
	return change, err
}

// IncrementQuantity atomically adds delta and reads back the new value in the
// same transaction
func (r *GormInventoryItemRepository) IncrementQuantity(ctx context.Context, sku string, delta int64) (inventory.QuantityChange, error) {
	var change inventory.QuantityChange
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.InventoryItemModel{}).
			Where("sku = ?", sku).
			Updates(map[string]any{
				"quantity":   gorm.Expr("quantity + ?", delta),
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}

		var model models.InventoryItemModel
		if err := tx.Select("quantity", "verified").Where("sku = ?", sku).First(&model).Error; err != nil {
			return err
		}

		change = inventory.QuantityChange{
			SKU:      sku,
			Before:   model.Quantity - delta,
			After:    model.Quantity,
			Verified: model.Verified,
		}
		return nil
	})
	return change, err
}

// SetVerified toggles the verified flag
func (r *GormInventoryItemRepository) SetVerified(ctx context.Context, sku string, verified bool) error {
	result := r.db.WithContext(ctx).Model(&models.InventoryItemModel{}).
		Where("sku = ?", sku).
		Updates(map[string]any{
			"verified":   verified,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormInventoryItemRepository implements InventoryItemRepository
var _ inventory.InventoryItemRepository = (*GormInventoryItemRepository)(nil)
