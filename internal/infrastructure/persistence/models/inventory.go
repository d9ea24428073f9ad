package models

import (
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
)

// InventoryItemModel is the persistence model for the InventoryItem domain entity.
type InventoryItemModel struct {
	BaseModel
	SKU      string `gorm:"type:varchar(50);not null;uniqueIndex:idx_inventory_items_sku"`
	Title    string `gorm:"type:varchar(255);not null;default:''"`
	Quantity int64  `gorm:"type:bigint;not null;default:0"`
	Verified bool   `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (InventoryItemModel) TableName() string {
	return "inventory_items"
}

// ToDomain converts the persistence model to a domain InventoryItem entity.
func (m *InventoryItemModel) ToDomain() *inventory.InventoryItem {
	return &inventory.InventoryItem{
		BaseEntity: m.BaseModel.ToDomain(),
		SKU:        m.SKU,
		Title:      m.Title,
		Quantity:   m.Quantity,
		Verified:   m.Verified,
	}
}

// FromDomain populates the persistence model from a domain InventoryItem entity.
func (m *InventoryItemModel) FromDomain(item *inventory.InventoryItem) {
	m.FromDomainBaseEntity(item.BaseEntity)
	m.SKU = item.SKU
	m.Title = item.Title
	m.Quantity = item.Quantity
	m.Verified = item.Verified
}

// InventoryItemModelFromDomain creates a new persistence model from domain entity.
func InventoryItemModelFromDomain(item *inventory.InventoryItem) *InventoryItemModel {
	m := &InventoryItemModel{}
	m.FromDomain(item)
	return m
}
