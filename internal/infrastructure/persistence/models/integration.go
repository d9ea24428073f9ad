package models

import (
	"encoding/json"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/google/uuid"
)

// StockSyncRecordModel is the persistence model for ledger entries.
// The partial unique index allows one outstanding entry per SKU.
type StockSyncRecordModel struct {
	BaseModel
	SKU          string     `gorm:"type:varchar(50);not null;index:idx_stock_sync_records_sku;uniqueIndex:idx_stock_sync_outstanding,where:synced = false"`
	OldQuantity  int64      `gorm:"type:bigint;not null"`
	NewQuantity  int64      `gorm:"type:bigint;not null"`
	AttemptCount int        `gorm:"not null;default:0"`
	LastResponse string     `gorm:"type:text;not null;default:''"`
	Synced       bool       `gorm:"not null;default:false"`
	SyncedAt     *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (StockSyncRecordModel) TableName() string {
	return "stock_sync_records"
}

// ToDomain converts the persistence model to a domain StockSyncRecord.
func (m *StockSyncRecordModel) ToDomain() *integration.StockSyncRecord {
	return &integration.StockSyncRecord{
		BaseEntity:   m.BaseModel.ToDomain(),
		SKU:          m.SKU,
		OldQuantity:  m.OldQuantity,
		NewQuantity:  m.NewQuantity,
		AttemptCount: m.AttemptCount,
		LastResponse: m.LastResponse,
		Synced:       m.Synced,
		SyncedAt:     m.SyncedAt,
	}
}

// FromDomain populates the persistence model from a domain StockSyncRecord.
func (m *StockSyncRecordModel) FromDomain(r *integration.StockSyncRecord) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.SKU = r.SKU
	m.OldQuantity = r.OldQuantity
	m.NewQuantity = r.NewQuantity
	m.AttemptCount = r.AttemptCount
	m.LastResponse = r.LastResponse
	m.Synced = r.Synced
	m.SyncedAt = r.SyncedAt
}

// RemoteOrderLineModel is the persistence model for observed order lines.
type RemoteOrderLineModel struct {
	BaseModel
	OrderID         string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_remote_order_lines_key,priority:1"`
	LineItemID      string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_remote_order_lines_key,priority:2"`
	SKU             string    `gorm:"type:varchar(50);not null;default:'';index:idx_remote_order_lines_sku"`
	Quantity        int64     `gorm:"type:bigint;not null"`
	Status          string    `gorm:"type:varchar(20);not null"`
	OrderCreatedAt  time.Time `gorm:"not null"`
	OrderModifiedAt time.Time
	StockApplied    bool   `gorm:"not null;default:false"`
	Metadata        string `gorm:"type:jsonb;not null;default:'{}'"`
	Notes           string `gorm:"type:text;not null;default:''"`
}

// TableName returns the table name for GORM
func (RemoteOrderLineModel) TableName() string {
	return "remote_order_lines"
}

// ToDomain converts the persistence model to a domain RemoteOrderLine.
func (m *RemoteOrderLineModel) ToDomain() *integration.RemoteOrderLine {
	line := &integration.RemoteOrderLine{
		BaseEntity:      m.BaseModel.ToDomain(),
		OrderID:         m.OrderID,
		LineItemID:      m.LineItemID,
		SKU:             m.SKU,
		Quantity:        m.Quantity,
		Status:          integration.FulfillmentStatus(m.Status),
		OrderCreatedAt:  m.OrderCreatedAt,
		OrderModifiedAt: m.OrderModifiedAt,
		StockApplied:    m.StockApplied,
		Notes:           m.Notes,
	}
	if m.Metadata != "" && m.Metadata != "{}" {
		line.Metadata = json.RawMessage(m.Metadata)
	}
	return line
}

// FromDomain populates the persistence model from a domain RemoteOrderLine.
func (m *RemoteOrderLineModel) FromDomain(l *integration.RemoteOrderLine) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.OrderID = l.OrderID
	m.LineItemID = l.LineItemID
	m.SKU = l.SKU
	m.Quantity = l.Quantity
	m.Status = l.Status.String()
	m.OrderCreatedAt = l.OrderCreatedAt
	m.OrderModifiedAt = l.OrderModifiedAt
	m.StockApplied = l.StockApplied
	m.Notes = l.Notes
	m.Metadata = "{}"
	if len(l.Metadata) > 0 && json.Valid(l.Metadata) {
		m.Metadata = string(l.Metadata)
	}
}

// AuditLogModel is one append-only audit line.
type AuditLogModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	EntityType string    `gorm:"type:varchar(50);not null;index:idx_audit_logs_entity,priority:1"`
	EntityID   string    `gorm:"type:varchar(255);not null;index:idx_audit_logs_entity,priority:2"`
	Message    string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"not null;index:idx_audit_logs_entity,priority:3"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry.
func (m *AuditLogModel) ToDomain() integration.AuditEntry {
	return integration.AuditEntry{
		ID:         m.ID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Message:    m.Message,
		CreatedAt:  m.CreatedAt,
	}
}

// AuditLogModelFromDomain creates a persistence model from an AuditEntry.
func AuditLogModelFromDomain(e integration.AuditEntry) *AuditLogModel {
	return &AuditLogModel{
		ID:         e.ID,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Message:    e.Message,
		CreatedAt:  e.CreatedAt,
	}
}

// AllModels lists every table for AutoMigrate in tests
func AllModels() []any {
	return []any{
		&InventoryItemModel{},
		&StockSyncRecordModel{},
		&RemoteOrderLineModel{},
		&AuditLogModel{},
	}
}
