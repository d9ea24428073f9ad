package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit entity types
const (
	AuditEntityOrderLine  = "remote_order_line"
	AuditEntityStockSync  = "stock_sync_record"
	AuditEntitySyncCycle  = "sync_cycle"
	AuditEntityInventory  = "inventory_item"
	maxAuditMessageLength = 8000
)

// AuditEntry is one append-only log line
type AuditEntry struct {
	ID         uuid.UUID
	EntityType string
	EntityID   string
	Message    string
	CreatedAt  time.Time
}

// NewAuditEntry builds an entry, truncating oversized upstream payloads
func NewAuditEntry(entityType, entityID, message string) AuditEntry {
	if len(message) > maxAuditMessageLength {
		message = message[:maxAuditMessageLength] + "...(truncated)"
	}
	return AuditEntry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Message:    message,
		CreatedAt:  time.Now(),
	}
}

// AuditLog is the append-only sink consumed by the sync engine
type AuditLog interface {
	AppendLog(ctx context.Context, entityType, entityID, message string) error
}

// AuditLogRepository adds read access for operators
type AuditLogRepository interface {
	AuditLog
	FindByEntity(ctx context.Context, entityType, entityID string, limit int) ([]AuditEntry, error)
}
