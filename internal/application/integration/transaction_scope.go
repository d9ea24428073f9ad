package integration

import (
	"context"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
)

// TransactionScope runs reconciliation steps atomically. Everything a single
// order line or manual edit touches (quantity, ledger, line record, audit) is
// committed or rolled back together, which keeps re-delivery idempotent.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes repositories bound to the current transaction
type TransactionalRepositories interface {
	InventoryRepo() inventory.InventoryItemRepository
	StockSyncRepo() integration.StockSyncRecordRepository
	OrderLineRepo() integration.RemoteOrderLineRepository
	AuditLog() integration.AuditLog
}

// NoOpTransactionScope runs the function against plain repositories without a transaction
type NoOpTransactionScope struct {
	inventoryRepo inventory.InventoryItemRepository
	stockSyncRepo integration.StockSyncRecordRepository
	orderLineRepo integration.RemoteOrderLineRepository
	auditLog      integration.AuditLog
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	inventoryRepo inventory.InventoryItemRepository,
	stockSyncRepo integration.StockSyncRecordRepository,
	orderLineRepo integration.RemoteOrderLineRepository,
	auditLog integration.AuditLog,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		inventoryRepo: inventoryRepo,
		stockSyncRepo: stockSyncRepo,
		orderLineRepo: orderLineRepo,
		auditLog:      auditLog,
	}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InventoryRepo returns the inventory item repository.
func (s *NoOpTransactionScope) InventoryRepo() inventory.InventoryItemRepository {
	return s.inventoryRepo
}

// StockSyncRepo returns the ledger repository.
func (s *NoOpTransactionScope) StockSyncRepo() integration.StockSyncRecordRepository {
	return s.stockSyncRepo
}

// OrderLineRepo returns the order line repository.
func (s *NoOpTransactionScope) OrderLineRepo() integration.RemoteOrderLineRepository {
	return s.orderLineRepo
}

// AuditLog returns the audit sink.
func (s *NoOpTransactionScope) AuditLog() integration.AuditLog {
	return s.auditLog
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
