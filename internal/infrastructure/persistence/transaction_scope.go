package persistence

import (
	"context"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// It provides atomic execution of multiple repository operations.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appintegration.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// InventoryRepo returns the inventory item repository scoped to the current transaction.
func (r *gormTransactionalRepositories) InventoryRepo() inventory.InventoryItemRepository {
	return NewGormInventoryItemRepository(r.tx)
}

// StockSyncRepo returns the ledger repository scoped to the current transaction.
func (r *gormTransactionalRepositories) StockSyncRepo() integration.StockSyncRecordRepository {
	return NewGormStockSyncRecordRepository(r.tx)
}

// OrderLineRepo returns the order line repository scoped to the current transaction.
func (r *gormTransactionalRepositories) OrderLineRepo() integration.RemoteOrderLineRepository {
	return NewGormRemoteOrderLineRepository(r.tx)
}

// AuditLog returns the audit sink scoped to the current transaction.
func (r *gormTransactionalRepositories) AuditLog() integration.AuditLog {
	return NewGormAuditLogRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appintegration.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appintegration.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
