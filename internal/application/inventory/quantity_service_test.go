package inventory

import (
	"context"
	"testing"
	"time"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockInventoryItemRepository is a mock implementation of InventoryItemRepository
type MockInventoryItemRepository struct {
	mock.Mock
}

func (m *MockInventoryItemRepository) FindBySKU(ctx context.Context, sku string) (*inventory.InventoryItem, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.InventoryItem), args.Error(1)
}

func (m *MockInventoryItemRepository) Create(ctx context.Context, item *inventory.InventoryItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockInventoryItemRepository) UpdateQuantity(ctx context.Context, sku string, quantity int64) (inventory.QuantityChange, error) {
	args := m.Called(ctx, sku, quantity)
	return args.Get(0).(inventory.QuantityChange), args.Error(1)
}

func (m *MockInventoryItemRepository) IncrementQuantity(ctx context.Context, sku string, delta int64) (inventory.QuantityChange, error) {
	args := m.Called(ctx, sku, delta)
	return args.Get(0).(inventory.QuantityChange), args.Error(1)
}

func (m *MockInventoryItemRepository) SetVerified(ctx context.Context, sku string, verified bool) error {
	args := m.Called(ctx, sku, verified)
	return args.Error(0)
}

// MockStockSyncRecordRepository is a mock implementation of StockSyncRecordRepository
type MockStockSyncRecordRepository struct {
	mock.Mock
}

func (m *MockStockSyncRecordRepository) UpsertOutstanding(ctx context.Context, sku string, oldQuantity, newQuantity int64) (*integration.StockSyncRecord, error) {
	args := m.Called(ctx, sku, oldQuantity, newQuantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.StockSyncRecord), args.Error(1)
}

func (m *MockStockSyncRecordRepository) FindDue(ctx context.Context, limit, maxAttempts int, _ ...uuid.UUID) ([]integration.StockSyncRecord, error) {
	args := m.Called(ctx, limit, maxAttempts)
	return args.Get(0).([]integration.StockSyncRecord), args.Error(1)
}

func (m *MockStockSyncRecordRepository) FindStuck(ctx context.Context, maxAttempts, limit int) ([]integration.StockSyncRecord, error) {
	args := m.Called(ctx, maxAttempts, limit)
	return args.Get(0).([]integration.StockSyncRecord), args.Error(1)
}

func (m *MockStockSyncRecordRepository) FindOutstandingBySKU(ctx context.Context, sku string) (*integration.StockSyncRecord, error) {
	args := m.Called(ctx, sku)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.StockSyncRecord), args.Error(1)
}

func (m *MockStockSyncRecordRepository) FindBySKU(ctx context.Context, sku string, limit int) ([]integration.StockSyncRecord, error) {
	args := m.Called(ctx, sku, limit)
	return args.Get(0).([]integration.StockSyncRecord), args.Error(1)
}

func (m *MockStockSyncRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.StockSyncRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.StockSyncRecord), args.Error(1)
}

func (m *MockStockSyncRecordRepository) MarkSynced(ctx context.Context, targets []integration.StockSyncTarget, response string, at time.Time) (int64, error) {
	args := m.Called(ctx, targets, response, at)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStockSyncRecordRepository) RecordFailure(ctx context.Context, targets []integration.StockSyncTarget, payload string) (int64, error) {
	args := m.Called(ctx, targets, payload)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStockSyncRecordRepository) ResetAttempts(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAuditLog is a mock implementation of integration.AuditLog
type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) AppendLog(ctx context.Context, entityType, entityID, message string) error {
	args := m.Called(ctx, entityType, entityID, message)
	return args.Error(0)
}

type quantityServiceFixture struct {
	inventoryRepo *MockInventoryItemRepository
	ledgerRepo    *MockStockSyncRecordRepository
	auditLog      *MockAuditLog
	service       *QuantityService
}

func newQuantityServiceFixture() *quantityServiceFixture {
	f := &quantityServiceFixture{
		inventoryRepo: new(MockInventoryItemRepository),
		ledgerRepo:    new(MockStockSyncRecordRepository),
		auditLog:      new(MockAuditLog),
	}
	scope := appintegration.NewNoOpTransactionScope(f.inventoryRepo, f.ledgerRepo, nil, f.auditLog)
	f.service = NewQuantityService(f.inventoryRepo, scope, nil)
	return f
}

func TestQuantityService_SetQuantity_MirrorsVerifiedItem(t *testing.T) {
	ctx := context.Background()
	f := newQuantityServiceFixture()

	record, err := integration.NewStockSyncRecord("ABC-1", 10, 4)
	require.NoError(t, err)

	f.inventoryRepo.On("UpdateQuantity", ctx, "ABC-1", int64(4)).
		Return(inventory.QuantityChange{SKU: "ABC-1", Before: 10, After: 4, Verified: true}, nil)
	f.ledgerRepo.On("UpsertOutstanding", ctx, "ABC-1", int64(10), int64(4)).Return(record, nil)
	f.auditLog.On("AppendLog", ctx, integration.AuditEntityInventory, "ABC-1",
		"quantity set 10 -> 4: recount; marketplace push of 4 queued").Return(nil)

	resp, err := f.service.SetQuantity(ctx, "ABC-1", SetQuantityRequest{Quantity: 4, Reason: "recount"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), resp.Before)
	assert.Equal(t, int64(4), resp.After)
	assert.True(t, resp.Mirrored)
	require.NotNil(t, resp.LedgerRecordID)
	assert.Equal(t, record.ID, *resp.LedgerRecordID)

	f.inventoryRepo.AssertExpectations(t)
	f.ledgerRepo.AssertExpectations(t)
	f.auditLog.AssertExpectations(t)
}

func TestQuantityService_RecordSale_UnverifiedIsNotMirrored(t *testing.T) {
	ctx := context.Background()
	f := newQuantityServiceFixture()

	f.inventoryRepo.On("IncrementQuantity", ctx, "ABC-1", int64(-3)).
		Return(inventory.QuantityChange{SKU: "ABC-1", Before: 10, After: 7, Verified: false}, nil)
	f.auditLog.On("AppendLog", ctx, integration.AuditEntityInventory, "ABC-1", "sale of 3 (10 -> 7) ref POS-9").Return(nil)

	resp, err := f.service.RecordSale(ctx, "ABC-1", RecordSaleRequest{Quantity: 3, Reference: "POS-9"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), resp.After)
	assert.False(t, resp.Mirrored)
	assert.Nil(t, resp.LedgerRecordID)

	f.ledgerRepo.AssertNotCalled(t, "UpsertOutstanding", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.auditLog.AssertExpectations(t)
}

func TestQuantityService_Validation(t *testing.T) {
	ctx := context.Background()
	f := newQuantityServiceFixture()

	_, err := f.service.RecordSale(ctx, "ABC-1", RecordSaleRequest{Quantity: 0})
	assert.ErrorIs(t, err, shared.NewDomainError("INVALID_QUANTITY", ""))

	_, err = f.service.SetQuantity(ctx, "ABC-1", SetQuantityRequest{Quantity: -1})
	assert.ErrorIs(t, err, shared.NewDomainError("INVALID_QUANTITY", ""))

	_, err = f.service.RegisterItem(ctx, RegisterItemRequest{SKU: " ", Quantity: 1})
	assert.ErrorIs(t, err, shared.NewDomainError("INVALID_SKU", ""))
}

func TestQuantityService_SetQuantity_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newQuantityServiceFixture()

	f.inventoryRepo.On("UpdateQuantity", ctx, "MISSING", int64(1)).
		Return(inventory.QuantityChange{}, shared.ErrNotFound)

	_, err := f.service.SetQuantity(ctx, "MISSING", SetQuantityRequest{Quantity: 1})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	f.auditLog.AssertNotCalled(t, "AppendLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestQuantityService_RegisterItem(t *testing.T) {
	ctx := context.Background()
	f := newQuantityServiceFixture()

	record, err := integration.NewStockSyncRecord("NEW-1", 0, 5)
	require.NoError(t, err)
	f.inventoryRepo.On("Create", ctx, mock.MatchedBy(func(item *inventory.InventoryItem) bool {
		return item.SKU == "NEW-1" && item.Quantity == 5 && item.Verified
	})).Return(nil)
	f.ledgerRepo.On("UpsertOutstanding", ctx, "NEW-1", int64(0), int64(5)).Return(record, nil)
	f.auditLog.On("AppendLog", ctx, integration.AuditEntityInventory, "NEW-1", mock.AnythingOfType("string")).Return(nil)

	resp, err := f.service.RegisterItem(ctx, RegisterItemRequest{SKU: "NEW-1", Title: "New", Quantity: 5, Verified: true})
	require.NoError(t, err)
	assert.Equal(t, "NEW-1", resp.SKU)
	assert.Equal(t, int64(5), resp.Quantity)
	f.ledgerRepo.AssertExpectations(t)
}

func TestQuantityService_SetVerified(t *testing.T) {
	ctx := context.Background()
	f := newQuantityServiceFixture()

	item, err := inventory.NewInventoryItem("ABC-1", "Widget", 3, true)
	require.NoError(t, err)
	f.inventoryRepo.On("SetVerified", ctx, "ABC-1", true).Return(nil)
	f.inventoryRepo.On("FindBySKU", ctx, "ABC-1").Return(item, nil)
	f.auditLog.On("AppendLog", ctx, integration.AuditEntityInventory, "ABC-1", "verified set to true").Return(nil)

	resp, err := f.service.SetVerified(ctx, "ABC-1", true)
	require.NoError(t, err)
	assert.True(t, resp.Verified)
	f.inventoryRepo.AssertExpectations(t)
}

func TestQuantityService_WaitsForSharedSKULock(t *testing.T) {
	ctx := context.Background()
	f := newQuantityServiceFixture()
	locks := appintegration.NewKeyedMutex()
	scope := appintegration.NewNoOpTransactionScope(f.inventoryRepo, f.ledgerRepo, nil, f.auditLog)
	f.service = NewQuantityService(f.inventoryRepo, scope, nil, WithQuantityLocks(locks))

	f.inventoryRepo.On("UpdateQuantity", ctx, "ABC-1", int64(4)).
		Return(inventory.QuantityChange{SKU: "ABC-1", Before: 10, After: 4}, nil)
	f.auditLog.On("AppendLog", ctx, integration.AuditEntityInventory, "ABC-1", "quantity set 10 -> 4").Return(nil)

	unlock := locks.Lock(appintegration.SKULockKey("ABC-1"))
	done := make(chan error, 1)
	go func() {
		_, err := f.service.SetQuantity(ctx, "ABC-1", SetQuantityRequest{Quantity: 4})
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("quantity changed while another writer held the SKU")
	case <-time.After(50 * time.Millisecond):
	}
	f.inventoryRepo.AssertNotCalled(t, "UpdateQuantity", ctx, "ABC-1", int64(4))

	unlock()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("quantity change never ran after the lock was released")
	}
	f.inventoryRepo.AssertExpectations(t)
	assert.Equal(t, 0, locks.Len())
}
