package persistence

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// creationDateOrders serves orders whose creation date falls inside the requested window
type creationDateOrders struct {
	mu     sync.Mutex
	orders []integration.RemoteOrder
}

func (s *creationDateOrders) set(orders ...integration.RemoteOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = orders
}

func (s *creationDateOrders) FetchOrderPage(_ context.Context, req integration.OrderPageRequest) (*integration.OrderPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := &integration.OrderPage{}
	for _, o := range s.orders {
		if !o.CreatedAt.Before(req.WindowStart) && o.CreatedAt.Before(req.WindowEnd) {
			page.Orders = append(page.Orders, o)
		}
	}
	page.Total = len(page.Orders)
	return page, nil
}

// rejectingClient fails every bulk request that contains one of the rejected SKUs
type rejectingClient struct {
	rejected []string

	mu    sync.Mutex
	calls [][]integration.QuantityUpdate
}

func (c *rejectingClient) BulkUpdateQuantity(_ context.Context, updates []integration.QuantityUpdate) (*integration.BulkUpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, updates)
	for _, u := range updates {
		if slices.Contains(c.rejected, u.SKU) {
			return nil, integration.NewStatusError("bulkUpdatePriceQuantity", 400,
				fmt.Sprintf(`{"errors":[{"errorId":25001,"parameters":[{"name":"sku","value":%q}]}]}`, u.SKU), 0)
		}
	}
	return &integration.BulkUpdateResult{StatusCode: 200, RawResponse: `{"responses":[]}`}, nil
}

type syncHarness struct {
	db         *gorm.DB
	ledger     *GormStockSyncRecordRepository
	inventory  *GormInventoryItemRepository
	stockSync  *appintegration.StockSyncServiceImpl
	orders     *creationDateOrders
	client     *rejectingClient
	clockMu    sync.Mutex
	clock      time.Time
	coordinate *scheduler.SyncCoordinator
}

func (h *syncHarness) now() time.Time {
	h.clockMu.Lock()
	defer h.clockMu.Unlock()
	return h.clock
}

func (h *syncHarness) advance(d time.Duration) {
	h.clockMu.Lock()
	defer h.clockMu.Unlock()
	h.clock = h.clock.Add(d)
}

func newSyncHarness(t *testing.T, start time.Time, rejected ...string) *syncHarness {
	t.Helper()
	db := newTestDB(t)
	h := &syncHarness{
		db:        db,
		ledger:    NewGormStockSyncRecordRepository(db),
		inventory: NewGormInventoryItemRepository(db),
		orders:    &creationDateOrders{},
		client:    &rejectingClient{rejected: rejected},
		clock:     start,
	}

	h.stockSync = appintegration.NewStockSyncService(h.ledger, h.inventory, NewGormAuditLogRepository(db), h.client,
		appintegration.StockSyncConfig{BatchSize: 25, MaxAttempts: 5}, zap.NewNop())
	fetcher := appintegration.NewOrderFetcher(h.orders, appintegration.OrderFetcherConfig{PageSize: 50}, zap.NewNop(),
		appintegration.WithFetcherSleep(func(context.Context, time.Duration) error { return nil }))
	reconciler := appintegration.NewOrderReconciler(NewGormTransactionScope(db),
		appintegration.OrderReconcilerConfig{MaxOrderAge: 24 * time.Hour, Workers: 2}, zap.NewNop(),
		appintegration.WithReconcilerClock(h.now))

	cfg := scheduler.DefaultCoordinatorConfig()
	cfg.CycleTimeout = 10 * time.Second
	cfg.LockTTL = 0
	cfg.MaxAttempts = 5
	h.coordinate = scheduler.NewSyncCoordinator(fetcher, reconciler, h.stockSync, cfg, zap.NewNop(),
		scheduler.WithCoordinatorClock(h.now))
	return h
}

func TestOutboundCycle_RejectedBatchDoesNotHoldBackTheQueue(t *testing.T) {
	ctx := context.Background()
	h := newSyncHarness(t, time.Now(), "BAD")

	seedItem(t, h.db, "BAD", 5, true)
	_, err := h.stockSync.EnqueueDesiredQuantity(ctx, "BAD", 3)
	require.NoError(t, err)
	for i := 0; i < 25; i++ {
		sku := fmt.Sprintf("G-%02d", i)
		seedItem(t, h.db, sku, 10, true)
		time.Sleep(time.Millisecond)
		_, err := h.stockSync.EnqueueDesiredQuantity(ctx, sku, 7)
		require.NoError(t, err)
	}

	job, err := h.coordinate.TriggerOutboundCycle(ctx)
	require.NoError(t, err)

	assert.Equal(t, scheduler.CycleStatusPartial, job.Status)
	assert.Equal(t, 2, job.Outbound.Batches)
	assert.Equal(t, int64(25), job.Outbound.Failed)
	assert.Equal(t, int64(1), job.Outbound.Synced)
	require.Len(t, h.client.calls, 2)
	assert.Len(t, h.client.calls[0], 25)
	assert.Equal(t, []integration.QuantityUpdate{{SKU: "G-24", Quantity: 7}}, h.client.calls[1])

	_, err = h.ledger.FindOutstandingBySKU(ctx, "G-24")
	assert.Error(t, err, "the entry behind the rejected batch was pushed in the same cycle")

	for _, sku := range []string{"BAD", "G-00", "G-23"} {
		rec, err := h.ledger.FindOutstandingBySKU(ctx, sku)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.AttemptCount, sku)
	}
}

func TestInboundCycles_CancellationAfterFirstWindowIsRestored(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newSyncHarness(t, t0)
	seedItem(t, h.db, "ABC-1", 10, true)

	placed := integration.RemoteOrder{
		OrderID:    "O-1",
		Status:     integration.FulfillmentStatusOpen,
		CreatedAt:  t0.Add(-time.Hour),
		ModifiedAt: t0.Add(-time.Hour),
		Items:      []integration.RemoteOrderItem{{LineItemID: "L-1", SKU: "ABC-1", Quantity: 2}},
	}
	h.orders.set(placed)

	start, end := h.coordinate.NextInboundWindow()
	job, err := h.coordinate.TriggerInboundCycle(ctx, start, end)
	require.NoError(t, err)
	require.Equal(t, scheduler.CycleStatusSucceeded, job.Status)

	item, err := h.inventory.FindBySKU(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.Quantity)

	// Several scheduled windows later the buyer cancels
	h.advance(6 * time.Hour)
	cancelled := placed
	cancelled.Status = integration.FulfillmentStatusCancelled
	cancelled.ModifiedAt = h.now()
	h.orders.set(cancelled)

	start, end = h.coordinate.NextInboundWindow()
	assert.False(t, start.After(placed.CreatedAt), "scheduled window still covers the order")

	job, err = h.coordinate.TriggerInboundCycle(ctx, start, end)
	require.NoError(t, err)
	require.Equal(t, scheduler.CycleStatusSucceeded, job.Status)
	assert.Equal(t, 1, job.Inbound.Actions[appintegration.LineActionRestored])

	item, err = h.inventory.FindBySKU(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), item.Quantity)

	outstanding, err := h.ledger.FindOutstandingBySKU(ctx, "ABC-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), outstanding.NewQuantity)
}
