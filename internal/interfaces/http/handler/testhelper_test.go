package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	appintegration "github.com/OsbanCerejo/inventoz-sub000/internal/application/integration"
	inventoryapp "github.com/OsbanCerejo/inventoz-sub000/internal/application/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence/models"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/scheduler"
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

type window struct {
	start, end time.Time
}

// fakeCycles records manual cycle requests instead of running them
type fakeCycles struct {
	mu       sync.Mutex
	err      error
	next     window
	inbound  []window
	waited   []bool
	outbound int
	status   scheduler.CoordinatorStatus
}

func newFakeCycles() *fakeCycles {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &fakeCycles{next: window{start: end.Add(-time.Hour), end: end}}
}

func (f *fakeCycles) inboundJob(start, end time.Time, status scheduler.CycleStatus) scheduler.SyncCycleJob {
	return scheduler.SyncCycleJob{
		ID:          uuid.New(),
		Type:        scheduler.CycleTypeInbound,
		Status:      status,
		WindowStart: &start,
		WindowEnd:   &end,
		StartedAt:   end,
	}
}

func (f *fakeCycles) TriggerInboundCycle(_ context.Context, start, end time.Time) (*scheduler.SyncCycleJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.inbound = append(f.inbound, window{start, end})
	f.waited = append(f.waited, true)
	job := f.inboundJob(start, end, scheduler.CycleStatusSucceeded)
	return &job, nil
}

func (f *fakeCycles) StartInboundCycle(_ context.Context, start, end time.Time) (scheduler.SyncCycleJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return scheduler.SyncCycleJob{}, f.err
	}
	f.inbound = append(f.inbound, window{start, end})
	f.waited = append(f.waited, false)
	return f.inboundJob(start, end, scheduler.CycleStatusRunning), nil
}

func (f *fakeCycles) TriggerOutboundCycle(context.Context) (*scheduler.SyncCycleJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.outbound++
	return &scheduler.SyncCycleJob{ID: uuid.New(), Type: scheduler.CycleTypeOutbound, Status: scheduler.CycleStatusSucceeded}, nil
}

func (f *fakeCycles) StartOutboundCycle(context.Context) (scheduler.SyncCycleJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return scheduler.SyncCycleJob{}, f.err
	}
	f.outbound++
	return scheduler.SyncCycleJob{ID: uuid.New(), Type: scheduler.CycleTypeOutbound, Status: scheduler.CycleStatusRunning}, nil
}

func (f *fakeCycles) NextInboundWindow() (time.Time, time.Time) {
	return f.next.start, f.next.end
}

func (f *fakeCycles) Status() scheduler.CoordinatorStatus {
	return f.status
}

// testEnv serves the inventory and sync endpoints over sqlite-backed repositories
type testEnv struct {
	db            *gorm.DB
	router        *gin.Engine
	cycles        *fakeCycles
	ledgerRepo    *persistence.GormStockSyncRecordRepository
	orderLineRepo *persistence.GormRemoteOrderLineRepository
	auditLog      *persistence.GormAuditLogRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	inventoryRepo := persistence.NewGormInventoryItemRepository(db)
	ledgerRepo := persistence.NewGormStockSyncRecordRepository(db)
	orderLineRepo := persistence.NewGormRemoteOrderLineRepository(db)
	auditRepo := persistence.NewGormAuditLogRepository(db)

	quantityService := inventoryapp.NewQuantityService(inventoryRepo, persistence.NewGormTransactionScope(db), nil)
	ledgerService := appintegration.NewStockSyncService(
		ledgerRepo, inventoryRepo, auditRepo, nil, appintegration.DefaultStockSyncConfig(), nil,
	)
	cycles := newFakeCycles()

	inventoryHandler := NewInventoryHandler(quantityService)
	syncHandler := NewSyncHandler(ledgerService, cycles, orderLineRepo, auditRepo)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1")

	items := api.Group("/inventory/items")
	items.POST("", inventoryHandler.Register)
	items.GET("/:sku", inventoryHandler.GetBySKU)
	items.PUT("/:sku/quantity", inventoryHandler.SetQuantity)
	items.POST("/:sku/sales", inventoryHandler.RecordSale)
	items.PUT("/:sku/verified", inventoryHandler.SetVerified)

	syncGroup := api.Group("/sync")
	syncGroup.POST("/ledger", syncHandler.EnqueueLedger)
	syncGroup.GET("/ledger/stuck", syncHandler.ListStuck)
	syncGroup.GET("/ledger/:key", syncHandler.LedgerHistory)
	syncGroup.POST("/ledger/:key/reset", syncHandler.ResetAttempts)
	syncGroup.POST("/cycles/inbound", syncHandler.TriggerInbound)
	syncGroup.POST("/cycles/outbound", syncHandler.TriggerOutbound)
	syncGroup.GET("/status", syncHandler.Status)
	syncGroup.GET("/orders/:order_id/lines", syncHandler.OrderLines)
	syncGroup.GET("/audit/:entity_type/*entity_id", syncHandler.AuditTrail)

	return &testEnv{db: db, router: r, cycles: cycles, ledgerRepo: ledgerRepo, orderLineRepo: orderLineRepo, auditLog: auditRepo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) registerItem(t *testing.T, sku string, quantity int64, verified bool) {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/inventory/items", map[string]any{
		"sku": sku, "title": "Widget " + sku, "quantity": quantity, "verified": verified,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) APIResponse[T] {
	t.Helper()
	var resp APIResponse[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}
