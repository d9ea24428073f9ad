package handler

import (
	"context"
	"strings"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/scheduler"
	"github.com/OsbanCerejo/inventoz-sub000/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultHistoryLimit = 50
	defaultStuckLimit   = 100
	defaultAuditLimit   = 100
)

// LedgerService is the ledger surface behind the sync endpoints
type LedgerService interface {
	EnqueueDesiredQuantity(ctx context.Context, sku string, quantity int64) (*integration.StockSyncRecord, error)
	ListStuck(ctx context.Context, limit int) ([]integration.StockSyncRecord, error)
	History(ctx context.Context, sku string, limit int) ([]integration.StockSyncRecord, error)
	ResetAttempts(ctx context.Context, id uuid.UUID) (*integration.StockSyncRecord, error)
}

// CycleController runs manual sync cycles and reports their state
type CycleController interface {
	TriggerInboundCycle(ctx context.Context, windowStart, windowEnd time.Time) (*scheduler.SyncCycleJob, error)
	TriggerOutboundCycle(ctx context.Context) (*scheduler.SyncCycleJob, error)
	StartInboundCycle(ctx context.Context, windowStart, windowEnd time.Time) (scheduler.SyncCycleJob, error)
	StartOutboundCycle(ctx context.Context) (scheduler.SyncCycleJob, error)
	NextInboundWindow() (time.Time, time.Time)
	Status() scheduler.CoordinatorStatus
}

// SyncHandler exposes the marketplace sync engine: the outbound ledger,
// manual cycle triggers, order lines and the audit trail.
type SyncHandler struct {
	BaseHandler
	ledger     LedgerService
	cycles     CycleController
	orderLines integration.RemoteOrderLineRepository
	auditLog   integration.AuditLogRepository
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(
	ledger LedgerService,
	cycles CycleController,
	orderLines integration.RemoteOrderLineRepository,
	auditLog integration.AuditLogRepository,
) *SyncHandler {
	return &SyncHandler{
		ledger:     ledger,
		cycles:     cycles,
		orderLines: orderLines,
		auditLog:   auditLog,
	}
}

// EnqueueLedger godoc
// @Summary      Queue a marketplace quantity push
// @Description  Retargets the outstanding entry for the SKU or creates a new one
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        request body EnqueueLedgerRequest true "Desired quantity"
// @Success      202 {object} APIResponse[LedgerRecordResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /sync/ledger [post]
func (h *SyncHandler) EnqueueLedger(c *gin.Context) {
	var req EnqueueLedgerRequest
	if !h.BindJSON(c, &req) {
		return
	}

	record, err := h.ledger.EnqueueDesiredQuantity(c.Request.Context(), req.SKU, *req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, toLedgerRecordResponse(record))
}

// ListStuck godoc
// @Summary      List stuck ledger entries
// @Description  Outstanding entries that exhausted their attempts and need manual intervention
// @Tags         sync
// @Produce      json
// @Param        limit query int false "Max entries" minimum(1) maximum(500)
// @Success      200 {object} APIResponse[[]LedgerRecordResponse]
// @Router       /sync/ledger/stuck [get]
func (h *SyncHandler) ListStuck(c *gin.Context) {
	limit, ok := h.bindLimit(c, defaultStuckLimit)
	if !ok {
		return
	}

	records, err := h.ledger.ListStuck(c.Request.Context(), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRecordResponses(records))
}

// LedgerHistory godoc
// @Summary      Ledger history of a SKU
// @Tags         sync
// @Produce      json
// @Param        key path string true "SKU"
// @Param        limit query int false "Max entries" minimum(1) maximum(500)
// @Success      200 {object} APIResponse[[]LedgerRecordResponse]
// @Router       /sync/ledger/{key} [get]
func (h *SyncHandler) LedgerHistory(c *gin.Context) {
	limit, ok := h.bindLimit(c, defaultHistoryLimit)
	if !ok {
		return
	}

	records, err := h.ledger.History(c.Request.Context(), c.Param("key"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRecordResponses(records))
}

// ResetAttempts godoc
// @Summary      Return a stuck ledger entry to rotation
// @Tags         sync
// @Produce      json
// @Param        key path string true "Ledger entry ID"
// @Success      200 {object} APIResponse[LedgerRecordResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /sync/ledger/{key}/reset [post]
func (h *SyncHandler) ResetAttempts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("key"))
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, "Ledger entry ID must be a UUID")
		return
	}

	record, err := h.ledger.ResetAttempts(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toLedgerRecordResponse(record))
}

// TriggerInbound godoc
// @Summary      Run an inbound cycle
// @Description  Pulls marketplace orders and reconciles local stock. Without a body the window continues
// @Description  from the last successful inbound cycle. With wait=true the finished job is returned.
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        wait query bool false "Run synchronously"
// @Param        request body InboundCycleRequest false "Window"
// @Success      200 {object} APIResponse[scheduler.SyncCycleJob]
// @Success      202 {object} APIResponse[scheduler.SyncCycleJob]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Router       /sync/cycles/inbound [post]
func (h *SyncHandler) TriggerInbound(c *gin.Context) {
	var q CycleQuery
	if !h.BindQuery(c, &q) {
		return
	}
	var req InboundCycleRequest
	if c.Request.ContentLength != 0 {
		if !h.BindJSON(c, &req) {
			return
		}
	}

	start, end := h.cycles.NextInboundWindow()
	switch {
	case req.WindowStart != nil && req.WindowEnd != nil:
		start, end = *req.WindowStart, *req.WindowEnd
	case req.WindowStart != nil || req.WindowEnd != nil:
		h.ErrorWithCode(c, dto.ErrCodeInvalidWindow, "window_start and window_end must be given together")
		return
	}

	ctx := c.Request.Context()
	if q.Wait {
		job, err := h.cycles.TriggerInboundCycle(ctx, start, end)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, job)
		return
	}

	job, err := h.cycles.StartInboundCycle(ctx, start, end)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, job)
}

// TriggerOutbound godoc
// @Summary      Run an outbound cycle
// @Description  Drains the ledger to the marketplace. With wait=true the finished job is returned.
// @Tags         sync
// @Produce      json
// @Param        wait query bool false "Run synchronously"
// @Success      200 {object} APIResponse[scheduler.SyncCycleJob]
// @Success      202 {object} APIResponse[scheduler.SyncCycleJob]
// @Failure      409 {object} ErrorResponse
// @Router       /sync/cycles/outbound [post]
func (h *SyncHandler) TriggerOutbound(c *gin.Context) {
	var q CycleQuery
	if !h.BindQuery(c, &q) {
		return
	}

	ctx := c.Request.Context()
	if q.Wait {
		job, err := h.cycles.TriggerOutboundCycle(ctx)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, job)
		return
	}

	job, err := h.cycles.StartOutboundCycle(ctx)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, job)
}

// Status godoc
// @Summary      Sync status
// @Description  Running cycles, recent cycle history and the inbound window bookmark
// @Tags         sync
// @Produce      json
// @Success      200 {object} APIResponse[scheduler.CoordinatorStatus]
// @Router       /sync/status [get]
func (h *SyncHandler) Status(c *gin.Context) {
	h.Success(c, h.cycles.Status())
}

// OrderLines godoc
// @Summary      Observed lines of a marketplace order
// @Tags         sync
// @Produce      json
// @Param        order_id path string true "Marketplace order ID"
// @Success      200 {object} APIResponse[[]OrderLineResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /sync/orders/{order_id}/lines [get]
func (h *SyncHandler) OrderLines(c *gin.Context) {
	orderID := c.Param("order_id")
	lines, err := h.orderLines.FindByOrderID(c.Request.Context(), orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if len(lines) == 0 {
		h.NotFound(c, "No lines recorded for order "+orderID)
		return
	}
	h.Success(c, toOrderLineResponses(lines))
}

// AuditTrail godoc
// @Summary      Audit entries of an entity
// @Description  Entity ids may contain slashes (order lines use order_id/line_item_id)
// @Tags         sync
// @Produce      json
// @Param        entity_type path string true "Entity type" Enums(remote_order_line, stock_sync_record, sync_cycle, inventory_item)
// @Param        entity_id path string true "Entity ID"
// @Param        limit query int false "Max entries" minimum(1) maximum(500)
// @Success      200 {object} APIResponse[[]AuditEntryResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /sync/audit/{entity_type}/{entity_id} [get]
func (h *SyncHandler) AuditTrail(c *gin.Context) {
	entityID := strings.TrimPrefix(c.Param("entity_id"), "/")
	if entityID == "" {
		h.ErrorWithCode(c, dto.ErrCodeInvalidInput, "Entity ID is required")
		return
	}
	limit, ok := h.bindLimit(c, defaultAuditLimit)
	if !ok {
		return
	}

	entries, err := h.auditLog.FindByEntity(c.Request.Context(), c.Param("entity_type"), entityID, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toAuditEntryResponses(entries))
}
