package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/inventory"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StockSyncConfig bounds ledger draining
type StockSyncConfig struct {
	BatchSize   int
	MaxAttempts int
}

// DefaultStockSyncConfig returns the default drain settings
func DefaultStockSyncConfig() StockSyncConfig {
	return StockSyncConfig{
		BatchSize:   integration.MaxBulkUpdateSize,
		MaxAttempts: 5,
	}
}

// Validate fills in defaults for zero values
func (c *StockSyncConfig) Validate() error {
	if c.BatchSize <= 0 || c.BatchSize > integration.MaxBulkUpdateSize {
		c.BatchSize = integration.MaxBulkUpdateSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	return nil
}

// StockSyncServiceImpl owns the outbound ledger: enqueueing desired
// quantities and draining them to the marketplace in bulk.
type StockSyncServiceImpl struct {
	ledgerRepo    integration.StockSyncRecordRepository
	inventoryRepo inventory.InventoryItemRepository
	auditLog      integration.AuditLog
	client        integration.MarketplaceClient
	config        StockSyncConfig
	recorder      SyncRecorder
	logger        *zap.Logger
	now           func() time.Time
}

// StockSyncServiceOption configures a StockSyncServiceImpl
type StockSyncServiceOption func(*StockSyncServiceImpl)

// WithStockSyncRecorder sets the metrics recorder
func WithStockSyncRecorder(recorder SyncRecorder) StockSyncServiceOption {
	return func(s *StockSyncServiceImpl) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithStockSyncClock overrides the clock
func WithStockSyncClock(now func() time.Time) StockSyncServiceOption {
	return func(s *StockSyncServiceImpl) {
		s.now = now
	}
}

// NewStockSyncService creates a new StockSyncServiceImpl
func NewStockSyncService(
	ledgerRepo integration.StockSyncRecordRepository,
	inventoryRepo inventory.InventoryItemRepository,
	auditLog integration.AuditLog,
	client integration.MarketplaceClient,
	config StockSyncConfig,
	logger *zap.Logger,
	opts ...StockSyncServiceOption,
) *StockSyncServiceImpl {
	_ = config.Validate()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &StockSyncServiceImpl{
		ledgerRepo:    ledgerRepo,
		inventoryRepo: inventoryRepo,
		auditLog:      auditLog,
		client:        client,
		config:        config,
		recorder:      noopRecorder{},
		logger:        logger.Named("stock_sync"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective drain settings
func (s *StockSyncServiceImpl) Config() StockSyncConfig {
	return s.config
}

// ---------------------------------------------------------------------------
// Enqueue
// ---------------------------------------------------------------------------

// EnqueueDesiredQuantity records the intent to push quantity for sku.
// An outstanding entry for the SKU is retargeted instead of duplicated;
// a new entry takes the item's current quantity as its old quantity.
func (s *StockSyncServiceImpl) EnqueueDesiredQuantity(ctx context.Context, sku string, quantity int64) (*integration.StockSyncRecord, error) {
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	if quantity < 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Marketplace quantity cannot be negative")
	}

	item, err := s.inventoryRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}

	record, err := s.ledgerRepo.UpsertOutstanding(ctx, sku, item.Quantity, quantity)
	if err != nil {
		return nil, fmt.Errorf("enqueue desired quantity for %s: %w", sku, err)
	}

	s.logger.Debug("Desired quantity enqueued",
		zap.String("sku", sku),
		zap.Int64("old_quantity", record.OldQuantity),
		zap.Int64("new_quantity", record.NewQuantity),
		zap.String("record_id", record.ID.String()),
	)
	return record, nil
}

// MirrorQuantityChange queues a marketplace push for change when the item is
// verified. It runs against the ledger of the caller's transaction so the
// quantity write and the ledger entry commit together.
func MirrorQuantityChange(
	ctx context.Context,
	ledger integration.StockSyncRecordRepository,
	change inventory.QuantityChange,
) (*integration.StockSyncRecord, error) {
	if !change.ShouldMirror() {
		return nil, nil
	}
	// Marketplaces reject negative availability; the local value stays as is.
	desired := change.After
	if desired < 0 {
		desired = 0
	}
	record, err := ledger.UpsertOutstanding(ctx, change.SKU, change.Before, desired)
	if err != nil {
		return nil, fmt.Errorf("mirror quantity change for %s: %w", change.SKU, err)
	}
	return record, nil
}

// ---------------------------------------------------------------------------
// Drain
// ---------------------------------------------------------------------------

// DrainBatch pushes up to maxSize due ledger entries in one bulk call,
// skipping the entries in exclude. Remote failures are recorded on the
// entries and reported in the result, not returned; the returned error is
// reserved for credential failures (cycle abort) and local storage errors.
func (s *StockSyncServiceImpl) DrainBatch(ctx context.Context, maxSize, maxAttempts int, exclude ...uuid.UUID) (*DrainResult, error) {
	if maxSize <= 0 || maxSize > integration.MaxBulkUpdateSize {
		maxSize = integration.MaxBulkUpdateSize
	}
	if maxAttempts <= 0 {
		maxAttempts = s.config.MaxAttempts
	}

	result := &DrainResult{StartedAt: s.now()}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := s.ledgerRepo.FindDue(ctx, maxSize, maxAttempts, exclude...)
	if err != nil {
		return nil, fmt.Errorf("select due ledger entries: %w", err)
	}
	if len(records) == 0 {
		result.Status = DrainStatusEmpty
		result.FinishedAt = s.now()
		return result, nil
	}

	result.Selected = len(records)
	result.Attempted = make([]uuid.UUID, 0, len(records))
	updates := make([]integration.QuantityUpdate, 0, len(records))
	targets := make([]integration.StockSyncTarget, 0, len(records))
	for i := range records {
		result.Attempted = append(result.Attempted, records[i].ID)
		updates = append(updates, integration.QuantityUpdate{SKU: records[i].SKU, Quantity: records[i].NewQuantity})
		targets = append(targets, records[i].Target())
	}

	// Once sent, the request and its bookkeeping finish even if the cycle deadline passes.
	callCtx := context.WithoutCancel(ctx)

	s.logger.Info("Pushing ledger batch",
		zap.Int("batch_size", len(records)),
		zap.Int("max_attempts", maxAttempts),
	)

	resp, pushErr := s.client.BulkUpdateQuantity(callCtx, updates)
	if pushErr != nil {
		if errors.Is(pushErr, integration.ErrCredentialUnavailable) {
			result.Status = DrainStatusAborted
			result.Error = integration.FailurePayload(pushErr)
			result.FinishedAt = s.now()
			s.recorder.RecordDrain(ctx, result)
			s.logger.Error("Ledger drain aborted: no marketplace credential", zap.Error(pushErr))
			return result, pushErr
		}
		return s.recordBatchFailure(callCtx, result, records, targets, maxAttempts, pushErr)
	}

	raw := ""
	if resp != nil {
		raw = resp.RawResponse
	}
	synced, err := s.ledgerRepo.MarkSynced(callCtx, targets, raw, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark ledger entries synced: %w", err)
	}

	result.Status = DrainStatusSynced
	result.Synced = synced
	result.Superseded = int64(len(targets)) - synced
	result.FinishedAt = s.now()
	s.recorder.RecordDrain(ctx, result)

	s.logger.Info("Ledger batch synced",
		zap.Int64("synced", result.Synced),
		zap.Int64("superseded", result.Superseded),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func (s *StockSyncServiceImpl) recordBatchFailure(
	ctx context.Context,
	result *DrainResult,
	records []integration.StockSyncRecord,
	targets []integration.StockSyncTarget,
	maxAttempts int,
	pushErr error,
) (*DrainResult, error) {
	payload := integration.FailurePayload(pushErr)

	failed, err := s.ledgerRepo.RecordFailure(ctx, targets, payload)
	if err != nil {
		return nil, fmt.Errorf("record ledger failure: %w", err)
	}

	for i := range records {
		rec := &records[i]
		attempt := rec.AttemptCount + 1
		msg := fmt.Sprintf("push of quantity %d failed (attempt %d/%d): %s", rec.NewQuantity, attempt, maxAttempts, payload)
		if attempt >= maxAttempts {
			result.Stuck++
			msg += "; retry ceiling reached, manual intervention required"
			s.logger.Warn("Ledger entry stuck",
				zap.String("sku", rec.SKU),
				zap.String("record_id", rec.ID.String()),
				zap.Int("attempts", attempt),
			)
		}
		if err := s.auditLog.AppendLog(ctx, integration.AuditEntityStockSync, rec.ID.String(), msg); err != nil {
			s.logger.Warn("Failed to append ledger audit entry", zap.String("record_id", rec.ID.String()), zap.Error(err))
		}
	}

	result.Status = DrainStatusFailed
	result.Failed = failed
	result.Error = payload
	result.FinishedAt = s.now()
	s.recorder.RecordDrain(ctx, result)

	s.logger.Warn("Ledger batch rejected",
		zap.Int("selected", result.Selected),
		zap.Int64("failed", failed),
		zap.Int("stuck", result.Stuck),
		zap.Bool("rate_limited", errors.Is(pushErr, integration.ErrRateLimited)),
		zap.Bool("permanent", errors.Is(pushErr, integration.ErrPermanentRemote)),
		zap.String("payload", payload),
	)
	return result, nil
}

// ---------------------------------------------------------------------------
// Inspection and manual intervention
// ---------------------------------------------------------------------------

// ListStuck returns outstanding entries that exhausted their attempts
func (s *StockSyncServiceImpl) ListStuck(ctx context.Context, limit int) ([]integration.StockSyncRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.ledgerRepo.FindStuck(ctx, s.config.MaxAttempts, limit)
}

// History returns the ledger entries of one SKU, newest first
func (s *StockSyncServiceImpl) History(ctx context.Context, sku string, limit int) ([]integration.StockSyncRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.ledgerRepo.FindBySKU(ctx, sku, limit)
}

// ResetAttempts returns a stuck entry to rotation
func (s *StockSyncServiceImpl) ResetAttempts(ctx context.Context, id uuid.UUID) (*integration.StockSyncRecord, error) {
	record, err := s.ledgerRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !record.IsOutstanding() {
		return nil, shared.NewDomainError("LEDGER_ALREADY_SYNCED", "Ledger entry is already synced")
	}
	if err := s.ledgerRepo.ResetAttempts(ctx, id); err != nil {
		return nil, err
	}
	msg := fmt.Sprintf("attempt count reset manually (was %d)", record.AttemptCount)
	if err := s.auditLog.AppendLog(ctx, integration.AuditEntityStockSync, id.String(), msg); err != nil {
		s.logger.Warn("Failed to append ledger audit entry", zap.String("record_id", id.String()), zap.Error(err))
	}
	record.AttemptCount = 0
	return record, nil
}
