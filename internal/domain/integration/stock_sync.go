package integration

import (
	"context"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/google/uuid"
)

// StockSyncRecord is a ledger entry: the intent to push NewQuantity for SKU to
// the marketplace. At most one outstanding (not yet synced) record exists per
// SKU; later desired quantities overwrite it instead of adding a second one.
// Records are never deleted and serve as the push history.
type StockSyncRecord struct {
	shared.BaseEntity
	SKU          string
	OldQuantity  int64
	NewQuantity  int64
	AttemptCount int
	// LastResponse is the raw payload of the latest attempt
	LastResponse string
	// Synced is the outstanding flag: false = pending or failed-but-retryable, true = confirmed
	Synced   bool
	SyncedAt *time.Time
}

// NewStockSyncRecord creates an outstanding ledger entry
func NewStockSyncRecord(sku string, oldQuantity, newQuantity int64) (*StockSyncRecord, error) {
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU cannot be empty")
	}
	return &StockSyncRecord{
		BaseEntity:  shared.NewBaseEntity(),
		SKU:         sku,
		OldQuantity: oldQuantity,
		NewQuantity: newQuantity,
	}, nil
}

// IsOutstanding reports whether the record still awaits confirmation
func (r *StockSyncRecord) IsOutstanding() bool {
	return !r.Synced
}

// IsStuck reports whether the record exhausted its attempts and needs manual intervention
func (r *StockSyncRecord) IsStuck(maxAttempts int) bool {
	return !r.Synced && r.AttemptCount >= maxAttempts
}

// IsDue reports whether a drain with the given ceiling should select the record
func (r *StockSyncRecord) IsDue(maxAttempts int) bool {
	return !r.Synced && r.AttemptCount < maxAttempts
}

// Retarget overwrites the desired quantity and restarts the attempt budget
func (r *StockSyncRecord) Retarget(newQuantity int64) error {
	if r.Synced {
		return shared.NewDomainError("LEDGER_ALREADY_SYNCED", "Synced ledger entries cannot be retargeted")
	}
	r.NewQuantity = newQuantity
	r.AttemptCount = 0
	r.Touch()
	return nil
}

// RecordFailure counts a failed attempt and keeps the upstream payload
func (r *StockSyncRecord) RecordFailure(payload string) {
	r.AttemptCount++
	r.LastResponse = payload
	r.Touch()
}

// MarkSynced confirms the push
func (r *StockSyncRecord) MarkSynced(response string, at time.Time) {
	r.Synced = true
	r.SyncedAt = &at
	r.LastResponse = response
	r.Touch()
}

// Target is the (id, quantity) pair a drain attempted to push
func (r *StockSyncRecord) Target() StockSyncTarget {
	return StockSyncTarget{ID: r.ID, SKU: r.SKU, NewQuantity: r.NewQuantity}
}

// StockSyncTarget identifies the exact version of a ledger entry a drain pushed.
// Bookkeeping only applies while NewQuantity is unchanged, so an entry retargeted
// mid-drain stays outstanding for the next drain.
type StockSyncTarget struct {
	ID          uuid.UUID
	SKU         string
	NewQuantity int64
}

// StockSyncRecordRepository persists the ledger
type StockSyncRecordRepository interface {
	// UpsertOutstanding atomically inserts an outstanding entry for sku, or
	// retargets the existing one (newQuantity overwritten, attemptCount reset).
	// oldQuantity is only used on insert.
	UpsertOutstanding(ctx context.Context, sku string, oldQuantity, newQuantity int64) (*StockSyncRecord, error)

	// FindDue returns up to limit outstanding entries with attemptCount < maxAttempts,
	// oldest first, skipping the ids in exclude
	FindDue(ctx context.Context, limit, maxAttempts int, exclude ...uuid.UUID) ([]StockSyncRecord, error)

	// FindStuck returns outstanding entries that reached maxAttempts
	FindStuck(ctx context.Context, maxAttempts, limit int) ([]StockSyncRecord, error)

	// FindOutstandingBySKU returns the outstanding entry for sku or shared.ErrNotFound
	FindOutstandingBySKU(ctx context.Context, sku string) (*StockSyncRecord, error)

	// FindBySKU returns the ledger history for sku, newest first
	FindBySKU(ctx context.Context, sku string, limit int) ([]StockSyncRecord, error)

	// FindByID returns one entry or shared.ErrNotFound
	FindByID(ctx context.Context, id uuid.UUID) (*StockSyncRecord, error)

	// MarkSynced confirms targets whose NewQuantity is unchanged; returns rows affected
	MarkSynced(ctx context.Context, targets []StockSyncTarget, response string, at time.Time) (int64, error)

	// RecordFailure increments attemptCount and stores payload for unchanged targets; returns rows affected
	RecordFailure(ctx context.Context, targets []StockSyncTarget, payload string) (int64, error)

	// ResetAttempts puts a stuck outstanding entry back into rotation
	ResetAttempts(ctx context.Context, id uuid.UUID) error
}
