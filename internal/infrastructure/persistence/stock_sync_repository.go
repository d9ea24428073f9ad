package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockSyncRecordRepository implements StockSyncRecordRepository using GORM.
// Collapsing to one outstanding entry per SKU relies on the partial unique
// index idx_stock_sync_outstanding (sku WHERE synced = false).
type GormStockSyncRecordRepository struct {
	db *gorm.DB
}

// NewGormStockSyncRecordRepository creates a new GormStockSyncRecordRepository
func NewGormStockSyncRecordRepository(db *gorm.DB) *GormStockSyncRecordRepository {
	return &GormStockSyncRecordRepository{db: db}
}

// UpsertOutstanding inserts or retargets the outstanding entry for sku in one statement
func (r *GormStockSyncRecordRepository) UpsertOutstanding(ctx context.Context, sku string, oldQuantity, newQuantity int64) (*integration.StockSyncRecord, error) {
	record, err := integration.NewStockSyncRecord(sku, oldQuantity, newQuantity)
	if err != nil {
		return nil, err
	}
	model := &models.StockSyncRecordModel{}
	model.FromDomain(record)

	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sku"}},
		TargetWhere: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "synced = false"},
		}},
		DoUpdates: clause.Assignments(map[string]any{
			"new_quantity":  newQuantity,
			"attempt_count": 0,
			"updated_at":    record.UpdatedAt,
		}),
	}).Create(model).Error
	if err != nil {
		return nil, err
	}

	// On conflict the surviving row keeps its own id, so read it back.
	return r.FindOutstandingBySKU(ctx, sku)
}

// FindDue returns outstanding entries under the attempt ceiling, oldest first
func (r *GormStockSyncRecordRepository) FindDue(ctx context.Context, limit, maxAttempts int, exclude ...uuid.UUID) ([]integration.StockSyncRecord, error) {
	var rows []models.StockSyncRecordModel
	query := r.db.WithContext(ctx).
		Where("synced = ? AND attempt_count < ?", false, maxAttempts)
	if len(exclude) > 0 {
		query = query.Where("id NOT IN ?", exclude)
	}
	if err := query.
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toStockSyncRecords(rows), nil
}

// FindStuck returns outstanding entries that reached the attempt ceiling
func (r *GormStockSyncRecordRepository) FindStuck(ctx context.Context, maxAttempts, limit int) ([]integration.StockSyncRecord, error) {
	var rows []models.StockSyncRecordModel
	if err := r.db.WithContext(ctx).
		Where("synced = ? AND attempt_count >= ?", false, maxAttempts).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toStockSyncRecords(rows), nil
}

// FindOutstandingBySKU returns the outstanding entry for sku
func (r *GormStockSyncRecordRepository) FindOutstandingBySKU(ctx context.Context, sku string) (*integration.StockSyncRecord, error) {
	var model models.StockSyncRecordModel
	if err := r.db.WithContext(ctx).
		Where("sku = ? AND synced = ?", sku, false).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySKU returns the ledger history for sku, newest first
func (r *GormStockSyncRecordRepository) FindBySKU(ctx context.Context, sku string, limit int) ([]integration.StockSyncRecord, error) {
	var rows []models.StockSyncRecordModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toStockSyncRecords(rows), nil
}

// FindByID returns one entry
func (r *GormStockSyncRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.StockSyncRecord, error) {
	var model models.StockSyncRecordModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// MarkSynced confirms every target whose desired quantity is unchanged
func (r *GormStockSyncRecordRepository) MarkSynced(ctx context.Context, targets []integration.StockSyncTarget, response string, at time.Time) (int64, error) {
	var affected int64
	for _, t := range targets {
		result := r.db.WithContext(ctx).Model(&models.StockSyncRecordModel{}).
			Where("id = ? AND new_quantity = ? AND synced = ?", t.ID, t.NewQuantity, false).
			Updates(map[string]any{
				"synced":        true,
				"synced_at":     at,
				"last_response": response,
				"updated_at":    at,
			})
		if result.Error != nil {
			return affected, result.Error
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// RecordFailure counts a failed attempt on every target whose desired quantity is unchanged
func (r *GormStockSyncRecordRepository) RecordFailure(ctx context.Context, targets []integration.StockSyncTarget, payload string) (int64, error) {
	var affected int64
	now := time.Now()
	for _, t := range targets {
		result := r.db.WithContext(ctx).Model(&models.StockSyncRecordModel{}).
			Where("id = ? AND new_quantity = ? AND synced = ?", t.ID, t.NewQuantity, false).
			Updates(map[string]any{
				"attempt_count": gorm.Expr("attempt_count + 1"),
				"last_response": payload,
				"updated_at":    now,
			})
		if result.Error != nil {
			return affected, result.Error
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

// ResetAttempts puts an outstanding entry back into rotation
func (r *GormStockSyncRecordRepository) ResetAttempts(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&models.StockSyncRecordModel{}).
		Where("id = ? AND synced = ?", id, false).
		Updates(map[string]any{
			"attempt_count": 0,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toStockSyncRecords(rows []models.StockSyncRecordModel) []integration.StockSyncRecord {
	records := make([]integration.StockSyncRecord, len(rows))
	for i := range rows {
		records[i] = *rows[i].ToDomain()
	}
	return records
}

// Ensure GormStockSyncRecordRepository implements StockSyncRecordRepository
var _ integration.StockSyncRecordRepository = (*GormStockSyncRecordRepository)(nil)
