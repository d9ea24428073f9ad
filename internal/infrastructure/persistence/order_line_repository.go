package persistence

import (
	"context"
	"errors"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/shared"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRemoteOrderLineRepository implements RemoteOrderLineRepository using GORM
type GormRemoteOrderLineRepository struct {
	db *gorm.DB
}

// NewGormRemoteOrderLineRepository creates a new GormRemoteOrderLineRepository
func NewGormRemoteOrderLineRepository(db *gorm.DB) *GormRemoteOrderLineRepository {
	return &GormRemoteOrderLineRepository{db: db}
}

// FindByKey finds a line by (order_id, line_item_id)
func (r *GormRemoteOrderLineRepository) FindByKey(ctx context.Context, orderID, lineItemID string) (*integration.RemoteOrderLine, error) {
	var model models.RemoteOrderLineModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND line_item_id = ?", orderID, lineItemID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Claim inserts the line unless its key already exists. The unique key makes
// a concurrent duplicate insert a no-op instead of an error.
func (r *GormRemoteOrderLineRepository) Claim(ctx context.Context, line *integration.RemoteOrderLine) (bool, error) {
	model := &models.RemoteOrderLineModel{}
	model.FromDomain(line)

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "line_item_id"}},
		DoNothing: true,
	}).Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// Update persists the mutable fields of a line
func (r *GormRemoteOrderLineRepository) Update(ctx context.Context, line *integration.RemoteOrderLine) error {
	result := r.db.WithContext(ctx).Model(&models.RemoteOrderLineModel{}).
		Where("order_id = ? AND line_item_id = ?", line.OrderID, line.LineItemID).
		Updates(map[string]any{
			"status":            line.Status.String(),
			"stock_applied":     line.StockApplied,
			"notes":             line.Notes,
			"order_modified_at": line.OrderModifiedAt,
			"updated_at":        line.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByOrderID lists the lines of one order
func (r *GormRemoteOrderLineRepository) FindByOrderID(ctx context.Context, orderID string) ([]integration.RemoteOrderLine, error) {
	var rows []models.RemoteOrderLineModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("line_item_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	lines := make([]integration.RemoteOrderLine, len(rows))
	for i := range rows {
		lines[i] = *rows[i].ToDomain()
	}
	return lines, nil
}

// Ensure GormRemoteOrderLineRepository implements RemoteOrderLineRepository
var _ integration.RemoteOrderLineRepository = (*GormRemoteOrderLineRepository)(nil)
