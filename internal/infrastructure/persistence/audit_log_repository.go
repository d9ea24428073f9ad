package persistence

import (
	"context"

	"github.com/OsbanCerejo/inventoz-sub000/internal/domain/integration"
	"github.com/OsbanCerejo/inventoz-sub000/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLogRepository implements AuditLogRepository using GORM.
// Entries are only ever inserted.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// AppendLog writes one audit entry
func (r *GormAuditLogRepository) AppendLog(ctx context.Context, entityType, entityID, message string) error {
	entry := integration.NewAuditEntry(entityType, entityID, message)
	return r.db.WithContext(ctx).Create(models.AuditLogModelFromDomain(entry)).Error
}

// FindByEntity returns the newest entries for an entity
func (r *GormAuditLogRepository) FindByEntity(ctx context.Context, entityType, entityID string, limit int) ([]integration.AuditEntry, error) {
	var rows []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]integration.AuditEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditLogRepository implements AuditLogRepository
var _ integration.AuditLogRepository = (*GormAuditLogRepository)(nil)
