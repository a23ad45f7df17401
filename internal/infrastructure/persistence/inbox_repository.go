package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/infrastructure/persistence/models"
)

// GormInboxRepository implements integration.InboxRepository using GORM.
// It exposes no delete.
type GormInboxRepository struct {
	db *gorm.DB
}

// NewGormInboxRepository creates a new GormInboxRepository
func NewGormInboxRepository(db *gorm.DB) *GormInboxRepository {
	return &GormInboxRepository{db: db}
}

var _ integration.InboxRepository = (*GormInboxRepository)(nil)

// Create inserts a new inbox item
func (r *GormInboxRepository) Create(ctx context.Context, item *integration.InboxItem) error {
	model := &models.InboxItemModel{}
	model.FromDomain(item)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create inbox item: %w", err)
	}
	return nil
}

// Save writes the processing state of an existing item
func (r *GormInboxRepository) Save(ctx context.Context, item *integration.InboxItem) error {
	result := r.db.WithContext(ctx).
		Model(&models.InboxItemModel{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"status":       string(item.Status),
			"processed_at": item.ProcessedAt,
			"retry_count":  item.RetryCount,
			"last_error":   item.LastError,
			"updated_at":   item.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to save inbox item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return integration.ErrInboxItemNotFound
	}
	return nil
}

// FindByID finds an inbox item by its ID
func (r *GormInboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.InboxItem, error) {
	var model models.InboxItemModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrInboxItemNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByFilter lists a tenant's inbox items, newest first
func (r *GormInboxRepository) FindByFilter(ctx context.Context, filter integration.InboxFilter) ([]integration.InboxItem, int64, error) {
	if err := filter.Normalize(); err != nil {
		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Model(&models.InboxItemModel{}).
		Where("tenant_id = ?", filter.TenantID)
	if filter.IntegrationID != nil {
		query = query.Where("integration_id = ?", *filter.IntegrationID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.From != nil {
		query = query.Where("received_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("received_at <= ?", *filter.To)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.InboxItemModel
	if err := query.
		Order("received_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	items := make([]integration.InboxItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, total, nil
}
