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

// GormSyncLogRepository implements integration.SyncLogRepository using GORM
type GormSyncLogRepository struct {
	db *gorm.DB
}

// NewGormSyncLogRepository creates a new GormSyncLogRepository
func NewGormSyncLogRepository(db *gorm.DB) *GormSyncLogRepository {
	return &GormSyncLogRepository{db: db}
}

var _ integration.SyncLogRepository = (*GormSyncLogRepository)(nil)

// Create inserts a sync log
func (r *GormSyncLogRepository) Create(ctx context.Context, log *integration.SyncLog) error {
	model := &models.SyncLogModel{}
	model.FromDomain(log)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("failed to create sync log: %w", err)
	}
	return nil
}

// Complete writes the terminal state. Only a RUNNING row is updated, so a
// log receives at most one terminal write.
func (r *GormSyncLogRepository) Complete(ctx context.Context, log *integration.SyncLog) error {
	if !log.Status.IsTerminal() {
		return integration.NewValidationError("sync log must be completed with a terminal status")
	}

	model := &models.SyncLogModel{}
	model.FromDomain(log)

	result := r.db.WithContext(ctx).
		Model(&models.SyncLogModel{}).
		Where("id = ? AND status = ?", log.ID, string(integration.SyncLogStatusRunning)).
		Updates(map[string]any{
			"status":            model.Status,
			"completed_at":      model.CompletedAt,
			"records_processed": model.RecordsProcessed,
			"errors":            model.ErrorsJSON,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete sync log: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.FindByID(ctx, log.ID); err != nil {
		return err
	}
	return integration.ErrSyncLogFinalized
}

// FindByID finds a sync log by its ID
func (r *GormSyncLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncLog, error) {
	var model models.SyncLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrSyncLogNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIntegration lists an integration's sync logs, newest first
func (r *GormSyncLogRepository) FindByIntegration(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLog, int64, error) {
	filter.Normalize()

	query := r.db.WithContext(ctx).Model(&models.SyncLogModel{}).
		Where("integration_id = ?", filter.IntegrationID)
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.SyncLogModel
	if err := query.
		Order("started_at DESC").
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	logs := make([]integration.SyncLog, len(rows))
	for i := range rows {
		logs[i] = *rows[i].ToDomain()
	}
	return logs, total, nil
}

// FindRunning lists RUNNING logs of an integration
func (r *GormSyncLogRepository) FindRunning(ctx context.Context, integrationID uuid.UUID) ([]integration.SyncLog, error) {
	var rows []models.SyncLogModel
	if err := r.db.WithContext(ctx).
		Where("integration_id = ? AND status = ?", integrationID, string(integration.SyncLogStatusRunning)).
		Order("started_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	logs := make([]integration.SyncLog, len(rows))
	for i := range rows {
		logs[i] = *rows[i].ToDomain()
	}
	return logs, nil
}
