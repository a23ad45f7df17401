package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/infrastructure/persistence/models"
)

// GormIntegrationRepository implements integration.IntegrationRepository
// using GORM. Credentials and tokens pass through the vault on every write
// and read.
type GormIntegrationRepository struct {
	db    *gorm.DB
	vault integration.CredentialVault
}

// NewGormIntegrationRepository creates a new GormIntegrationRepository
func NewGormIntegrationRepository(db *gorm.DB, vault integration.CredentialVault) *GormIntegrationRepository {
	return &GormIntegrationRepository{db: db, vault: vault}
}

var _ integration.IntegrationRepository = (*GormIntegrationRepository)(nil)

// Create persists a new integration
func (r *GormIntegrationRepository) Create(ctx context.Context, i *integration.Integration) error {
	model, err := r.toModel(i)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// NULL sub-tenants are distinct to the unique index, so the key is
		// checked explicitly as well
		exists, err := existsForPlatform(tx, i.TenantID, i.Platform, i.SubTenantID)
		if err != nil {
			return err
		}
		if exists {
			return integration.ErrIntegrationExists
		}
		if err := tx.Create(model).Error; err != nil {
			if isDuplicateKey(err) {
				return integration.ErrIntegrationExists
			}
			return fmt.Errorf("failed to create integration: %w", err)
		}
		return nil
	})
}

// Save updates an existing integration
func (r *GormIntegrationRepository) Save(ctx context.Context, i *integration.Integration) error {
	model, err := r.toModel(i)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.IntegrationModel{}).
		Where("id = ?", i.ID).
		Select("*").
		Omit("id", "created_at", "tenant_id", "platform", "sub_tenant_id").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to save integration: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return integration.ErrIntegrationNotFound
	}
	return nil
}

// FindByID finds an integration by its ID
func (r *GormIntegrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrIntegrationNotFound
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// FindByIDForTenant finds an integration by ID within a specific tenant
func (r *GormIntegrationRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error) {
	var model models.IntegrationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrIntegrationNotFound
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// FindByTenant lists a tenant's integrations ordered by platform
func (r *GormIntegrationRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.Integration, error) {
	var rows []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("platform ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(rows)
}

// FindByStatus lists integrations in any of the given statuses
func (r *GormIntegrationRepository) FindByStatus(ctx context.Context, statuses ...integration.Status) ([]integration.Integration, error) {
	if len(statuses) == 0 {
		return []integration.Integration{}, nil
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var rows []models.IntegrationModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", values).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomainSlice(rows)
}

// ExistsForPlatform checks the (tenant, platform, sub-tenant) key
func (r *GormIntegrationRepository) ExistsForPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, subTenantID *uuid.UUID) (bool, error) {
	return existsForPlatform(r.db.WithContext(ctx), tenantID, platform, subTenantID)
}

// Delete removes the integration. Sync logs and inbox items are kept.
func (r *GormIntegrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.IntegrationModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrIntegrationNotFound
	}
	return nil
}

func existsForPlatform(db *gorm.DB, tenantID uuid.UUID, platform integration.Platform, subTenantID *uuid.UUID) (bool, error) {
	query := db.Model(&models.IntegrationModel{}).
		Where("tenant_id = ? AND platform = ?", tenantID, string(platform))
	if subTenantID == nil {
		query = query.Where("sub_tenant_id IS NULL")
	} else {
		query = query.Where("sub_tenant_id = ?", *subTenantID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ---------------------------------------------------------------------------
// Sealing
// ---------------------------------------------------------------------------

func (r *GormIntegrationRepository) toModel(i *integration.Integration) (*models.IntegrationModel, error) {
	model := &models.IntegrationModel{}
	model.FromDomain(i)

	if len(i.Credentials) > 0 {
		data, err := json.Marshal(i.Credentials)
		if err != nil {
			return nil, fmt.Errorf("failed to encode credentials: %w", err)
		}
		if model.CredentialsSealed, err = r.vault.Seal(data); err != nil {
			return nil, fmt.Errorf("failed to seal credentials: %w", err)
		}
	}

	var err error
	if model.AccessTokenSealed, err = r.vault.Seal([]byte(i.AccessToken)); err != nil {
		return nil, fmt.Errorf("failed to seal access token: %w", err)
	}
	if model.RefreshTokenSealed, err = r.vault.Seal([]byte(i.RefreshToken)); err != nil {
		return nil, fmt.Errorf("failed to seal refresh token: %w", err)
	}
	return model, nil
}

func (r *GormIntegrationRepository) toDomain(model *models.IntegrationModel) (*integration.Integration, error) {
	i := model.ToDomain()

	if model.CredentialsSealed != "" {
		data, err := r.vault.Open(model.CredentialsSealed)
		if err != nil {
			return nil, fmt.Errorf("failed to open credentials of integration %s: %w", model.ID, err)
		}
		var creds integration.Credentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("failed to decode credentials of integration %s: %w", model.ID, err)
		}
		i.Credentials = creds
	}

	access, err := r.vault.Open(model.AccessTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open access token of integration %s: %w", model.ID, err)
	}
	refresh, err := r.vault.Open(model.RefreshTokenSealed)
	if err != nil {
		return nil, fmt.Errorf("failed to open refresh token of integration %s: %w", model.ID, err)
	}
	i.AccessToken = string(access)
	i.RefreshToken = string(refresh)
	return i, nil
}

func (r *GormIntegrationRepository) toDomainSlice(rows []models.IntegrationModel) ([]integration.Integration, error) {
	out := make([]integration.Integration, 0, len(rows))
	for idx := range rows {
		i, err := r.toDomain(&rows[idx])
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, nil
}

// isDuplicateKey matches unique violations with or without gorm's error
// translation enabled
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
