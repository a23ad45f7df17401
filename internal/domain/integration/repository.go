package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Pagination defaults shared by list filters
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ---------------------------------------------------------------------------
// Filters
// ---------------------------------------------------------------------------

// SyncLogFilter selects sync logs of one integration
type SyncLogFilter struct {
	IntegrationID uuid.UUID
	Status        *SyncLogStatus
	Page          int
	PageSize      int
}

// InboxFilter selects inbox items of one tenant
type InboxFilter struct {
	TenantID      uuid.UUID
	IntegrationID *uuid.UUID
	Status        *InboxStatus
	From          *time.Time
	To            *time.Time
	Page          int
	PageSize      int
}

// normalizePage applies defaults and bounds to page parameters
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Normalize applies pagination defaults
func (f *SyncLogFilter) Normalize() {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
}

// Offset returns the row offset for the current page
func (f *SyncLogFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// Normalize applies pagination defaults and validates the date range
func (f *InboxFilter) Normalize() error {
	f.Page, f.PageSize = normalizePage(f.Page, f.PageSize)
	if f.Status != nil && !f.Status.IsValid() {
		return NewValidationError("invalid inbox status")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return NewValidationError("date range start must not be after its end")
	}
	return nil
}

// Offset returns the row offset for the current page
func (f *InboxFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ---------------------------------------------------------------------------
// Repository Interfaces
// ---------------------------------------------------------------------------

// IntegrationRepository persists integrations. Implementations seal
// credentials and tokens at rest.
type IntegrationRepository interface {
	// Create persists a new integration; returns ErrIntegrationExists on a
	// duplicate (tenant, platform, sub-tenant)
	Create(ctx context.Context, integration *Integration) error

	// Save updates an existing integration
	Save(ctx context.Context, integration *Integration) error

	// FindByID returns the integration regardless of tenant
	FindByID(ctx context.Context, id uuid.UUID) (*Integration, error)

	// FindByIDForTenant returns ErrIntegrationNotFound for another tenant's integration
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Integration, error)

	// FindByTenant lists a tenant's integrations
	FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]Integration, error)

	// FindByStatus lists integrations in any of the given statuses across tenants
	FindByStatus(ctx context.Context, statuses ...Status) ([]Integration, error)

	// ExistsForPlatform checks the (tenant, platform, sub-tenant) uniqueness key
	ExistsForPlatform(ctx context.Context, tenantID uuid.UUID, platform Platform, subTenantID *uuid.UUID) (bool, error)

	// Delete removes the integration
	Delete(ctx context.Context, id uuid.UUID) error
}

// SyncLogRepository records sync attempts
type SyncLogRepository interface {
	Create(ctx context.Context, log *SyncLog) error

	// Complete writes the terminal state of a RUNNING log
	Complete(ctx context.Context, log *SyncLog) error

	FindByID(ctx context.Context, id uuid.UUID) (*SyncLog, error)

	// FindByIntegration lists logs newest first
	FindByIntegration(ctx context.Context, filter SyncLogFilter) ([]SyncLog, int64, error)

	// FindRunning lists RUNNING logs of an integration
	FindRunning(ctx context.Context, integrationID uuid.UUID) ([]SyncLog, error)
}

// InboxRepository stores inbox items. Items are never deleted.
type InboxRepository interface {
	Create(ctx context.Context, item *InboxItem) error
	Save(ctx context.Context, item *InboxItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*InboxItem, error)
	FindByFilter(ctx context.Context, filter InboxFilter) ([]InboxItem, int64, error)
}
