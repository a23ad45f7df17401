package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/restohub/backend/internal/domain/integration"
)

// IntegrationModel is the persistence model for the Integration entity.
// Credentials and tokens are stored sealed; the repository seals and opens them.
type IntegrationModel struct {
	BaseModel
	TenantID             uuid.UUID  `gorm:"type:uuid;not null;index:idx_integration_tenant;uniqueIndex:idx_integration_tenant_platform,priority:1"`
	SubTenantID          *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_integration_tenant_platform,priority:3"`
	Platform             string     `gorm:"type:varchar(32);not null;uniqueIndex:idx_integration_tenant_platform,priority:2"`
	Type                 string     `gorm:"type:varchar(16);not null"`
	Status               string     `gorm:"type:varchar(16);not null;index:idx_integration_status"`
	CredentialsSealed    string     `gorm:"column:credentials_sealed;type:text"`
	SyncFrequencyMinutes int        `gorm:"not null;default:15"`
	LastSyncAt           *time.Time
	NextSyncAt           *time.Time
	AccessTokenSealed    string `gorm:"column:access_token_sealed;type:text"`
	RefreshTokenSealed   string `gorm:"column:refresh_token_sealed;type:text"`
	TokenExpiresAt       *time.Time
	ExternalID           string `gorm:"type:varchar(128)"`
	MetadataJSON         string `gorm:"column:metadata;type:jsonb;default:'{}'"`
	LastError            string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (IntegrationModel) TableName() string {
	return "integrations"
}

// ToDomain converts the model to a domain Integration. Sealed fields are
// left to the caller.
func (m *IntegrationModel) ToDomain() *integration.Integration {
	i := &integration.Integration{
		ID:                   m.ID,
		TenantID:             m.TenantID,
		SubTenantID:          m.SubTenantID,
		Platform:             integration.Platform(m.Platform),
		Type:                 integration.PlatformType(m.Type),
		Status:               integration.Status(m.Status),
		SyncFrequencyMinutes: m.SyncFrequencyMinutes,
		LastSyncAt:           m.LastSyncAt,
		NextSyncAt:           m.NextSyncAt,
		TokenExpiresAt:       m.TokenExpiresAt,
		ExternalID:           m.ExternalID,
		LastError:            m.LastError,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
	if m.MetadataJSON != "" && m.MetadataJSON != "{}" {
		var metadata map[string]string
		if err := json.Unmarshal([]byte(m.MetadataJSON), &metadata); err == nil {
			i.Metadata = metadata
		}
	}
	return i
}

// FromDomain populates the model from a domain Integration, except the
// sealed columns
func (m *IntegrationModel) FromDomain(i *integration.Integration) {
	m.ID = i.ID
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
	m.TenantID = i.TenantID
	m.SubTenantID = i.SubTenantID
	m.Platform = string(i.Platform)
	m.Type = string(i.Type)
	m.Status = string(i.Status)
	m.SyncFrequencyMinutes = i.SyncFrequencyMinutes
	m.LastSyncAt = i.LastSyncAt
	m.NextSyncAt = i.NextSyncAt
	m.TokenExpiresAt = i.TokenExpiresAt
	m.ExternalID = i.ExternalID
	m.LastError = i.LastError

	m.MetadataJSON = "{}"
	if len(i.Metadata) > 0 {
		if data, err := json.Marshal(i.Metadata); err == nil {
			m.MetadataJSON = string(data)
		}
	}
}

// SyncLogModel is the persistence model for the SyncLog entity
type SyncLogModel struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key"`
	IntegrationID    uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_log_integration,priority:1"`
	TenantID         uuid.UUID `gorm:"type:uuid;not null;index"`
	SyncType         string    `gorm:"type:varchar(16);not null"`
	Status           string    `gorm:"type:varchar(16);not null;index"`
	StartedAt        time.Time `gorm:"not null;index:idx_sync_log_integration,priority:2"`
	CompletedAt      *time.Time
	RecordsProcessed *int
	ErrorsJSON       string `gorm:"column:errors;type:jsonb;default:'[]'"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the model to a domain SyncLog
func (m *SyncLogModel) ToDomain() *integration.SyncLog {
	log := &integration.SyncLog{
		ID:               m.ID,
		IntegrationID:    m.IntegrationID,
		TenantID:         m.TenantID,
		SyncType:         integration.SyncType(m.SyncType),
		Status:           integration.SyncLogStatus(m.Status),
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
		RecordsProcessed: m.RecordsProcessed,
	}
	if m.ErrorsJSON != "" && m.ErrorsJSON != "[]" {
		var details []integration.SyncErrorDetail
		if err := json.Unmarshal([]byte(m.ErrorsJSON), &details); err == nil {
			log.Errors = details
		}
	}
	return log
}

// FromDomain populates the model from a domain SyncLog
func (m *SyncLogModel) FromDomain(l *integration.SyncLog) {
	m.ID = l.ID
	m.IntegrationID = l.IntegrationID
	m.TenantID = l.TenantID
	m.SyncType = string(l.SyncType)
	m.Status = string(l.Status)
	m.StartedAt = l.StartedAt
	m.CompletedAt = l.CompletedAt
	m.RecordsProcessed = l.RecordsProcessed

	m.ErrorsJSON = "[]"
	if len(l.Errors) > 0 {
		if data, err := json.Marshal(l.Errors); err == nil {
			m.ErrorsJSON = string(data)
		}
	}
}

// InboxItemModel is the persistence model for the InboxItem entity
type InboxItemModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	IntegrationID uuid.UUID `gorm:"type:uuid;not null;index"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index:idx_inbox_tenant_status,priority:1"`
	Platform      string    `gorm:"type:varchar(32);not null;default:''"`
	ExternalRef   string    `gorm:"type:varchar(128);index"`
	Payload       string    `gorm:"type:jsonb;not null"`
	Status        string    `gorm:"type:varchar(16);not null;index:idx_inbox_tenant_status,priority:2"`
	ReceivedAt    time.Time `gorm:"not null;index"`
	ProcessedAt   *time.Time
	RetryCount    int    `gorm:"not null;default:0"`
	LastError     string `gorm:"type:text"`
	UpdatedAt     time.Time
}

// TableName returns the table name for GORM
func (InboxItemModel) TableName() string {
	return "inbox_items"
}

// ToDomain converts the model to a domain InboxItem
func (m *InboxItemModel) ToDomain() *integration.InboxItem {
	return &integration.InboxItem{
		ID:            m.ID,
		IntegrationID: m.IntegrationID,
		TenantID:      m.TenantID,
		Platform:      integration.Platform(m.Platform),
		ExternalRef:   m.ExternalRef,
		Payload:       json.RawMessage(m.Payload),
		Status:        integration.InboxStatus(m.Status),
		ReceivedAt:    m.ReceivedAt,
		ProcessedAt:   m.ProcessedAt,
		RetryCount:    m.RetryCount,
		LastError:     m.LastError,
		UpdatedAt:     m.UpdatedAt,
	}
}

// FromDomain populates the model from a domain InboxItem
func (m *InboxItemModel) FromDomain(item *integration.InboxItem) {
	m.ID = item.ID
	m.IntegrationID = item.IntegrationID
	m.TenantID = item.TenantID
	m.Platform = string(item.Platform)
	m.ExternalRef = item.ExternalRef
	m.Payload = string(item.Payload)
	m.Status = string(item.Status)
	m.ReceivedAt = item.ReceivedAt
	m.ProcessedAt = item.ProcessedAt
	m.RetryCount = item.RetryCount
	m.LastError = item.LastError
	m.UpdatedAt = item.UpdatedAt
}
