package integration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/restohub/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Integration DTOs
// ---------------------------------------------------------------------------

// IntegrationResponse is the redacted view of an integration. Credential
// values and tokens never appear in it.
type IntegrationResponse struct {
	ID                   uuid.UUID                `json:"id"`
	TenantID             uuid.UUID                `json:"tenant_id"`
	SubTenantID          *uuid.UUID               `json:"sub_tenant_id,omitempty"`
	Platform             integration.Platform     `json:"platform"`
	PlatformDisplayName  string                   `json:"platform_display_name"`
	Type                 integration.PlatformType `json:"type"`
	Status               integration.Status       `json:"status"`
	HasCredentials       bool                     `json:"has_credentials"`
	HasAccessToken       bool                     `json:"has_access_token"`
	TokenExpiresAt       *time.Time               `json:"token_expires_at,omitempty"`
	ExternalID           string                   `json:"external_id,omitempty"`
	SyncFrequencyMinutes int                      `json:"sync_frequency_minutes"`
	LastSyncAt           *time.Time               `json:"last_sync_at,omitempty"`
	NextSyncAt           *time.Time               `json:"next_sync_at,omitempty"`
	LastError            string                   `json:"last_error,omitempty"`
	Metadata             map[string]string        `json:"metadata,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
}

// ToIntegrationResponse converts an integration into its redacted view
func ToIntegrationResponse(i *integration.Integration) IntegrationResponse {
	resp := IntegrationResponse{
		ID:                   i.ID,
		TenantID:             i.TenantID,
		SubTenantID:          i.SubTenantID,
		Platform:             i.Platform,
		Type:                 i.Type,
		Status:               i.Status,
		HasCredentials:       i.HasCredentials(),
		HasAccessToken:       i.HasAccessToken(),
		TokenExpiresAt:       i.TokenExpiresAt,
		ExternalID:           i.ExternalID,
		SyncFrequencyMinutes: i.SyncFrequencyMinutes,
		LastSyncAt:           i.LastSyncAt,
		NextSyncAt:           i.NextSyncAt,
		LastError:            i.LastError,
		Metadata:             i.Metadata,
		CreatedAt:            i.CreatedAt,
		UpdatedAt:            i.UpdatedAt,
	}
	if info, ok := integration.LookupPlatform(i.Platform); ok {
		resp.PlatformDisplayName = info.DisplayName
	}
	return resp
}

// ToIntegrationResponses converts a slice of integrations
func ToIntegrationResponses(items []integration.Integration) []IntegrationResponse {
	out := make([]IntegrationResponse, len(items))
	for i := range items {
		out[i] = ToIntegrationResponse(&items[i])
	}
	return out
}

// CatalogEntryResponse is one catalog platform with the tenant's connection state
type CatalogEntryResponse struct {
	Platform                 integration.Platform     `json:"platform"`
	Type                     integration.PlatformType `json:"type"`
	DisplayName              string                   `json:"display_name"`
	RequiredCredentialFields []string                 `json:"required_credential_fields"`
	AdapterAvailable         bool                     `json:"adapter_available"`
	Integrations             []CatalogConnection      `json:"integrations"`
}

// CatalogConnection summarizes one of the tenant's integrations for a platform
type CatalogConnection struct {
	IntegrationID uuid.UUID          `json:"integration_id"`
	SubTenantID   *uuid.UUID         `json:"sub_tenant_id,omitempty"`
	Status        integration.Status `json:"status"`
}

// TestResult is the outcome of a connection test. A failed test is a
// result, not an error.
type TestResult struct {
	Connected bool               `json:"connected"`
	Status    integration.Status `json:"status"`
	Message   string             `json:"message"`
}

// ---------------------------------------------------------------------------
// Sync Log DTOs
// ---------------------------------------------------------------------------

// SyncLogResponse represents a sync attempt in API responses
type SyncLogResponse struct {
	ID               uuid.UUID                     `json:"id"`
	IntegrationID    uuid.UUID                     `json:"integration_id"`
	SyncType         integration.SyncType          `json:"sync_type"`
	Status           integration.SyncLogStatus     `json:"status"`
	StartedAt        time.Time                     `json:"started_at"`
	CompletedAt      *time.Time                    `json:"completed_at,omitempty"`
	DurationMs       int64                         `json:"duration_ms,omitempty"`
	RecordsProcessed *int                          `json:"records_processed,omitempty"`
	Errors           []integration.SyncErrorDetail `json:"errors,omitempty"`
}

// ToSyncLogResponse converts a sync log into its response
func ToSyncLogResponse(l *integration.SyncLog) SyncLogResponse {
	return SyncLogResponse{
		ID:               l.ID,
		IntegrationID:    l.IntegrationID,
		SyncType:         l.SyncType,
		Status:           l.Status,
		StartedAt:        l.StartedAt,
		CompletedAt:      l.CompletedAt,
		DurationMs:       l.Duration().Milliseconds(),
		RecordsProcessed: l.RecordsProcessed,
		Errors:           l.Errors,
	}
}

// ToSyncLogResponses converts a slice of sync logs
func ToSyncLogResponses(logs []integration.SyncLog) []SyncLogResponse {
	out := make([]SyncLogResponse, len(logs))
	for i := range logs {
		out[i] = ToSyncLogResponse(&logs[i])
	}
	return out
}

// ---------------------------------------------------------------------------
// Inbox DTOs
// ---------------------------------------------------------------------------

// InboxItemResponse represents an inbox item in API responses
type InboxItemResponse struct {
	ID            uuid.UUID               `json:"id"`
	IntegrationID uuid.UUID               `json:"integration_id"`
	ExternalRef   string                  `json:"external_ref,omitempty"`
	Payload       json.RawMessage         `json:"payload"`
	Status        integration.InboxStatus `json:"status"`
	ReceivedAt    time.Time               `json:"received_at"`
	ProcessedAt   *time.Time              `json:"processed_at,omitempty"`
	RetryCount    int                     `json:"retry_count"`
	LastError     string                  `json:"last_error,omitempty"`
}

// ToInboxItemResponse converts an inbox item into its response
func ToInboxItemResponse(item *integration.InboxItem) InboxItemResponse {
	return InboxItemResponse{
		ID:            item.ID,
		IntegrationID: item.IntegrationID,
		ExternalRef:   item.ExternalRef,
		Payload:       item.Payload,
		Status:        item.Status,
		ReceivedAt:    item.ReceivedAt,
		ProcessedAt:   item.ProcessedAt,
		RetryCount:    item.RetryCount,
		LastError:     item.LastError,
	}
}

// ToInboxItemResponses converts a slice of inbox items
func ToInboxItemResponses(items []integration.InboxItem) []InboxItemResponse {
	out := make([]InboxItemResponse, len(items))
	for i := range items {
		out[i] = ToInboxItemResponse(&items[i])
	}
	return out
}

// ---------------------------------------------------------------------------
// Request DTOs
// ---------------------------------------------------------------------------

// ConnectRequest represents a request to attach a platform to a tenant
type ConnectRequest struct {
	Platform             integration.Platform    `json:"platform" validate:"required"`
	SubTenantID          *uuid.UUID              `json:"sub_tenant_id,omitempty"`
	Credentials          integration.Credentials `json:"credentials,omitempty"`
	SyncFrequencyMinutes int                     `json:"sync_frequency_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
}

// UpdateCredentialsRequest replaces an integration's credentials
type UpdateCredentialsRequest struct {
	Credentials          integration.Credentials `json:"credentials" validate:"required,min=1"`
	SyncFrequencyMinutes *int                    `json:"sync_frequency_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
}
