package integration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InboxStatus represents the processing state of an inbox item
type InboxStatus string

const (
	InboxStatusPending   InboxStatus = "PENDING"
	InboxStatusFailed    InboxStatus = "FAILED"
	InboxStatusProcessed InboxStatus = "PROCESSED"
)

// IsValid returns true if the status is valid
func (s InboxStatus) IsValid() bool {
	switch s {
	case InboxStatusPending, InboxStatusFailed, InboxStatusProcessed:
		return true
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// InboxItem Entity
// ---------------------------------------------------------------------------

// InboxItem holds a record that arrived from a platform but could not be
// applied automatically. Items are mutated only by reprocessing and are
// never deleted.
type InboxItem struct {
	ID            uuid.UUID
	IntegrationID uuid.UUID
	TenantID      uuid.UUID
	// Platform resolves the normalizer on reprocess, also after the
	// integration was disconnected
	Platform Platform
	// ExternalRef is the platform-side identifier of the record, when known
	ExternalRef string
	Payload     json.RawMessage
	Status      InboxStatus
	ReceivedAt  time.Time
	ProcessedAt *time.Time
	RetryCount  int
	LastError   string
	UpdatedAt   time.Time
}

// NewInboxItem creates a PENDING inbox item
func NewInboxItem(integrationID, tenantID uuid.UUID, platform Platform, externalRef string, payload json.RawMessage, reason string) (*InboxItem, error) {
	if integrationID == uuid.Nil {
		return nil, ErrInvalidIntegrationID
	}
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !platform.IsValid() {
		return nil, ErrUnknownPlatform
	}
	if len(payload) == 0 {
		return nil, ErrEmptyInboxPayload
	}
	now := time.Now()
	return &InboxItem{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		TenantID:      tenantID,
		Platform:      platform,
		ExternalRef:   externalRef,
		Payload:       append(json.RawMessage(nil), payload...),
		Status:        InboxStatusPending,
		ReceivedAt:    now,
		LastError:     reason,
		UpdatedAt:     now,
	}, nil
}

// IsProcessed reports whether the item was already applied
func (i *InboxItem) IsProcessed() bool {
	return i.Status == InboxStatusProcessed
}

// MarkProcessed records a successful reprocess. It is a no-op on
// an item that is already processed.
func (i *InboxItem) MarkProcessed(now time.Time) {
	if i.IsProcessed() {
		return
	}
	i.Status = InboxStatusProcessed
	i.ProcessedAt = &now
	i.LastError = ""
	i.UpdatedAt = now
}

// MarkFailed records a failed reprocess attempt
func (i *InboxItem) MarkFailed(reason string) error {
	if i.IsProcessed() {
		return ErrInvalidStatusTransition
	}
	i.Status = InboxStatusFailed
	i.RetryCount++
	i.LastError = reason
	i.UpdatedAt = time.Now()
	return nil
}
