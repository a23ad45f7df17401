package integration

import (
	"time"

	"github.com/google/uuid"
)

// SyncType distinguishes operator-triggered syncs from scheduled ones
type SyncType string

const (
	SyncTypeManual    SyncType = "MANUAL"
	SyncTypeScheduled SyncType = "SCHEDULED"
)

// IsValid returns true if the sync type is valid
func (t SyncType) IsValid() bool {
	return t == SyncTypeManual || t == SyncTypeScheduled
}

// SyncLogStatus represents the outcome of a sync attempt
type SyncLogStatus string

const (
	SyncLogStatusRunning SyncLogStatus = "RUNNING"
	SyncLogStatusSuccess SyncLogStatus = "SUCCESS"
	SyncLogStatusFailed  SyncLogStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s SyncLogStatus) IsValid() bool {
	return s == SyncLogStatusRunning || s.IsTerminal()
}

// IsTerminal returns true for SUCCESS and FAILED
func (s SyncLogStatus) IsTerminal() bool {
	return s == SyncLogStatusSuccess || s == SyncLogStatusFailed
}

// SyncErrorDetail is one structured failure entry of a sync attempt
type SyncErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Reference string `json:"reference,omitempty"`
}

// Detail codes recorded in sync logs
const (
	DetailCodeTimeout     = "TIMEOUT"
	DetailCodeAdapter     = "ADAPTER_ERROR"
	DetailCodeNotActive   = "NOT_ACTIVE"
	DetailCodeInboxed     = "INBOXED"
	DetailCodeInterrupted = "INTERRUPTED"
	DetailCodeInboxWrite  = "INBOX_WRITE_FAILED"
	DetailCodePersistence = "PERSISTENCE_ERROR"
	DetailCodeAckFailed   = "ACK_FAILED"
)

// ---------------------------------------------------------------------------
// SyncLog Entity
// ---------------------------------------------------------------------------

// SyncLog is the record of one sync attempt. It is created RUNNING and
// receives exactly one terminal update.
type SyncLog struct {
	ID               uuid.UUID
	IntegrationID    uuid.UUID
	TenantID         uuid.UUID
	SyncType         SyncType
	Status           SyncLogStatus
	StartedAt        time.Time
	CompletedAt      *time.Time
	RecordsProcessed *int
	Errors           []SyncErrorDetail
}

// NewSyncLog creates a RUNNING sync log
func NewSyncLog(integrationID, tenantID uuid.UUID, syncType SyncType) (*SyncLog, error) {
	if integrationID == uuid.Nil {
		return nil, ErrInvalidIntegrationID
	}
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	if !syncType.IsValid() {
		return nil, ErrInvalidSyncType
	}
	return &SyncLog{
		ID:            uuid.New(),
		IntegrationID: integrationID,
		TenantID:      tenantID,
		SyncType:      syncType,
		Status:        SyncLogStatusRunning,
		StartedAt:     time.Now(),
	}, nil
}

// Succeed records a successful attempt. details may carry non-fatal
// entries such as records diverted to the inbox.
func (l *SyncLog) Succeed(now time.Time, recordsProcessed int, details []SyncErrorDetail) error {
	if l.Status.IsTerminal() {
		return ErrSyncLogFinalized
	}
	l.Status = SyncLogStatusSuccess
	l.CompletedAt = &now
	l.RecordsProcessed = &recordsProcessed
	l.Errors = details
	return nil
}

// Fail records a failed attempt
func (l *SyncLog) Fail(now time.Time, details []SyncErrorDetail) error {
	if l.Status.IsTerminal() {
		return ErrSyncLogFinalized
	}
	l.Status = SyncLogStatusFailed
	l.CompletedAt = &now
	l.Errors = details
	return nil
}

// Duration returns how long the attempt ran, or zero while running
func (l *SyncLog) Duration() time.Duration {
	if l.CompletedAt == nil {
		return 0
	}
	return l.CompletedAt.Sub(l.StartedAt)
}
