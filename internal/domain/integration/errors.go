package integration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/restohub/backend/internal/domain/shared"
)

// Error codes specific to the integration context
const (
	CodeNotActive              = "INTEGRATION_NOT_ACTIVE"
	CodeCapabilityNotSupported = "CAPABILITY_NOT_SUPPORTED"
	CodeInvalidState           = "INVALID_STATE"
)

// ---------------------------------------------------------------------------
// Domain errors
// ---------------------------------------------------------------------------

var (
	ErrIntegrationNotFound = shared.NewDomainError(shared.CodeNotFound, "integration not found")
	ErrInboxItemNotFound   = shared.NewDomainError(shared.CodeNotFound, "inbox item not found")
	ErrSyncLogNotFound     = shared.NewDomainError(shared.CodeNotFound, "sync log not found")

	ErrIntegrationExists = shared.NewDomainError(shared.CodeConflict, "an integration for this platform already exists")

	ErrIntegrationNotActive    = shared.NewDomainError(CodeNotActive, "integration is not active")
	ErrCapabilityNotSupported  = shared.NewDomainError(CodeCapabilityNotSupported, "integration does not support this operation")
	ErrInvalidStatusTransition = shared.NewDomainError(CodeInvalidState, "operation not allowed in current integration status")
	ErrSyncLogFinalized        = shared.NewDomainError(CodeInvalidState, "sync log already completed")

	ErrInvalidTenantID      = shared.NewDomainError(shared.CodeValidation, "invalid tenant ID")
	ErrInvalidIntegrationID = shared.NewDomainError(shared.CodeValidation, "invalid integration ID")
	ErrUnknownPlatform      = shared.NewDomainError(shared.CodeValidation, "unknown platform")
	ErrInvalidSyncFrequency = shared.NewDomainError(shared.CodeValidation,
		fmt.Sprintf("sync frequency must be between %d and %d minutes", MinSyncFrequencyMinutes, MaxSyncFrequencyMinutes))
	ErrInvalidSyncType   = shared.NewDomainError(shared.CodeValidation, "invalid sync type")
	ErrEmptyInboxPayload = shared.NewDomainError(shared.CodeValidation, "inbox payload cannot be empty")
)

// Adapter-level errors. Adapters wrap these so callers can classify failures.
var (
	ErrPlatformUnavailable     = errors.New("integration: platform temporarily unavailable")
	ErrPlatformRequestFailed   = errors.New("integration: platform request failed")
	ErrPlatformInvalidResponse = errors.New("integration: invalid platform response")
	ErrPlatformAuthFailed      = errors.New("integration: platform authentication failed")
	ErrPlatformRateLimited     = errors.New("integration: platform rate limited")
	ErrAdapterNotAvailable     = errors.New("integration: no adapter available for platform")
	ErrOrderNormalization      = errors.New("integration: order could not be normalized")
)

// ---------------------------------------------------------------------------
// Error constructors
// ---------------------------------------------------------------------------

// NewValidationError returns a ValidationError with the given message
func NewValidationError(message string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeValidation, message)
}

// NewCredentialError returns a CredentialError listing the missing fields
func NewCredentialError(platform Platform, missing []string) *shared.DomainError {
	return shared.NewDomainError(shared.CodeCredential,
		fmt.Sprintf("missing required credentials for %s: %s", platform, strings.Join(missing, ", ")))
}

// NewConnectionError returns a ConnectionError carrying the adapter failure
func NewConnectionError(message string, cause error) *shared.DomainError {
	return shared.WrapDomainError(shared.CodeConnection, message, cause)
}

// NewSyncError returns a SyncError carrying the ingestion failure
func NewSyncError(message string, cause error) *shared.DomainError {
	return shared.WrapDomainError(shared.CodeSync, message, cause)
}
