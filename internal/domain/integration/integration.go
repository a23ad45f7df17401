package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sync frequency bounds in minutes
const (
	DefaultSyncFrequencyMinutes = 15
	MinSyncFrequencyMinutes     = 1
	MaxSyncFrequencyMinutes     = 1440
)

// ---------------------------------------------------------------------------
// Status represents the lifecycle state of an integration
// ---------------------------------------------------------------------------

// Status represents the lifecycle state of an integration
type Status string

const (
	// StatusStopped indicates the integration is inactive
	StatusStopped Status = "STOPPED"
	// StatusConfigured indicates credentials are present but not yet verified
	StatusConfigured Status = "CONFIGURED"
	// StatusConnected indicates the platform was verified reachable
	StatusConnected Status = "CONNECTED"
	// StatusIngesting indicates a sync is currently executing
	StatusIngesting Status = "INGESTING"
	// StatusDegraded indicates the last test or sync failed
	StatusDegraded Status = "DEGRADED"
)

// IsValid returns true if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusStopped, StatusConfigured, StatusConnected, StatusIngesting, StatusDegraded:
		return true
	default:
		return false
	}
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Credentials
// ---------------------------------------------------------------------------

// Credentials is an opaque key-value secret bundle.
// Values must never be logged or returned in listings.
type Credentials map[string]string

// Get returns the trimmed value for key
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c[key])
}

// Clone returns a copy of the credentials
func (c Credentials) Clone() Credentials {
	if c == nil {
		return nil
	}
	out := make(Credentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ---------------------------------------------------------------------------
// Integration Entity
// ---------------------------------------------------------------------------

// Integration is one external platform connection for one tenant.
// Status changes go through the transition methods below; callers never
// assign Status directly.
type Integration struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// SubTenantID distinguishes split operating units under one tenant
	SubTenantID *uuid.UUID
	Platform    Platform
	Type        PlatformType
	Status      Status
	Credentials Credentials

	SyncFrequencyMinutes int
	LastSyncAt           *time.Time
	NextSyncAt           *time.Time

	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time

	// ExternalID is the merchant or store identifier at the platform
	ExternalID string
	Metadata   map[string]string
	LastError  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewIntegration creates a new integration. It starts CONFIGURED when
// credentials are supplied and STOPPED otherwise.
func NewIntegration(
	tenantID uuid.UUID,
	subTenantID *uuid.UUID,
	platform Platform,
	credentials Credentials,
	syncFrequencyMinutes int,
) (*Integration, error) {
	if tenantID == uuid.Nil {
		return nil, ErrInvalidTenantID
	}
	spec, ok := LookupPlatform(platform)
	if !ok {
		return nil, ErrUnknownPlatform
	}
	if syncFrequencyMinutes == 0 {
		syncFrequencyMinutes = DefaultSyncFrequencyMinutes
	}
	if err := validateSyncFrequency(syncFrequencyMinutes); err != nil {
		return nil, err
	}

	status := StatusStopped
	if len(credentials) > 0 {
		if err := spec.ValidateCredentials(credentials); err != nil {
			return nil, err
		}
		status = StatusConfigured
	}

	now := time.Now()
	return &Integration{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		SubTenantID:          subTenantID,
		Platform:             platform,
		Type:                 spec.Type,
		Status:               status,
		Credentials:          credentials.Clone(),
		SyncFrequencyMinutes: syncFrequencyMinutes,
		ExternalID:           externalIDFrom(credentials),
		Metadata:             make(map[string]string),
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}

func validateSyncFrequency(minutes int) error {
	if minutes < MinSyncFrequencyMinutes || minutes > MaxSyncFrequencyMinutes {
		return ErrInvalidSyncFrequency
	}
	return nil
}

// externalIDFrom picks the platform-side merchant identifier out of the credentials.
func externalIDFrom(creds Credentials) string {
	for _, key := range []string{"merchant_id", "store_id", "shop_id"} {
		if v := creds.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// HasCredentials reports whether a credential bundle is stored
func (i *Integration) HasCredentials() bool {
	return len(i.Credentials) > 0
}

// HasAccessToken reports whether an access token is stored
func (i *Integration) HasAccessToken() bool {
	return i.AccessToken != ""
}

// BelongsTo reports whether the integration is owned by the tenant
func (i *Integration) BelongsTo(tenantID uuid.UUID) bool {
	return i.TenantID == tenantID
}

// IsActive reports whether the integration should be present in the registry
func (i *Integration) IsActive() bool {
	return i.Status == StatusConnected || i.Status == StatusIngesting
}

// SyncInterval returns the configured sync frequency as a duration
func (i *Integration) SyncInterval() time.Duration {
	return time.Duration(i.SyncFrequencyMinutes) * time.Minute
}

// SetCredentials replaces the credential bundle and moves the integration
// to CONFIGURED. Stored tokens are cleared since they belong to the old credentials.
func (i *Integration) SetCredentials(creds Credentials) error {
	if i.Status == StatusIngesting {
		return ErrInvalidStatusTransition
	}
	spec, ok := LookupPlatform(i.Platform)
	if !ok {
		return ErrUnknownPlatform
	}
	if err := spec.ValidateCredentials(creds); err != nil {
		return err
	}
	i.Credentials = creds.Clone()
	i.ExternalID = externalIDFrom(creds)
	i.AccessToken = ""
	i.RefreshToken = ""
	i.TokenExpiresAt = nil
	i.Status = StatusConfigured
	i.LastError = ""
	i.touch()
	return nil
}

// SetSyncFrequency changes the sync cadence
func (i *Integration) SetSyncFrequency(minutes int) error {
	if err := validateSyncFrequency(minutes); err != nil {
		return err
	}
	i.SyncFrequencyMinutes = minutes
	if i.LastSyncAt != nil {
		next := i.LastSyncAt.Add(i.SyncInterval())
		i.NextSyncAt = &next
	}
	i.touch()
	return nil
}

// MarkConnected records a successful connection test
func (i *Integration) MarkConnected(now time.Time) error {
	if i.Status == StatusIngesting {
		return ErrInvalidStatusTransition
	}
	if !i.HasCredentials() {
		return NewCredentialError(i.Platform, requiredFields(i.Platform))
	}
	i.Status = StatusConnected
	i.LastError = ""
	if i.NextSyncAt == nil {
		next := now.Add(i.SyncInterval())
		i.NextSyncAt = &next
	}
	i.touch()
	return nil
}

// MarkDegraded records a failed test or sync
func (i *Integration) MarkDegraded(reason string) {
	i.Status = StatusDegraded
	i.LastError = reason
	i.touch()
}

// BeginIngesting is the compare-and-swap guarding sync execution.
// It succeeds only from CONNECTED.
func (i *Integration) BeginIngesting() error {
	if i.Status != StatusConnected {
		return ErrIntegrationNotActive
	}
	i.Status = StatusIngesting
	i.touch()
	return nil
}

// CompleteSync returns an ingesting integration to CONNECTED and advances the schedule
func (i *Integration) CompleteSync(now time.Time) error {
	if i.Status != StatusIngesting {
		return ErrInvalidStatusTransition
	}
	next := now.Add(i.SyncInterval())
	i.Status = StatusConnected
	i.LastSyncAt = &now
	i.NextSyncAt = &next
	i.LastError = ""
	i.touch()
	return nil
}

// FailSync moves an ingesting integration to DEGRADED
func (i *Integration) FailSync(reason string) error {
	if i.Status != StatusIngesting {
		return ErrInvalidStatusTransition
	}
	i.MarkDegraded(reason)
	return nil
}

// Stop deactivates the integration
func (i *Integration) Stop() {
	i.Status = StatusStopped
	i.touch()
}

// UpdateToken stores an access token obtained from the platform
func (i *Integration) UpdateToken(accessToken, refreshToken string, expiresAt *time.Time) {
	i.AccessToken = accessToken
	if refreshToken != "" {
		i.RefreshToken = refreshToken
	}
	i.TokenExpiresAt = expiresAt
	i.touch()
}

// Descriptor returns what the registry needs to construct an adapter
func (i *Integration) Descriptor() Descriptor {
	return Descriptor{
		IntegrationID: i.ID,
		TenantID:      i.TenantID,
		SubTenantID:   i.SubTenantID,
		Platform:      i.Platform,
		Credentials:   i.Credentials.Clone(),
		SyncInterval:  i.SyncInterval(),
		NextSyncAt:    i.NextSyncAt,
	}
}

func (i *Integration) touch() {
	i.UpdatedAt = time.Now()
}

func requiredFields(p Platform) []string {
	spec, _ := LookupPlatform(p)
	return spec.RequiredCredentialFields
}
