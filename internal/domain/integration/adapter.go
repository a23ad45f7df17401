package integration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Adapter ports
// ---------------------------------------------------------------------------

// Adapter is the capability every platform adapter exposes.
// Implementations encapsulate one platform's wire protocol and auth scheme.
type Adapter interface {
	// Platform returns the platform this adapter talks to
	Platform() Platform

	// TestConnection verifies the platform is reachable with the configured credentials
	TestConnection(ctx context.Context) error
}

// SalesAdapter is implemented by order-taking platforms
type SalesAdapter interface {
	Adapter

	// FetchOrders pulls current orders. Records that fail normalization are
	// returned in FetchResult.Rejected rather than as an error.
	FetchOrders(ctx context.Context) (*FetchResult, error)
}

// OrderAcknowledger is implemented by sales adapters whose platform
// redelivers records until they are acknowledged. The manager calls it only
// after every fetched record was durably applied or diverted.
type OrderAcknowledger interface {
	AcknowledgeOrders(ctx context.Context, receipts []string) error
}

// LogisticsAdapter is implemented by delivery dispatch platforms
type LogisticsAdapter interface {
	Adapter

	// GetQuote prices a delivery
	GetQuote(ctx context.Context, req *DeliveryQuoteRequest) (*DeliveryQuote, error)

	// RequestDelivery places a delivery and returns the platform delivery ID
	RequestDelivery(ctx context.Context, req *DeliveryRequest) (string, error)

	// GetTracking returns the current state of a delivery
	GetTracking(ctx context.Context, deliveryID string) (*DeliveryTracking, error)
}

// Token is an OAuth-style token obtained by an adapter
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// TokenSource is implemented by adapters that obtain access tokens from
// their platform. The current token is persisted after a successful test.
type TokenSource interface {
	CurrentToken() (Token, bool)
}

// OrderNormalizer converts one raw platform order into the normalized shape.
// It is pure and needs no credentials, so stored inbox payloads can be
// re-normalized without a live connection.
type OrderNormalizer interface {
	NormalizeOrder(raw json.RawMessage) (*Order, error)
}

// Descriptor carries everything needed to construct a live adapter
type Descriptor struct {
	IntegrationID uuid.UUID
	TenantID      uuid.UUID
	SubTenantID   *uuid.UUID
	Platform      Platform
	Credentials   Credentials
	SyncInterval  time.Duration
	NextSyncAt    *time.Time
}

// AdapterFactory selects and constructs adapters by platform
type AdapterFactory interface {
	// NewAdapter builds a live adapter. It returns ErrAdapterNotAvailable
	// for catalog platforms without a bundled implementation.
	NewAdapter(desc Descriptor) (Adapter, error)

	// Supports reports whether a bundled adapter exists for the platform
	Supports(platform Platform) bool

	// Normalizer returns the order normalizer for a sales platform
	Normalizer(platform Platform) (OrderNormalizer, bool)
}

// OrderSink is the downstream collaborator that applies normalized orders.
// Fresh ingestion and inbox reprocessing both go through it.
type OrderSink interface {
	Ingest(ctx context.Context, integration *Integration, order *Order) error
}

// CredentialVault seals secrets before they reach the datastore
type CredentialVault interface {
	Seal(plaintext []byte) (string, error)
	Open(sealed string) ([]byte, error)
}
