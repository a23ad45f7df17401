package integration

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Delivery gateway
// ---------------------------------------------------------------------------

// GetQuote prices a delivery through a logistics integration
func (m *Manager) GetQuote(ctx context.Context, tenantID, id uuid.UUID, req *integration.DeliveryQuoteRequest) (*integration.DeliveryQuote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	adapter, err := m.logisticsAdapter(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartAdapterSpan(ctx, adapter.Platform(), id.String(), "quote")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, m.config.AdapterTimeout)
	defer cancel()
	quote, err := adapter.GetQuote(callCtx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, m.adapterError(err)
	}
	return quote, nil
}

// RequestDelivery places a delivery and returns the platform delivery ID
func (m *Manager) RequestDelivery(ctx context.Context, tenantID, id uuid.UUID, req *integration.DeliveryRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	adapter, err := m.logisticsAdapter(ctx, tenantID, id)
	if err != nil {
		return "", err
	}

	ctx, span := telemetry.StartAdapterSpan(ctx, adapter.Platform(), id.String(), "request_delivery",
		telemetry.WithAttribute("delivery.reference", req.Reference))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, m.config.AdapterTimeout)
	defer cancel()
	deliveryID, err := adapter.RequestDelivery(callCtx, req)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", m.adapterError(err)
	}

	m.logger.Info("Delivery requested",
		zap.String("integration_id", id.String()),
		zap.String("delivery_id", deliveryID),
		zap.String("reference", req.Reference))
	return deliveryID, nil
}

// GetTracking returns the current state of a delivery
func (m *Manager) GetTracking(ctx context.Context, tenantID, id uuid.UUID, deliveryID string) (*integration.DeliveryTracking, error) {
	if deliveryID == "" {
		return nil, integration.NewValidationError("delivery ID is required")
	}
	adapter, err := m.logisticsAdapter(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartAdapterSpan(ctx, adapter.Platform(), id.String(), "tracking",
		telemetry.WithAttribute("delivery.id", deliveryID))
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, m.config.AdapterTimeout)
	defer cancel()
	tracking, err := adapter.GetTracking(callCtx, deliveryID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, m.adapterError(err)
	}
	return tracking, nil
}

// logisticsAdapter returns the live logistics adapter of one of the tenant's integrations
func (m *Manager) logisticsAdapter(ctx context.Context, tenantID, id uuid.UUID) (integration.LogisticsAdapter, error) {
	if _, err := m.integrations.FindByIDForTenant(ctx, tenantID, id); err != nil {
		return nil, err
	}
	handle, ok := m.registry.Get(id)
	if !ok {
		return nil, integration.ErrIntegrationNotActive
	}
	adapter, ok := handle.Adapter.(integration.LogisticsAdapter)
	if !ok {
		return nil, integration.ErrCapabilityNotSupported
	}
	return adapter, nil
}
