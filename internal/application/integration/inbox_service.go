package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/domain/shared"
)

// errIntegrationDisconnected fails reprocessing of items whose integration
// was deleted; the item stays listed with its retry count bumped
var errIntegrationDisconnected = errors.New("integration disconnected")

// InboxService lists and reprocesses inbox items
type InboxService struct {
	inbox        integration.InboxRepository
	integrations integration.IntegrationRepository
	factory      integration.AdapterFactory
	sink         integration.OrderSink
	locks        *KeyedMutex
	logger       *zap.Logger
	now          func() time.Time
}

// NewInboxService creates a new InboxService
func NewInboxService(
	inbox integration.InboxRepository,
	integrations integration.IntegrationRepository,
	factory integration.AdapterFactory,
	sink integration.OrderSink,
	logger *zap.Logger,
) *InboxService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NewLoggingOrderSink(logger)
	}
	return &InboxService{
		inbox:        inbox,
		integrations: integrations,
		factory:      factory,
		sink:         sink,
		locks:        NewKeyedMutex(),
		logger:       logger,
		now:          time.Now,
	}
}

// ListItems returns the tenant's inbox items matching filter
func (s *InboxService) ListItems(ctx context.Context, tenantID uuid.UUID, filter integration.InboxFilter) ([]integration.InboxItem, int64, error) {
	filter.TenantID = tenantID
	if err := filter.Normalize(); err != nil {
		return nil, 0, err
	}
	if filter.IntegrationID != nil {
		// items outlive a disconnected integration; only a live one owned
		// by another tenant is refused
		integ, err := s.integrations.FindByID(ctx, *filter.IntegrationID)
		switch {
		case err == nil && integ.TenantID != tenantID:
			return nil, 0, integration.ErrIntegrationNotFound
		case err != nil && !errors.Is(err, shared.ErrNotFound):
			return nil, 0, err
		}
	}
	return s.inbox.FindByFilter(ctx, filter)
}

// Reprocess normalizes and applies an inbox item again. A processed item
// is returned unchanged. A failed attempt leaves the item FAILED with its
// retry count incremented; it is reported through the returned item. An
// item whose integration was disconnected is failed the same way.
func (s *InboxService) Reprocess(ctx context.Context, tenantID, itemID uuid.UUID) (*integration.InboxItem, error) {
	s.locks.Lock(itemID)
	defer s.locks.Unlock(itemID)

	item, err := s.inbox.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.TenantID != tenantID {
		return nil, integration.ErrInboxItemNotFound
	}
	if item.IsProcessed() {
		return item, nil
	}

	var applyErr error
	integ, err := s.integrations.FindByIDForTenant(ctx, tenantID, item.IntegrationID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		applyErr = errIntegrationDisconnected
	case err != nil:
		return nil, err
	default:
		applyErr = s.apply(ctx, integ, item)
	}

	if applyErr != nil {
		if err := item.MarkFailed(applyErr.Error()); err != nil {
			return nil, err
		}
		if err := s.inbox.Save(ctx, item); err != nil {
			return nil, err
		}
		s.logger.Warn("Inbox item reprocess failed",
			zap.String("inbox_item_id", item.ID.String()),
			zap.String("integration_id", item.IntegrationID.String()),
			zap.Int("retry_count", item.RetryCount),
			zap.Error(applyErr))
		return item, nil
	}

	item.MarkProcessed(s.now())
	if err := s.inbox.Save(ctx, item); err != nil {
		return nil, err
	}
	s.logger.Info("Inbox item reprocessed",
		zap.String("inbox_item_id", item.ID.String()),
		zap.String("integration_id", integ.ID.String()))
	return item, nil
}

func (s *InboxService) apply(ctx context.Context, integ *integration.Integration, item *integration.InboxItem) error {
	platform := item.Platform
	if !platform.IsValid() {
		platform = integ.Platform
	}
	normalizer, ok := s.factory.Normalizer(platform)
	if !ok {
		return fmt.Errorf("no order normalizer for platform %s", platform)
	}
	order, err := normalizer.NormalizeOrder(item.Payload)
	if err != nil {
		return err
	}
	order.Raw = item.Payload
	return s.sink.Ingest(ctx, integ, order)
}
