package integration

import (
	"context"

	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
)

// LoggingOrderSink accepts every order and logs it. It stands in for the
// order-management collaborator when none is configured.
type LoggingOrderSink struct {
	logger *zap.Logger
}

// NewLoggingOrderSink creates a LoggingOrderSink
func NewLoggingOrderSink(logger *zap.Logger) *LoggingOrderSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingOrderSink{logger: logger}
}

// Ingest implements integration.OrderSink
func (s *LoggingOrderSink) Ingest(ctx context.Context, integ *integration.Integration, order *integration.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("Order received from platform",
		zap.String("integration_id", integ.ID.String()),
		zap.String("tenant_id", integ.TenantID.String()),
		zap.String("platform", order.Platform.String()),
		zap.String("external_id", order.ExternalID),
		zap.String("status", string(order.Status)),
		zap.Int("items", len(order.Items)),
		zap.String("total", order.Total.StringFixed(2)),
	)
	return nil
}

var _ integration.OrderSink = (*LoggingOrderSink)(nil)
