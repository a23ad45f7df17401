package integration

import (
	"context"
	"time"

	"github.com/restohub/backend/internal/domain/integration"
)

// SyncMetrics receives sync outcomes for instrumentation
type SyncMetrics interface {
	RecordSync(ctx context.Context, platform integration.Platform, syncType integration.SyncType, status integration.SyncLogStatus, duration time.Duration)
	RecordOrders(ctx context.Context, platform integration.Platform, processed, inboxed int)
	RecordActive(ctx context.Context, count int)
}

type noopSyncMetrics struct{}

func (noopSyncMetrics) RecordSync(context.Context, integration.Platform, integration.SyncType, integration.SyncLogStatus, time.Duration) {
}

func (noopSyncMetrics) RecordOrders(context.Context, integration.Platform, int, int) {}

func (noopSyncMetrics) RecordActive(context.Context, int) {}
