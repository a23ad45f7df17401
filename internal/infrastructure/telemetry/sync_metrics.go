package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/restohub/backend/internal/domain/integration"
)

// SyncMetrics records sync outcomes and order throughput per platform
type SyncMetrics struct {
	syncs         *Counter
	syncDuration  *Histogram
	ordersHandled *Counter
	ordersInboxed *Counter
	active        *Gauge
}

// NewSyncMetrics creates the sync instruments on meter
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	syncs, err := NewCounter(meter,
		"integration_sync_total",
		"Completed sync attempts by platform, type and outcome",
		"{sync}")
	if err != nil {
		return nil, err
	}

	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "integration_sync_duration_seconds",
		Description: "Wall time of a sync attempt",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	handled, err := NewCounter(meter,
		"integration_orders_processed_total",
		"Orders accepted by the order sink",
		"{order}")
	if err != nil {
		return nil, err
	}

	inboxed, err := NewCounter(meter,
		"integration_orders_inboxed_total",
		"Orders parked in the inbox after a sink failure",
		"{order}")
	if err != nil {
		return nil, err
	}

	active, err := NewGauge(meter,
		"integration_active",
		"Integrations currently registered for syncing",
		"{integration}")
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncs:         syncs,
		syncDuration:  duration,
		ordersHandled: handled,
		ordersInboxed: inboxed,
		active:        active,
	}, nil
}

// RecordSync counts one finished sync and its duration
func (m *SyncMetrics) RecordSync(ctx context.Context, platform integration.Platform, syncType integration.SyncType, status integration.SyncLogStatus, duration time.Duration) {
	m.syncs.Inc(ctx,
		AttrPlatform.String(platform.String()),
		AttrSyncType.String(string(syncType)),
		AttrSyncStatus.String(string(status)),
	)
	m.syncDuration.RecordDuration(ctx, duration,
		AttrPlatform.String(platform.String()),
		AttrSyncType.String(string(syncType)),
	)
}

// RecordOrders adds the processed and inboxed counts of one sync
func (m *SyncMetrics) RecordOrders(ctx context.Context, platform integration.Platform, processed, inboxed int) {
	if processed > 0 {
		m.ordersHandled.Add(ctx, int64(processed), AttrPlatform.String(platform.String()))
	}
	if inboxed > 0 {
		m.ordersInboxed.Add(ctx, int64(inboxed), AttrPlatform.String(platform.String()))
	}
}

// RecordActive reports the number of registered integrations
func (m *SyncMetrics) RecordActive(ctx context.Context, count int) {
	m.active.Record(ctx, int64(count))
}
