package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/domain/shared"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var ifoodCredentials = integration.Credentials{
	"client_id":     "client",
	"client_secret": "secret",
	"merchant_id":   "m-1",
}

var lalamoveCredentials = integration.Credentials{
	"api_key":    "pk_test",
	"api_secret": "sk_test",
	"market":     "BR",
}

// recordingMetrics captures sync metrics for assertions
type recordingMetrics struct {
	mu       sync.Mutex
	statuses []integration.SyncLogStatus
	orders   int
}

func (r *recordingMetrics) RecordSync(_ context.Context, _ integration.Platform, _ integration.SyncType, status integration.SyncLogStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
}

func (r *recordingMetrics) RecordOrders(_ context.Context, _ integration.Platform, processed, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders += processed
}

func (r *recordingMetrics) RecordActive(context.Context, int) {}

func (r *recordingMetrics) snapshot() ([]integration.SyncLogStatus, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]integration.SyncLogStatus(nil), r.statuses...), r.orders
}

type managerFixture struct {
	manager      *Manager
	integrations *memoryIntegrationRepo
	syncLogs     *memorySyncLogRepo
	inbox        *memoryInboxRepo
	factory      *MockAdapterFactory
	sink         *MockOrderSink
	metrics      *recordingMetrics
	lease        *integration.LocalSyncLease
	tenantID     uuid.UUID
}

func newManagerFixture(t *testing.T, cfg ManagerConfig) *managerFixture {
	t.Helper()
	f := &managerFixture{
		integrations: newMemoryIntegrationRepo(),
		syncLogs:     newMemorySyncLogRepo(),
		inbox:        newMemoryInboxRepo(),
		factory:      new(MockAdapterFactory),
		sink:         new(MockOrderSink),
		metrics:      &recordingMetrics{},
		lease:        integration.NewLocalSyncLease(nil),
		tenantID:     uuid.New(),
	}
	f.manager = f.newReplica(t, cfg)
	return f
}

// newReplica starts a manager sharing the fixture's stores and lease, as a
// second process of the same deployment would
func (f *managerFixture) newReplica(t *testing.T, cfg ManagerConfig) *Manager {
	t.Helper()
	m, err := NewManager(ManagerDeps{
		Integrations: f.integrations,
		SyncLogs:     f.syncLogs,
		Inbox:        f.inbox,
		Factory:      f.factory,
		Sink:         f.sink,
		Lease:        f.lease,
		Metrics:      f.metrics,
	}, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})
	return m
}

// connectSales connects an iFood integration and verifies it through Test
func (f *managerFixture) connectSales(t *testing.T) (*integration.Integration, *MockSalesAdapter) {
	t.Helper()
	adapter := new(MockSalesAdapter)
	return f.connectSalesAdapter(t, adapter, adapter), adapter
}

// connectSalesAdapter connects an iFood integration backed by adapter;
// base carries its expectations
func (f *managerFixture) connectSalesAdapter(t *testing.T, adapter integration.SalesAdapter, base *MockSalesAdapter) *integration.Integration {
	t.Helper()
	base.On("TestConnection", mock.Anything).Return(nil)
	f.factory.On("NewAdapter", mock.MatchedBy(func(d integration.Descriptor) bool {
		return d.Platform == integration.PlatformIFood
	})).Return(adapter, nil)

	integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
		Platform:    integration.PlatformIFood,
		Credentials: ifoodCredentials,
	})
	require.NoError(t, err)
	require.Equal(t, integration.StatusConfigured, integ.Status)

	result, err := f.manager.Test(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	require.True(t, result.Connected)
	return integ
}

// connectLogistics connects a Lalamove integration and activates it through Toggle
func (f *managerFixture) connectLogistics(t *testing.T) (*integration.Integration, *MockLogisticsAdapter) {
	t.Helper()
	adapter := new(MockLogisticsAdapter)
	f.factory.On("NewAdapter", mock.MatchedBy(func(d integration.Descriptor) bool {
		return d.Platform == integration.PlatformLalamove
	})).Return(adapter, nil)

	integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
		Platform:    integration.PlatformLalamove,
		Credentials: lalamoveCredentials,
	})
	require.NoError(t, err)
	integ, err = f.manager.Toggle(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	require.Equal(t, integration.StatusConnected, integ.Status)
	return integ, adapter
}

func (f *managerFixture) status(t *testing.T, id uuid.UUID) integration.Status {
	t.Helper()
	integ, err := f.integrations.FindByID(context.Background(), id)
	require.NoError(t, err)
	return integ.Status
}

func makeOrders(n int) []integration.Order {
	orders := make([]integration.Order, n)
	for i := range orders {
		id := fmt.Sprintf("order-%d", i+1)
		orders[i] = integration.Order{
			ExternalID: id,
			Platform:   integration.PlatformIFood,
			Status:     integration.OrderStatusConfirmed,
			Items: []integration.OrderItem{
				{Name: "Burger", Quantity: 1, UnitPrice: decimal.NewFromInt(30), TotalPrice: decimal.NewFromInt(30)},
			},
			Total:    decimal.NewFromInt(30),
			Currency: "BRL",
			Raw:      json.RawMessage(fmt.Sprintf(`{"id":%q}`, id)),
		}
	}
	return orders
}

// ---------------------------------------------------------------------------
// Construction & lifecycle
// ---------------------------------------------------------------------------

func TestNewManager_RequiresCollaborators(t *testing.T) {
	_, err := NewManager(ManagerDeps{}, DefaultManagerConfig(), nil)
	assert.Error(t, err)

	_, err = NewManager(ManagerDeps{
		Integrations: newMemoryIntegrationRepo(),
		SyncLogs:     newMemorySyncLogRepo(),
		Inbox:        newMemoryInboxRepo(),
	}, DefaultManagerConfig(), nil)
	assert.Error(t, err)
}

func TestNewManager_AppliesDefaults(t *testing.T) {
	m, err := NewManager(ManagerDeps{
		Integrations: newMemoryIntegrationRepo(),
		SyncLogs:     newMemorySyncLogRepo(),
		Inbox:        newMemoryInboxRepo(),
		Factory:      new(MockAdapterFactory),
	}, ManagerConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultManagerConfig(), m.config)
	assert.NotNil(t, m.sink)
	assert.NotNil(t, m.lease)
	assert.False(t, m.IsRunning())
}

func TestManager_StartStop(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	assert.True(t, f.manager.IsRunning())
	assert.Error(t, f.manager.Start())

	integ, _ := f.connectSales(t)
	require.NoError(t, f.manager.Stop(context.Background()))
	assert.False(t, f.manager.IsRunning())

	_, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	assert.ErrorIs(t, err, ErrManagerNotRunning)

	// stopping twice is a no-op
	assert.NoError(t, f.manager.Stop(context.Background()))
}

// ---------------------------------------------------------------------------
// Connect / Update / Disconnect
// ---------------------------------------------------------------------------

func TestManager_Connect(t *testing.T) {
	t.Run("with credentials starts configured", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
			Platform:    integration.PlatformIFood,
			Credentials: ifoodCredentials,
		})
		require.NoError(t, err)
		assert.Equal(t, integration.StatusConfigured, integ.Status)
		assert.Equal(t, "m-1", integ.ExternalID)
		assert.Equal(t, 0, f.manager.Registry().Len())
	})

	t.Run("without credentials starts stopped", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{Platform: integration.PlatformRappi})
		require.NoError(t, err)
		assert.Equal(t, integration.StatusStopped, integ.Status)
	})

	t.Run("duplicate platform conflicts", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		req := ConnectRequest{Platform: integration.PlatformIFood, Credentials: ifoodCredentials}
		_, err := f.manager.Connect(context.Background(), f.tenantID, req)
		require.NoError(t, err)

		_, err = f.manager.Connect(context.Background(), f.tenantID, req)
		assert.ErrorIs(t, err, integration.ErrIntegrationExists)
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("different sub-tenant is allowed", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		_, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
			Platform: integration.PlatformIFood, Credentials: ifoodCredentials,
		})
		require.NoError(t, err)

		unit := uuid.New()
		integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
			Platform: integration.PlatformIFood, SubTenantID: &unit, Credentials: ifoodCredentials,
		})
		require.NoError(t, err)
		assert.Equal(t, &unit, integ.SubTenantID)
	})

	t.Run("unknown platform", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		_, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{Platform: "GLOVO"})
		assert.ErrorIs(t, err, integration.ErrUnknownPlatform)
	})

	t.Run("incomplete credentials", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		_, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
			Platform:    integration.PlatformIFood,
			Credentials: integration.Credentials{"client_id": "client"},
		})
		assert.ErrorIs(t, err, shared.ErrCredential)
	})
}

func TestManager_Connect_LogsCredentialFieldsOnly(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m, err := NewManager(ManagerDeps{
		Integrations: newMemoryIntegrationRepo(),
		SyncLogs:     newMemorySyncLogRepo(),
		Inbox:        newMemoryInboxRepo(),
		Factory:      new(MockAdapterFactory),
	}, DefaultManagerConfig(), zap.New(core))
	require.NoError(t, err)

	_, err = m.Connect(context.Background(), uuid.New(), ConnectRequest{
		Platform:    integration.PlatformIFood,
		Credentials: ifoodCredentials,
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("Integration connected").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, []any{"client_id", "client_secret", "merchant_id"}, fields["credential_fields"])
	for _, entry := range logs.All() {
		for _, v := range entry.ContextMap() {
			assert.NotEqual(t, ifoodCredentials.Get("client_secret"), v)
		}
	}
}

func TestManager_UpdateCredentials_LeavesRegistry(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, _ := f.connectSales(t)
	require.Equal(t, 1, f.manager.Registry().Len())

	freq := 30
	updated, err := f.manager.UpdateCredentials(context.Background(), f.tenantID, integ.ID, UpdateCredentialsRequest{
		Credentials:          integration.Credentials{"client_id": "c2", "client_secret": "s2", "merchant_id": "m-2"},
		SyncFrequencyMinutes: &freq,
	})
	require.NoError(t, err)
	assert.Equal(t, integration.StatusConfigured, updated.Status)
	assert.Equal(t, 30, updated.SyncFrequencyMinutes)
	assert.Equal(t, "m-2", updated.ExternalID)
	assert.Equal(t, 0, f.manager.Registry().Len())
}

func TestManager_Disconnect(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, _ := f.connectSales(t)

	t.Run("other tenant cannot disconnect", func(t *testing.T) {
		err := f.manager.Disconnect(context.Background(), uuid.New(), integ.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Equal(t, 1, f.manager.Registry().Len())
	})

	t.Run("removes from registry and store", func(t *testing.T) {
		require.NoError(t, f.manager.Disconnect(context.Background(), f.tenantID, integ.ID))
		_, ok := f.manager.Registry().Get(integ.ID)
		assert.False(t, ok)
		_, err := f.manager.Get(context.Background(), f.tenantID, integ.ID)
		assert.ErrorIs(t, err, integration.ErrIntegrationNotFound)
	})
}

func TestManager_Catalog(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	f.factory.On("Supports", integration.PlatformIFood).Return(true)
	f.factory.On("Supports", integration.PlatformLalamove).Return(true)
	f.factory.On("Supports", mock.Anything).Return(false)

	integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
		Platform: integration.PlatformIFood, Credentials: ifoodCredentials,
	})
	require.NoError(t, err)

	entries, err := f.manager.Catalog(context.Background(), f.tenantID)
	require.NoError(t, err)
	require.Len(t, entries, len(integration.Catalog()))

	byPlatform := make(map[integration.Platform]CatalogEntryResponse)
	for _, e := range entries {
		byPlatform[e.Platform] = e
	}
	ifood := byPlatform[integration.PlatformIFood]
	assert.True(t, ifood.AdapterAvailable)
	require.Len(t, ifood.Integrations, 1)
	assert.Equal(t, integ.ID, ifood.Integrations[0].IntegrationID)
	assert.Equal(t, integration.StatusConfigured, ifood.Integrations[0].Status)

	rappi := byPlatform[integration.PlatformRappi]
	assert.False(t, rappi.AdapterAvailable)
	assert.Empty(t, rappi.Integrations)
	assert.Equal(t, []string{"api_key", "store_id"}, rappi.RequiredCredentialFields)
}

// ---------------------------------------------------------------------------
// Test & Toggle
// ---------------------------------------------------------------------------

func TestManager_Test(t *testing.T) {
	t.Run("reachable platform connects", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		integ, _ := f.connectSales(t)

		assert.Equal(t, integration.StatusConnected, f.status(t, integ.ID))
		handle, ok := f.manager.Registry().Get(integ.ID)
		require.True(t, ok)
		assert.NotNil(t, handle.NextSyncAt)
	})

	t.Run("unreachable platform degrades", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		integ, adapter := f.connectSales(t)
		adapter.ExpectedCalls = nil
		adapter.On("TestConnection", mock.Anything).Return(integration.ErrPlatformAuthFailed)

		result, err := f.manager.Test(context.Background(), f.tenantID, integ.ID)
		require.NoError(t, err)
		assert.False(t, result.Connected)
		assert.Equal(t, integration.StatusDegraded, result.Status)
		assert.Contains(t, result.Message, "authentication failed")
		assert.Equal(t, 0, f.manager.Registry().Len())
	})

	t.Run("missing credentials", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{Platform: integration.PlatformIFood})
		require.NoError(t, err)

		_, err = f.manager.Test(context.Background(), f.tenantID, integ.ID)
		assert.ErrorIs(t, err, shared.ErrCredential)
		assert.Contains(t, err.Error(), "client_secret")
	})

	t.Run("no adapter for platform", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		f.factory.On("NewAdapter", mock.Anything).Return(nil, integration.ErrAdapterNotAvailable)
		integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{
			Platform:    integration.PlatformRappi,
			Credentials: integration.Credentials{"api_key": "k", "store_id": "s"},
		})
		require.NoError(t, err)

		_, err = f.manager.Test(context.Background(), f.tenantID, integ.ID)
		assert.ErrorIs(t, err, shared.ErrConnection)
		assert.ErrorIs(t, err, integration.ErrAdapterNotAvailable)
		assert.Equal(t, integration.StatusConfigured, f.status(t, integ.ID))
	})

	t.Run("other tenant", func(t *testing.T) {
		f := newManagerFixture(t, DefaultManagerConfig())
		integ, _ := f.connectSales(t)
		_, err := f.manager.Test(context.Background(), uuid.New(), integ.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestManager_Toggle(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, _ := f.connectSales(t)

	stopped, err := f.manager.Toggle(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.StatusStopped, stopped.Status)
	assert.Equal(t, 0, f.manager.Registry().Len())

	_, err = f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	assert.ErrorIs(t, err, integration.ErrIntegrationNotActive)

	active, err := f.manager.Toggle(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.StatusConnected, active.Status)
	_, ok := f.manager.Registry().Get(integ.ID)
	assert.True(t, ok)
}

func TestManager_Toggle_WithoutCredentials(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, err := f.manager.Connect(context.Background(), f.tenantID, ConnectRequest{Platform: integration.PlatformIFood})
	require.NoError(t, err)

	_, err = f.manager.Toggle(context.Background(), f.tenantID, integ.ID)
	assert.ErrorIs(t, err, shared.ErrCredential)
	assert.Equal(t, integration.StatusStopped, f.status(t, integ.ID))
}

// ---------------------------------------------------------------------------
// Sync execution
// ---------------------------------------------------------------------------

func TestManager_TriggerSync_Success(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)
	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	release := make(chan struct{})
	adapter.On("FetchOrders", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&integration.FetchResult{Orders: makeOrders(12)}, nil).
		Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.SyncLogStatusRunning, started.Status)
	assert.Equal(t, integration.SyncTypeManual, started.SyncType)
	assert.Equal(t, integration.StatusIngesting, f.status(t, integ.ID))

	close(release)
	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusConnected
	}, waitFor, tick)

	log := f.syncLogs.get(started.ID)
	assert.Equal(t, integration.SyncLogStatusSuccess, log.Status)
	require.NotNil(t, log.RecordsProcessed)
	assert.Equal(t, 12, *log.RecordsProcessed)
	assert.NotNil(t, log.CompletedAt)
	assert.Empty(t, log.Errors)

	stored, err := f.manager.Get(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastSyncAt)
	assert.Empty(t, stored.LastError)
	f.sink.AssertNumberOfCalls(t, "Ingest", 12)

	statuses, orders := f.metrics.snapshot()
	assert.Equal(t, []integration.SyncLogStatus{integration.SyncLogStatusSuccess}, statuses)
	assert.Equal(t, 12, orders)

	require.NoError(t, f.manager.Disconnect(context.Background(), f.tenantID, integ.ID))
	_, ok := f.manager.Registry().Get(integ.ID)
	assert.False(t, ok)
}

func TestManager_TriggerSync_AcknowledgesAfterIngest(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	adapter := new(MockAckingSalesAdapter)
	integ := f.connectSalesAdapter(t, adapter, &adapter.MockSalesAdapter)

	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	adapter.On("FetchOrders", mock.Anything).
		Return(&integration.FetchResult{Orders: makeOrders(2), Receipts: []string{"e-1", "e-2"}}, nil).
		Once()
	adapter.On("AcknowledgeOrders", mock.Anything, []string{"e-1", "e-2"}).Return(nil).Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusConnected
	}, waitFor, tick)

	assert.Equal(t, integration.SyncLogStatusSuccess, f.syncLogs.get(started.ID).Status)
	adapter.AssertExpectations(t)
}

func TestManager_TriggerSync_InboxWriteFailureFailsSync(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	adapter := new(MockAckingSalesAdapter)
	integ := f.connectSalesAdapter(t, adapter, &adapter.MockSalesAdapter)
	f.inbox.createErr = errors.New("db down")

	adapter.On("FetchOrders", mock.Anything).
		Return(&integration.FetchResult{
			Rejected: []integration.RejectedRecord{{ExternalRef: "bad-1", Payload: json.RawMessage(`{"id":"bad-1"}`), Reason: "no totals"}},
			Receipts: []string{"e-1"},
		}, nil).
		Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusDegraded
	}, waitFor, tick)

	log := f.syncLogs.get(started.ID)
	assert.Equal(t, integration.SyncLogStatusFailed, log.Status)
	require.Len(t, log.Errors, 1)
	assert.Equal(t, integration.DetailCodeInboxWrite, log.Errors[0].Code)
	assert.Equal(t, "bad-1", log.Errors[0].Reference)

	// the platform keeps the record for redelivery
	adapter.AssertNotCalled(t, "AcknowledgeOrders", mock.Anything, mock.Anything)
	assert.Empty(t, f.inbox.all())

	_, err = f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	assert.ErrorIs(t, err, integration.ErrIntegrationNotActive)
}

func TestManager_TriggerSync_AcknowledgeFailureFailsSync(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	adapter := new(MockAckingSalesAdapter)
	integ := f.connectSalesAdapter(t, adapter, &adapter.MockSalesAdapter)

	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	adapter.On("FetchOrders", mock.Anything).
		Return(&integration.FetchResult{Orders: makeOrders(1), Receipts: []string{"e-1"}}, nil).
		Once()
	adapter.On("AcknowledgeOrders", mock.Anything, mock.Anything).Return(integration.ErrPlatformRequestFailed).Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusDegraded
	}, waitFor, tick)

	log := f.syncLogs.get(started.ID)
	assert.Equal(t, integration.SyncLogStatusFailed, log.Status)
	require.Len(t, log.Errors, 1)
	assert.Equal(t, integration.DetailCodeAckFailed, log.Errors[0].Code)
}

func TestManager_TriggerSync_Timeout(t *testing.T) {
	cfg := DefaultManagerConfig()
	cfg.AdapterTimeout = 50 * time.Millisecond
	f := newManagerFixture(t, cfg)
	integ, adapter := f.connectSales(t)

	adapter.On("FetchOrders", mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).
		Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusDegraded
	}, waitFor, tick)

	log := f.syncLogs.get(started.ID)
	assert.Equal(t, integration.SyncLogStatusFailed, log.Status)
	require.Len(t, log.Errors, 1)
	assert.Equal(t, integration.DetailCodeTimeout, log.Errors[0].Code)
	assert.Contains(t, log.Errors[0].Message, "timed out")

	stored, err := f.manager.Get(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.Contains(t, stored.LastError, "timed out")
	assert.Equal(t, 0, f.manager.Registry().Len())

	_, err = f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	assert.ErrorIs(t, err, integration.ErrIntegrationNotActive)

	result, err := f.manager.Test(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.True(t, result.Connected)
	assert.Equal(t, integration.StatusConnected, f.status(t, integ.ID))
}

func TestManager_TriggerSync_AdapterError(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)
	adapter.On("FetchOrders", mock.Anything).Return(nil, integration.ErrPlatformUnavailable).Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusDegraded
	}, waitFor, tick)
	log := f.syncLogs.get(started.ID)
	assert.Equal(t, integration.SyncLogStatusFailed, log.Status)
	require.Len(t, log.Errors, 1)
	assert.Equal(t, integration.DetailCodeAdapter, log.Errors[0].Code)

	statuses, _ := f.metrics.snapshot()
	assert.Equal(t, []integration.SyncLogStatus{integration.SyncLogStatusFailed}, statuses)
}

func TestManager_TriggerSync_MutualExclusion(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)
	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	release := make(chan struct{})
	adapter.On("FetchOrders", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&integration.FetchResult{}, nil)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, integration.ErrIntegrationNotActive) {
				rejected++
			}
		}()
	}
	wg.Wait()
	close(release)

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, callers-1, rejected)

	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusConnected
	}, waitFor, tick)
	logs, total, err := f.manager.ListSyncLogs(context.Background(), f.tenantID, integ.ID, integration.SyncLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	adapter.AssertNumberOfCalls(t, "FetchOrders", 1)
}

func TestManager_ToggleDuringSync_StaysStopped(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)
	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	release := make(chan struct{})
	adapter.On("FetchOrders", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&integration.FetchResult{Orders: makeOrders(2)}, nil).
		Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)

	stopped, err := f.manager.Toggle(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.StatusStopped, stopped.Status)

	close(release)
	require.Eventually(t, func() bool {
		return f.syncLogs.get(started.ID).Status == integration.SyncLogStatusSuccess
	}, waitFor, tick)

	assert.Equal(t, integration.StatusStopped, f.status(t, integ.ID))
	assert.Equal(t, 0, f.manager.Registry().Len())
}

func TestManager_DisconnectDuringSync_RecordsLog(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)
	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	release := make(chan struct{})
	adapter.On("FetchOrders", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&integration.FetchResult{Orders: makeOrders(3)}, nil).
		Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	require.NoError(t, f.manager.Disconnect(context.Background(), f.tenantID, integ.ID))

	close(release)
	require.Eventually(t, func() bool {
		return f.syncLogs.get(started.ID).Status == integration.SyncLogStatusSuccess
	}, waitFor, tick)

	_, err = f.integrations.FindByID(context.Background(), integ.ID)
	assert.ErrorIs(t, err, integration.ErrIntegrationNotFound)
}

func TestManager_TriggerSync_DivertsToInbox(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)

	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.MatchedBy(func(o *integration.Order) bool {
		return o.ExternalID == "order-2"
	})).Return(errors.New("menu item not mapped"))
	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	adapter.On("FetchOrders", mock.Anything).Return(&integration.FetchResult{
		Orders: makeOrders(2),
		Rejected: []integration.RejectedRecord{
			{ExternalRef: "bad-1", Payload: json.RawMessage(`{"id":"bad-1"}`), Reason: "no totals"},
		},
	}, nil).Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusConnected
	}, waitFor, tick)

	log := f.syncLogs.get(started.ID)
	assert.Equal(t, integration.SyncLogStatusSuccess, log.Status)
	require.NotNil(t, log.RecordsProcessed)
	assert.Equal(t, 1, *log.RecordsProcessed)
	require.Len(t, log.Errors, 2)
	for _, detail := range log.Errors {
		assert.Equal(t, integration.DetailCodeInboxed, detail.Code)
	}

	items := f.inbox.all()
	require.Len(t, items, 2)
	payloads := map[string]string{}
	for _, item := range items {
		assert.Equal(t, integration.InboxStatusPending, item.Status)
		assert.Equal(t, f.tenantID, item.TenantID)
		payloads[item.ExternalRef] = string(item.Payload)
	}
	assert.JSONEq(t, `{"id":"order-2"}`, payloads["order-2"])
	assert.JSONEq(t, `{"id":"bad-1"}`, payloads["bad-1"])
}

func TestManager_TriggerSync_Capability(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, _ := f.connectLogistics(t)

	_, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	assert.ErrorIs(t, err, integration.ErrCapabilityNotSupported)

	_, err = f.manager.TriggerSync(context.Background(), uuid.New(), integ.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestManager_RunDueSyncs(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	sales, adapter := f.connectSales(t)
	f.connectLogistics(t)
	adapter.On("FetchOrders", mock.Anything).Return(&integration.FetchResult{}, nil)

	assert.Equal(t, 0, f.manager.RunDueSyncs(context.Background(), time.Now()))

	started := f.manager.RunDueSyncs(context.Background(), time.Now().Add(25*time.Hour))
	assert.Equal(t, 1, started)

	require.Eventually(t, func() bool {
		logs, _, err := f.manager.ListSyncLogs(context.Background(), f.tenantID, sales.ID, integration.SyncLogFilter{})
		return err == nil && len(logs) == 1 && logs[0].Status == integration.SyncLogStatusSuccess
	}, waitFor, tick)
	logs, _, err := f.manager.ListSyncLogs(context.Background(), f.tenantID, sales.ID, integration.SyncLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, integration.SyncTypeScheduled, logs[0].SyncType)

	require.Eventually(t, func() bool {
		handle, ok := f.manager.Registry().Get(sales.ID)
		return ok && handle.NextSyncAt != nil && handle.NextSyncAt.After(time.Now())
	}, waitFor, tick)
}

func TestManager_FetchOrders(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)
	adapter.On("FetchOrders", mock.Anything).Return(&integration.FetchResult{Orders: makeOrders(4)}, nil).Once()
	adapter.On("FetchOrders", mock.Anything).Return(nil, integration.ErrPlatformRateLimited).Once()

	result, err := f.manager.FetchOrders(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)
	assert.Len(t, result.Orders, 4)
	assert.Equal(t, integration.StatusConnected, f.status(t, integ.ID))

	_, err = f.manager.FetchOrders(context.Background(), f.tenantID, integ.ID)
	assert.ErrorIs(t, err, shared.ErrConnection)
	assert.ErrorIs(t, err, integration.ErrPlatformRateLimited)
}

// ---------------------------------------------------------------------------
// Restore
// ---------------------------------------------------------------------------

func TestManager_Restore(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	f.factory.On("NewAdapter", mock.Anything).Return(new(MockSalesAdapter), nil)

	newStored := func(status integration.Status) *integration.Integration {
		integ, err := integration.NewIntegration(f.tenantID, nil, integration.PlatformIFood, ifoodCredentials, 0)
		require.NoError(t, err)
		integ.Status = status
		f.integrations.put(integ)
		return integ
	}
	connected := newStored(integration.StatusConnected)
	ingesting := newStored(integration.StatusIngesting)
	degraded := newStored(integration.StatusDegraded)

	running, err := integration.NewSyncLog(ingesting.ID, f.tenantID, integration.SyncTypeScheduled)
	require.NoError(t, err)
	require.NoError(t, f.syncLogs.Create(context.Background(), running))

	restored, err := f.manager.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	_, ok := f.manager.Registry().Get(connected.ID)
	assert.True(t, ok)
	_, ok = f.manager.Registry().Get(ingesting.ID)
	assert.False(t, ok)
	_, ok = f.manager.Registry().Get(degraded.ID)
	assert.False(t, ok)

	assert.Equal(t, integration.StatusDegraded, f.status(t, ingesting.ID))
	interrupted := f.syncLogs.get(running.ID)
	assert.Equal(t, integration.SyncLogStatusFailed, interrupted.Status)
	require.Len(t, interrupted.Errors, 1)
	assert.Equal(t, integration.DetailCodeInterrupted, interrupted.Errors[0].Code)
	assert.Zero(t, f.lease.Size(), "restore releases the claim it took")
}

func TestManager_Restore_LeavesLiveSyncOfAnotherReplica(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	integ, adapter := f.connectSales(t)
	f.sink.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	release := make(chan struct{})
	adapter.On("FetchOrders", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(&integration.FetchResult{Orders: makeOrders(3)}, nil).
		Once()

	started, err := f.manager.TriggerSync(context.Background(), f.tenantID, integ.ID)
	require.NoError(t, err)

	replica := f.newReplica(t, DefaultManagerConfig())
	restored, err := replica.Restore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, restored)
	assert.Equal(t, integration.StatusIngesting, f.status(t, integ.ID))
	assert.Equal(t, integration.SyncLogStatusRunning, f.syncLogs.get(started.ID).Status)

	close(release)
	require.Eventually(t, func() bool {
		return f.status(t, integ.ID) == integration.StatusConnected
	}, waitFor, tick)

	log := f.syncLogs.get(started.ID)
	assert.Equal(t, integration.SyncLogStatusSuccess, log.Status)
	require.NotNil(t, log.RecordsProcessed)
	assert.Equal(t, 3, *log.RecordsProcessed)
}

func TestManager_Restore_AdapterConstructionFails(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	f.factory.On("NewAdapter", mock.Anything).Return(nil, errors.New("bad credentials format"))

	integ, err := integration.NewIntegration(f.tenantID, nil, integration.PlatformIFood, ifoodCredentials, 0)
	require.NoError(t, err)
	integ.Status = integration.StatusConnected
	f.integrations.put(integ)

	restored, err := f.manager.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, restored)
	assert.Equal(t, integration.StatusDegraded, f.status(t, integ.ID))
}

// ---------------------------------------------------------------------------
// Delivery gateway
// ---------------------------------------------------------------------------

func quoteRequest() *integration.DeliveryQuoteRequest {
	return &integration.DeliveryQuoteRequest{
		Pickup:  integration.Address{Street: "Rua A, 1", City: "Sao Paulo"},
		Dropoff: integration.Address{Street: "Rua B, 2", City: "Sao Paulo"},
	}
}

func TestManager_GetQuote(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	logistics, adapter := f.connectLogistics(t)
	sales, _ := f.connectSales(t)

	t.Run("returns quote", func(t *testing.T) {
		adapter.On("GetQuote", mock.Anything, mock.Anything).Return(&integration.DeliveryQuote{
			QuoteID: "q-1", Price: decimal.RequireFromString("18.50"), Currency: "BRL",
		}, nil).Once()

		quote, err := f.manager.GetQuote(context.Background(), f.tenantID, logistics.ID, quoteRequest())
		require.NoError(t, err)
		assert.Equal(t, "q-1", quote.QuoteID)
	})

	t.Run("adapter failure is a connection error", func(t *testing.T) {
		adapter.On("GetQuote", mock.Anything, mock.Anything).Return(nil, integration.ErrPlatformUnavailable).Once()

		_, err := f.manager.GetQuote(context.Background(), f.tenantID, logistics.ID, quoteRequest())
		assert.ErrorIs(t, err, shared.ErrConnection)
		assert.Equal(t, integration.StatusConnected, f.status(t, logistics.ID))
	})

	t.Run("invalid request", func(t *testing.T) {
		_, err := f.manager.GetQuote(context.Background(), f.tenantID, logistics.ID, &integration.DeliveryQuoteRequest{})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("sales integration lacks capability", func(t *testing.T) {
		_, err := f.manager.GetQuote(context.Background(), f.tenantID, sales.ID, quoteRequest())
		assert.ErrorIs(t, err, integration.ErrCapabilityNotSupported)
	})

	t.Run("other tenant", func(t *testing.T) {
		_, err := f.manager.GetQuote(context.Background(), uuid.New(), logistics.ID, quoteRequest())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("inactive integration", func(t *testing.T) {
		_, err := f.manager.Toggle(context.Background(), f.tenantID, logistics.ID)
		require.NoError(t, err)

		_, err = f.manager.GetQuote(context.Background(), f.tenantID, logistics.ID, quoteRequest())
		assert.ErrorIs(t, err, integration.ErrIntegrationNotActive)
	})
}

func TestManager_RequestDeliveryAndTracking(t *testing.T) {
	f := newManagerFixture(t, DefaultManagerConfig())
	logistics, adapter := f.connectLogistics(t)

	req := &integration.DeliveryRequest{
		QuoteID:   "q-1",
		Recipient: integration.Contact{Name: "Maria", Phone: "+5511988880000"},
		Reference: "order-1234",
	}
	adapter.On("RequestDelivery", mock.Anything, req).Return("delivery-9", nil).Once()
	adapter.On("GetTracking", mock.Anything, "delivery-9").Return(&integration.DeliveryTracking{
		DeliveryID: "delivery-9",
		Status:     integration.TrackingStatusPickedUp,
	}, nil).Once()

	deliveryID, err := f.manager.RequestDelivery(context.Background(), f.tenantID, logistics.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "delivery-9", deliveryID)

	tracking, err := f.manager.GetTracking(context.Background(), f.tenantID, logistics.ID, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, integration.TrackingStatusPickedUp, tracking.Status)

	_, err = f.manager.RequestDelivery(context.Background(), f.tenantID, logistics.ID, &integration.DeliveryRequest{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.manager.GetTracking(context.Background(), f.tenantID, logistics.ID, "")
	assert.ErrorIs(t, err, shared.ErrValidation)

	adapter.AssertExpectations(t)
}
