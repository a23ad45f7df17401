package integration

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/restohub/backend/internal/domain/integration"
)

func testDescriptor() integration.Descriptor {
	next := time.Now().Add(15 * time.Minute)
	return integration.Descriptor{
		IntegrationID: uuid.New(),
		TenantID:      uuid.New(),
		Platform:      integration.PlatformIFood,
		Credentials:   ifoodCredentials,
		SyncInterval:  15 * time.Minute,
		NextSyncAt:    &next,
	}
}

func TestRegistry_AddAndGet(t *testing.T) {
	factory := new(MockAdapterFactory)
	adapter := new(MockSalesAdapter)
	factory.On("NewAdapter", mock.Anything).Return(adapter, nil)
	registry := NewRegistry(factory, zap.NewNop())

	desc := testDescriptor()
	require.True(t, registry.Add(desc))
	assert.Equal(t, 1, registry.Len())

	handle, ok := registry.Get(desc.IntegrationID)
	require.True(t, ok)
	assert.Same(t, adapter, handle.Adapter)
	require.NotNil(t, handle.NextSyncAt)
	assert.Equal(t, *desc.NextSyncAt, *handle.NextSyncAt)
	assert.NotSame(t, desc.NextSyncAt, handle.NextSyncAt)

	// adding again replaces the entry
	require.True(t, registry.Add(desc))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_AddFailures(t *testing.T) {
	t.Run("factory error", func(t *testing.T) {
		factory := new(MockAdapterFactory)
		factory.On("NewAdapter", mock.Anything).Return(nil, errors.New("boom"))
		registry := NewRegistry(factory, nil)

		assert.False(t, registry.Add(testDescriptor()))
		assert.Equal(t, 0, registry.Len())
	})

	t.Run("factory panic", func(t *testing.T) {
		factory := new(MockAdapterFactory)
		factory.On("NewAdapter", mock.Anything).Run(func(mock.Arguments) {
			panic("nil credentials")
		}).Return(nil, nil)
		registry := NewRegistry(factory, nil)

		assert.NotPanics(t, func() {
			assert.False(t, registry.Add(testDescriptor()))
		})
		assert.Equal(t, 0, registry.Len())
	})
}

func TestRegistry_Remove(t *testing.T) {
	factory := new(MockAdapterFactory)
	factory.On("NewAdapter", mock.Anything).Return(new(MockSalesAdapter), nil)
	registry := NewRegistry(factory, nil)

	var removed []uuid.UUID
	registry.OnRemove(func(id uuid.UUID) { removed = append(removed, id) })

	desc := testDescriptor()
	require.True(t, registry.Add(desc))

	registry.Remove(desc.IntegrationID)
	registry.Remove(desc.IntegrationID)
	registry.Remove(uuid.New())

	_, ok := registry.Get(desc.IntegrationID)
	assert.False(t, ok)
	assert.Equal(t, []uuid.UUID{desc.IntegrationID}, removed)
}

func TestRegistry_SnapshotAndNextSync(t *testing.T) {
	factory := new(MockAdapterFactory)
	factory.On("NewAdapter", mock.Anything).Return(new(MockSalesAdapter), nil)
	registry := NewRegistry(factory, nil)

	first, second := testDescriptor(), testDescriptor()
	require.True(t, registry.Add(first))
	require.True(t, registry.Add(second))

	next := time.Now().Add(time.Hour)
	registry.SetNextSyncAt(first.IntegrationID, next)
	registry.SetNextSyncAt(uuid.New(), next)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	for _, h := range snapshot {
		if h.Descriptor.IntegrationID == first.IntegrationID {
			assert.True(t, next.Equal(*h.NextSyncAt))
		}
	}

	// snapshots are copies
	snapshot[0].NextSyncAt = nil
	handle, _ := registry.Get(snapshot[0].Descriptor.IntegrationID)
	assert.NotNil(t, handle.NextSyncAt)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	factory := new(MockAdapterFactory)
	factory.On("NewAdapter", mock.Anything).Return(new(MockSalesAdapter), nil)
	registry := NewRegistry(factory, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			desc := testDescriptor()
			registry.Add(desc)
			registry.Snapshot()
			registry.SetNextSyncAt(desc.IntegrationID, time.Now())
			registry.Remove(desc.IntegrationID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, registry.Len())
}
