package integration

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/restohub/backend/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// In-memory repositories
// ---------------------------------------------------------------------------

type memoryIntegrationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]integration.Integration
}

func newMemoryIntegrationRepo() *memoryIntegrationRepo {
	return &memoryIntegrationRepo{items: make(map[uuid.UUID]integration.Integration)}
}

func sameSubTenant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r *memoryIntegrationRepo) Create(ctx context.Context, i *integration.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.TenantID == i.TenantID && existing.Platform == i.Platform && sameSubTenant(existing.SubTenantID, i.SubTenantID) {
			return integration.ErrIntegrationExists
		}
	}
	r.items[i.ID] = *i
	return nil
}

func (r *memoryIntegrationRepo) Save(ctx context.Context, i *integration.Integration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[i.ID]; !ok {
		return integration.ErrIntegrationNotFound
	}
	r.items[i.ID] = *i
	return nil
}

func (r *memoryIntegrationRepo) FindByID(ctx context.Context, id uuid.UUID) (*integration.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.items[id]
	if !ok {
		return nil, integration.ErrIntegrationNotFound
	}
	return &i, nil
}

func (r *memoryIntegrationRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error) {
	i, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if i.TenantID != tenantID {
		return nil, integration.ErrIntegrationNotFound
	}
	return i, nil
}

func (r *memoryIntegrationRepo) FindByTenant(ctx context.Context, tenantID uuid.UUID) ([]integration.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.Integration
	for _, i := range r.items {
		if i.TenantID == tenantID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *memoryIntegrationRepo) FindByStatus(ctx context.Context, statuses ...integration.Status) ([]integration.Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.Integration
	for _, i := range r.items {
		for _, s := range statuses {
			if i.Status == s {
				out = append(out, i)
				break
			}
		}
	}
	return out, nil
}

func (r *memoryIntegrationRepo) ExistsForPlatform(ctx context.Context, tenantID uuid.UUID, platform integration.Platform, subTenantID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.items {
		if i.TenantID == tenantID && i.Platform == platform && sameSubTenant(i.SubTenantID, subTenantID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memoryIntegrationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return integration.ErrIntegrationNotFound
	}
	delete(r.items, id)
	return nil
}

// put stores an integration directly, bypassing uniqueness checks
func (r *memoryIntegrationRepo) put(i *integration.Integration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[i.ID] = *i
}

type memorySyncLogRepo struct {
	mu   sync.Mutex
	logs map[uuid.UUID]integration.SyncLog
}

func newMemorySyncLogRepo() *memorySyncLogRepo {
	return &memorySyncLogRepo{logs: make(map[uuid.UUID]integration.SyncLog)}
}

func (r *memorySyncLogRepo) Create(ctx context.Context, l *integration.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs[l.ID] = *l
	return nil
}

func (r *memorySyncLogRepo) Complete(ctx context.Context, l *integration.SyncLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.logs[l.ID]
	if !ok {
		return integration.ErrSyncLogNotFound
	}
	if stored.Status.IsTerminal() {
		return integration.ErrSyncLogFinalized
	}
	r.logs[l.ID] = *l
	return nil
}

func (r *memorySyncLogRepo) FindByID(ctx context.Context, id uuid.UUID) (*integration.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return nil, integration.ErrSyncLogNotFound
	}
	return &l, nil
}

func (r *memorySyncLogRepo) FindByIntegration(ctx context.Context, filter integration.SyncLogFilter) ([]integration.SyncLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncLog
	for _, l := range r.logs {
		if l.IntegrationID == filter.IntegrationID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	total := int64(len(out))
	start := filter.Offset()
	if start > len(out) {
		start = len(out)
	}
	end := start + filter.PageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memorySyncLogRepo) FindRunning(ctx context.Context, integrationID uuid.UUID) ([]integration.SyncLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.SyncLog
	for _, l := range r.logs {
		if l.IntegrationID == integrationID && l.Status == integration.SyncLogStatusRunning {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memorySyncLogRepo) get(id uuid.UUID) integration.SyncLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.logs[id]
}

type memoryInboxRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]integration.InboxItem
	createErr error
}

func newMemoryInboxRepo() *memoryInboxRepo {
	return &memoryInboxRepo{items: make(map[uuid.UUID]integration.InboxItem)}
}

func (r *memoryInboxRepo) Create(ctx context.Context, item *integration.InboxItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.items[item.ID] = *item
	return nil
}

func (r *memoryInboxRepo) Save(ctx context.Context, item *integration.InboxItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return integration.ErrInboxItemNotFound
	}
	r.items[item.ID] = *item
	return nil
}

func (r *memoryInboxRepo) FindByID(ctx context.Context, id uuid.UUID) (*integration.InboxItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, integration.ErrInboxItemNotFound
	}
	return &item, nil
}

func (r *memoryInboxRepo) FindByFilter(ctx context.Context, filter integration.InboxFilter) ([]integration.InboxItem, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []integration.InboxItem
	for _, item := range r.items {
		if item.TenantID != filter.TenantID {
			continue
		}
		if filter.IntegrationID != nil && item.IntegrationID != *filter.IntegrationID {
			continue
		}
		if filter.Status != nil && item.Status != *filter.Status {
			continue
		}
		out = append(out, item)
	}
	return out, int64(len(out)), nil
}

func (r *memoryInboxRepo) all() []integration.InboxItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]integration.InboxItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	return out
}

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// MockSalesAdapter is a mock implementation of integration.SalesAdapter
type MockSalesAdapter struct {
	mock.Mock
}

func (m *MockSalesAdapter) Platform() integration.Platform {
	return integration.PlatformIFood
}

func (m *MockSalesAdapter) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSalesAdapter) FetchOrders(ctx context.Context) (*integration.FetchResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.FetchResult), args.Error(1)
}

// MockAckingSalesAdapter is a sales adapter whose platform expects receipts
// to be acknowledged
type MockAckingSalesAdapter struct {
	MockSalesAdapter
}

func (m *MockAckingSalesAdapter) AcknowledgeOrders(ctx context.Context, receipts []string) error {
	args := m.Called(ctx, receipts)
	return args.Error(0)
}

// MockLogisticsAdapter is a mock implementation of integration.LogisticsAdapter
type MockLogisticsAdapter struct {
	mock.Mock
}

func (m *MockLogisticsAdapter) Platform() integration.Platform {
	return integration.PlatformLalamove
}

func (m *MockLogisticsAdapter) TestConnection(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLogisticsAdapter) GetQuote(ctx context.Context, req *integration.DeliveryQuoteRequest) (*integration.DeliveryQuote, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.DeliveryQuote), args.Error(1)
}

func (m *MockLogisticsAdapter) RequestDelivery(ctx context.Context, req *integration.DeliveryRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLogisticsAdapter) GetTracking(ctx context.Context, deliveryID string) (*integration.DeliveryTracking, error) {
	args := m.Called(ctx, deliveryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.DeliveryTracking), args.Error(1)
}

// MockAdapterFactory is a mock implementation of integration.AdapterFactory
type MockAdapterFactory struct {
	mock.Mock
}

func (m *MockAdapterFactory) NewAdapter(desc integration.Descriptor) (integration.Adapter, error) {
	args := m.Called(desc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(integration.Adapter), args.Error(1)
}

func (m *MockAdapterFactory) Supports(platform integration.Platform) bool {
	args := m.Called(platform)
	return args.Bool(0)
}

func (m *MockAdapterFactory) Normalizer(platform integration.Platform) (integration.OrderNormalizer, bool) {
	args := m.Called(platform)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(integration.OrderNormalizer), args.Bool(1)
}

// MockOrderSink is a mock implementation of integration.OrderSink
type MockOrderSink struct {
	mock.Mock
}

func (m *MockOrderSink) Ingest(ctx context.Context, integ *integration.Integration, order *integration.Order) error {
	args := m.Called(ctx, integ, order)
	return args.Error(0)
}

// MockOrderNormalizer is a mock implementation of integration.OrderNormalizer
type MockOrderNormalizer struct {
	mock.Mock
}

func (m *MockOrderNormalizer) NormalizeOrder(raw json.RawMessage) (*integration.Order, error) {
	args := m.Called(string(raw))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Order), args.Error(1)
}
