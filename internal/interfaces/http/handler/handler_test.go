package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	integrationapp "github.com/restohub/backend/internal/application/integration"
	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/interfaces/http/dto"
	"github.com/restohub/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockIntegrationService is a testify mock of IntegrationService and DeliveryService
type mockIntegrationService struct {
	mock.Mock
}

func (m *mockIntegrationService) Connect(ctx context.Context, tenantID uuid.UUID, req integrationapp.ConnectRequest) (*integration.Integration, error) {
	args := m.Called(ctx, tenantID, req)
	if v := args.Get(0); v != nil {
		return v.(*integration.Integration), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) UpdateCredentials(ctx context.Context, tenantID, id uuid.UUID, req integrationapp.UpdateCredentialsRequest) (*integration.Integration, error) {
	args := m.Called(ctx, tenantID, id, req)
	if v := args.Get(0); v != nil {
		return v.(*integration.Integration), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) Disconnect(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *mockIntegrationService) Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*integration.Integration), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) List(ctx context.Context, tenantID uuid.UUID) ([]integration.Integration, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]integration.Integration), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) Catalog(ctx context.Context, tenantID uuid.UUID) ([]integrationapp.CatalogEntryResponse, error) {
	args := m.Called(ctx, tenantID)
	if v := args.Get(0); v != nil {
		return v.([]integrationapp.CatalogEntryResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) Test(ctx context.Context, tenantID, id uuid.UUID) (*integrationapp.TestResult, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*integrationapp.TestResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) Toggle(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*integration.Integration), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) TriggerSync(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncLog, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*integration.SyncLog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) ListSyncLogs(ctx context.Context, tenantID, id uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLog, int64, error) {
	args := m.Called(ctx, tenantID, id, filter)
	if v := args.Get(0); v != nil {
		return v.([]integration.SyncLog), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockIntegrationService) FetchOrders(ctx context.Context, tenantID, id uuid.UUID) (*integration.FetchResult, error) {
	args := m.Called(ctx, tenantID, id)
	if v := args.Get(0); v != nil {
		return v.(*integration.FetchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) GetQuote(ctx context.Context, tenantID, id uuid.UUID, req *integration.DeliveryQuoteRequest) (*integration.DeliveryQuote, error) {
	args := m.Called(ctx, tenantID, id, req)
	if v := args.Get(0); v != nil {
		return v.(*integration.DeliveryQuote), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockIntegrationService) RequestDelivery(ctx context.Context, tenantID, id uuid.UUID, req *integration.DeliveryRequest) (string, error) {
	args := m.Called(ctx, tenantID, id, req)
	return args.String(0), args.Error(1)
}

func (m *mockIntegrationService) GetTracking(ctx context.Context, tenantID, id uuid.UUID, deliveryID string) (*integration.DeliveryTracking, error) {
	args := m.Called(ctx, tenantID, id, deliveryID)
	if v := args.Get(0); v != nil {
		return v.(*integration.DeliveryTracking), args.Error(1)
	}
	return nil, args.Error(1)
}

// newTestEngine returns an engine that resolves the tenant from X-Tenant-ID
func newTestEngine() *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tenant(middleware.DefaultTenantConfig()))
	return engine
}

// doRequest serves one request and decodes the standard envelope
func doRequest(t *testing.T, engine *gin.Engine, method, path string, tenantID *uuid.UUID, body any) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != nil {
		req.Header.Set(middleware.TenantHeaderKey, tenantID.String())
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func newTestIntegration(t *testing.T, tenantID uuid.UUID) *integration.Integration {
	t.Helper()
	i, err := integration.NewIntegration(tenantID, nil, integration.PlatformIFood, integration.Credentials{
		"client_id":     "client",
		"client_secret": "super-secret",
		"merchant_id":   "merchant",
	}, 15)
	require.NoError(t, err)
	return i
}

func dataMap(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data is %T", resp.Data)
	return data
}
