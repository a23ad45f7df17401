package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	integrationapp "github.com/restohub/backend/internal/application/integration"
	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/interfaces/http/dto"
	"github.com/restohub/backend/internal/interfaces/http/middleware"
)

// IntegrationService is the part of the integration manager the HTTP
// layer drives
type IntegrationService interface {
	Connect(ctx context.Context, tenantID uuid.UUID, req integrationapp.ConnectRequest) (*integration.Integration, error)
	UpdateCredentials(ctx context.Context, tenantID, id uuid.UUID, req integrationapp.UpdateCredentialsRequest) (*integration.Integration, error)
	Disconnect(ctx context.Context, tenantID, id uuid.UUID) error
	Get(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error)
	List(ctx context.Context, tenantID uuid.UUID) ([]integration.Integration, error)
	Catalog(ctx context.Context, tenantID uuid.UUID) ([]integrationapp.CatalogEntryResponse, error)
	Test(ctx context.Context, tenantID, id uuid.UUID) (*integrationapp.TestResult, error)
	Toggle(ctx context.Context, tenantID, id uuid.UUID) (*integration.Integration, error)
	TriggerSync(ctx context.Context, tenantID, id uuid.UUID) (*integration.SyncLog, error)
	ListSyncLogs(ctx context.Context, tenantID, id uuid.UUID, filter integration.SyncLogFilter) ([]integration.SyncLog, int64, error)
	FetchOrders(ctx context.Context, tenantID, id uuid.UUID) (*integration.FetchResult, error)
}

// IntegrationHandler serves integration lifecycle and sync endpoints
type IntegrationHandler struct {
	BaseHandler
	service   IntegrationService
	validator *validator.Validate
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(service IntegrationService) *IntegrationHandler {
	return &IntegrationHandler{
		service:   service,
		validator: middleware.NewValidator(),
	}
}

// SyncStartedResponse acknowledges a manual sync
type SyncStartedResponse struct {
	SyncLogID uuid.UUID                 `json:"sync_log_id"`
	Status    integration.SyncLogStatus `json:"status"`
}

// FetchOrdersResponse lists the orders a sales platform currently reports
type FetchOrdersResponse struct {
	Orders   []integration.Order `json:"orders"`
	Rejected []RejectedOrder     `json:"rejected"`
	Total    int                 `json:"total"`
}

// RejectedOrder is a platform record that could not be normalized
type RejectedOrder struct {
	ExternalRef string `json:"external_ref,omitempty"`
	Reason      string `json:"reason"`
}

// List returns the tenant's integrations without credential values
// GET /api/v1/integrations
func (h *IntegrationHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	items, err := h.service.List(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToIntegrationResponses(items))
}

// Get describes one integration
// GET /api/v1/integrations/:id
func (h *IntegrationHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	integ, err := h.service.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToIntegrationResponse(integ))
}

// Catalog lists supported platforms with the tenant's connection status
// GET /api/v1/integrations/catalog
func (h *IntegrationHandler) Catalog(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	entries, err := h.service.Catalog(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, entries)
}

// Connect attaches a platform to the tenant
// POST /api/v1/integrations
func (h *IntegrationHandler) Connect(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req integrationapp.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.ValidationError(c, err)
		return
	}

	integ, err := h.service.Connect(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, integrationapp.ToIntegrationResponse(integ))
}

// UpdateCredentials replaces an integration's credentials
// PUT /api/v1/integrations/:id/credentials
func (h *IntegrationHandler) UpdateCredentials(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req integrationapp.UpdateCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.ValidationError(c, err)
		return
	}

	integ, err := h.service.UpdateCredentials(c.Request.Context(), tenantID, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToIntegrationResponse(integ))
}

// Test checks the platform connection. An unreachable platform is a 200
// with connected=false.
// POST /api/v1/integrations/:id/test
func (h *IntegrationHandler) Test(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.service.Test(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Toggle stops an active integration or reactivates a stopped one
// POST /api/v1/integrations/:id/toggle
func (h *IntegrationHandler) Toggle(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	integ, err := h.service.Toggle(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToIntegrationResponse(integ))
}

// Sync starts a manual sync and answers before it completes
// POST /api/v1/integrations/:id/sync
func (h *IntegrationHandler) Sync(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	syncLog, err := h.service.TriggerSync(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, SyncStartedResponse{SyncLogID: syncLog.ID, Status: syncLog.Status})
}

// SyncLogs pages through an integration's sync history, newest first
// GET /api/v1/integrations/:id/sync-logs
func (h *IntegrationHandler) SyncLogs(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var page dto.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter := integration.SyncLogFilter{Page: page.Page, PageSize: page.PageSize}
	if raw := c.Query("status"); raw != "" {
		status := integration.SyncLogStatus(raw)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &status
	}
	filter.Normalize()

	logs, total, err := h.service.ListSyncLogs(c.Request.Context(), tenantID, id, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, integrationapp.ToSyncLogResponses(logs), total, filter.Page, filter.PageSize)
}

// Disconnect removes an integration
// DELETE /api/v1/integrations/:id
func (h *IntegrationHandler) Disconnect(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.service.Disconnect(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Orders fetches the orders a sales platform reports without ingesting them
// GET /api/v1/integrations/:id/orders
func (h *IntegrationHandler) Orders(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.service.FetchOrders(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := FetchOrdersResponse{
		Orders:   result.Orders,
		Rejected: make([]RejectedOrder, 0, len(result.Rejected)),
		Total:    result.Total(),
	}
	if resp.Orders == nil {
		resp.Orders = []integration.Order{}
	}
	for _, r := range result.Rejected {
		resp.Rejected = append(resp.Rejected, RejectedOrder{ExternalRef: r.ExternalRef, Reason: r.Reason})
	}
	h.Success(c, resp)
}
