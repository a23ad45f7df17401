package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/restohub/backend/internal/domain/integration"
)

// DeliveryService prices, places and tracks deliveries through logistics
// integrations
type DeliveryService interface {
	GetQuote(ctx context.Context, tenantID, id uuid.UUID, req *integration.DeliveryQuoteRequest) (*integration.DeliveryQuote, error)
	RequestDelivery(ctx context.Context, tenantID, id uuid.UUID, req *integration.DeliveryRequest) (string, error)
	GetTracking(ctx context.Context, tenantID, id uuid.UUID, deliveryID string) (*integration.DeliveryTracking, error)
}

// DeliveryHandler serves the delivery gateway endpoints
type DeliveryHandler struct {
	BaseHandler
	service DeliveryService
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(service DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{service: service}
}

// DeliveryCreatedResponse carries the platform's delivery ID
type DeliveryCreatedResponse struct {
	DeliveryID string `json:"delivery_id"`
}

// Quote prices a delivery
// POST /api/v1/integrations/:id/delivery/quote
func (h *DeliveryHandler) Quote(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req integration.DeliveryQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	quote, err := h.service.GetQuote(c.Request.Context(), tenantID, id, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, quote)
}

// Request places a delivery
// POST /api/v1/integrations/:id/delivery
func (h *DeliveryHandler) Request(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	var req integration.DeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	deliveryID, err := h.service.RequestDelivery(c.Request.Context(), tenantID, id, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, DeliveryCreatedResponse{DeliveryID: deliveryID})
}

// Tracking reports where a delivery is
// GET /api/v1/integrations/:id/delivery/:deliveryId
func (h *DeliveryHandler) Tracking(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	tracking, err := h.service.GetTracking(c.Request.Context(), tenantID, id, c.Param("deliveryId"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tracking)
}
