package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	integrationapp "github.com/restohub/backend/internal/application/integration"
	"github.com/restohub/backend/internal/domain/integration"
	"github.com/restohub/backend/internal/interfaces/http/dto"
)

// InboxService lists and replays orders parked in the inbox
type InboxService interface {
	ListItems(ctx context.Context, tenantID uuid.UUID, filter integration.InboxFilter) ([]integration.InboxItem, int64, error)
	Reprocess(ctx context.Context, tenantID, itemID uuid.UUID) (*integration.InboxItem, error)
}

// InboxHandler serves the inbox endpoints
type InboxHandler struct {
	BaseHandler
	service InboxService
}

// NewInboxHandler creates a new InboxHandler
func NewInboxHandler(service InboxService) *InboxHandler {
	return &InboxHandler{service: service}
}

// inboxQuery is the query string of the inbox list
type inboxQuery struct {
	dto.PageRequest
	IntegrationID string `form:"integration_id" binding:"omitempty,uuid"`
	Status        string `form:"status" binding:"omitempty,oneof=PENDING FAILED PROCESSED"`
	From          string `form:"from"`
	To            string `form:"to"`
}

// List pages through the tenant's inbox, newest first
// GET /api/v1/integrations/inbox
func (h *InboxHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var q inboxQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.ValidationError(c, err)
		return
	}

	filter := integration.InboxFilter{
		TenantID: tenantID,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if q.IntegrationID != "" {
		id := uuid.MustParse(q.IntegrationID)
		filter.IntegrationID = &id
	}
	if q.Status != "" {
		status := integration.InboxStatus(q.Status)
		filter.Status = &status
	}

	var err error
	if filter.From, err = parseTimeQuery(q.From); err != nil {
		h.BadRequest(c, "from must be an RFC 3339 timestamp")
		return
	}
	if filter.To, err = parseTimeQuery(q.To); err != nil {
		h.BadRequest(c, "to must be an RFC 3339 timestamp")
		return
	}
	if err := filter.Normalize(); err != nil {
		h.HandleError(c, err)
		return
	}

	items, total, err := h.service.ListItems(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, integrationapp.ToInboxItemResponses(items), total, filter.Page, filter.PageSize)
}

// Reprocess replays one inbox item into the order sink
// POST /api/v1/integrations/inbox/:itemId/reprocess
func (h *InboxHandler) Reprocess(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	itemID, ok := h.uuidParam(c, "itemId")
	if !ok {
		return
	}

	item, err := h.service.Reprocess(c.Request.Context(), tenantID, itemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, integrationapp.ToInboxItemResponse(item))
}

func parseTimeQuery(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
