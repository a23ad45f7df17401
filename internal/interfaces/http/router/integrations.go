package router

import (
	"github.com/gin-gonic/gin"

	"github.com/restohub/backend/internal/interfaces/http/handler"
)

// IntegrationHandlers are the handlers mounted under /integrations
type IntegrationHandlers struct {
	Integration *handler.IntegrationHandler
	Inbox       *handler.InboxHandler
	Delivery    *handler.DeliveryHandler
}

// IntegrationRoutes builds the /integrations group. syncGuard runs before
// the manual sync handler; nil leaves it unguarded.
func IntegrationRoutes(h IntegrationHandlers, syncGuard gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("integrations", "/integrations")

	g.GET("", h.Integration.List)
	g.POST("", h.Integration.Connect)
	g.GET("/catalog", h.Integration.Catalog)

	g.GET("/inbox", h.Inbox.List)
	g.POST("/inbox/:itemId/reprocess", h.Inbox.Reprocess)

	g.GET("/:id", h.Integration.Get)
	g.DELETE("/:id", h.Integration.Disconnect)
	g.PUT("/:id/credentials", h.Integration.UpdateCredentials)
	g.POST("/:id/test", h.Integration.Test)
	g.POST("/:id/toggle", h.Integration.Toggle)
	if syncGuard != nil {
		g.POST("/:id/sync", syncGuard, h.Integration.Sync)
	} else {
		g.POST("/:id/sync", h.Integration.Sync)
	}
	g.GET("/:id/sync-logs", h.Integration.SyncLogs)
	g.GET("/:id/orders", h.Integration.Orders)

	delivery := g.Group("delivery", "/:id/delivery")
	delivery.POST("/quote", h.Delivery.Quote)
	delivery.POST("", h.Delivery.Request)
	delivery.GET("/:deliveryId", h.Delivery.Tracking)

	return g
}
