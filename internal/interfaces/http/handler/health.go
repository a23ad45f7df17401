package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/restohub/backend/internal/infrastructure/logger"
)

// Pinger checks a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// SyncRuntime reports the state of the sync manager
type SyncRuntime interface {
	IsRunning() bool
	ActiveIntegrations() int
}

// HealthHandler reports service health
type HealthHandler struct {
	db      Pinger
	runtime SyncRuntime
	now     func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db Pinger, runtime SyncRuntime) *HealthHandler {
	return &HealthHandler{db: db, runtime: runtime, now: time.Now}
}

// Check answers 200 when the database is reachable and the manager runs,
// 503 otherwise
// GET /health
func (h *HealthHandler) Check(c *gin.Context) {
	body := gin.H{
		"status":              "healthy",
		"time":                h.now().UTC().Format(time.RFC3339),
		"database":            "ok",
		"manager":             "running",
		"active_integrations": h.runtime.ActiveIntegrations(),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
		body["database"] = "error"
		body["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	if !h.runtime.IsRunning() {
		body["manager"] = "stopped"
		body["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, body)
}
