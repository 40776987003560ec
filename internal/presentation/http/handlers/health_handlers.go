package handlers

import (
	"net/http"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/messaging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/gin-gonic/gin"
)

// HealthHandlers contains the service health HTTP handlers
type HealthHandlers struct {
	tenantManager *tenant.Manager
	broadcaster   *messaging.PurchaseBroadcaster
	perfTracker   *performance.Tracker
	startedAt     time.Time
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(tenantManager *tenant.Manager, broadcaster *messaging.PurchaseBroadcaster, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{
		tenantManager: tenantManager,
		broadcaster:   broadcaster,
		perfTracker:   perfTracker,
		startedAt:     time.Now(),
	}
}

// GetHealth handles GET /health with liveness plus basic runtime stats
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptimeSeconds": int64(h.perfTracker.Uptime().Seconds()),
		"activeTenants": h.tenantManager.GetActiveTenantCount(),
		"streamClients": h.broadcaster.TotalClientCount(),
		"dbPools":       tenant.GetPoolStats(),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}
