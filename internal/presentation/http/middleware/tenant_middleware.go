// Package middleware provides HTTP middleware for the presentation layer.
package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/application/services"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/gin-gonic/gin"
)

// contextResolver is the slice of tenant.Manager the middleware needs.
type contextResolver interface {
	GetContext(c *gin.Context) (*tenant.Context, error)
	GetLogger() *logging.ChanneledLogger
}

// TenantMiddleware resolves the tenant for every request and attaches a full
// tenant context. Tracking pings and webhooks from different sellers land on
// the same endpoints; nothing past this middleware runs without an active
// tenant. Provisioned-but-unactivated tenants are refused until the
// activation flow flips them to active.
func TenantMiddleware(tenantManager *tenant.Manager, perfTracker *performance.Tracker) gin.HandlerFunc {
	return resolveTenant(tenantManager, perfTracker)
}

func resolveTenant(resolver contextResolver, perfTracker *performance.Tracker) gin.HandlerFunc {
	logger := resolver.GetLogger()

	return func(c *gin.Context) {
		start := time.Now()
		marker := perfTracker.StartOperation("middleware_tenant_resolution", "unknown")
		defer marker.Complete()

		tenantID := c.GetHeader("X-Tenant-ID")
		if tenantID == "" {
			tenantID = c.Query("tenantId") // fallback for sendBeacon and websocket clients
		}

		marker.AddMetadata("path", c.Request.URL.Path)
		marker.AddMetadata("method", c.Request.Method)
		if tenantID != "" {
			marker.TenantID = tenantID
		}

		tenantCtx, err := resolver.GetContext(c)
		if err != nil {
			logger.Tenant().Warn("Tenant resolution failed",
				"error", err.Error(),
				"tenantId", tenantID,
				"path", c.Request.URL.Path)
			marker.SetSuccess(false)
			marker.SetError(errors.New("tenant resolution failed"))
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			c.Abort()
			return
		}

		if !tenantCtx.IsActive() {
			logger.Tenant().Warn("Tenant not active",
				"tenantId", tenantCtx.TenantID,
				"status", tenantCtx.Status,
				"path", c.Request.URL.Path)
			marker.SetSuccess(false)
			marker.SetError(services.ErrUnknownTenant)
			c.JSON(http.StatusForbidden, gin.H{"error": services.ErrUnknownTenant.Error()})
			c.Abort()
			return
		}

		logger.Tenant().Debug("Tenant context resolved",
			"tenantId", tenantCtx.TenantID,
			"duration", time.Since(start),
			"database", tenantCtx.GetDatabaseInfo())
		marker.SetSuccess(true)

		c.Set("tenant", tenantCtx)
		c.Next()
	}
}

// GetTenantContext retrieves the tenant context from gin context.
func GetTenantContext(c *gin.Context) (*tenant.Context, bool) {
	tenantCtx, exists := c.Get("tenant")
	if !exists {
		return nil, false
	}

	ctx, ok := tenantCtx.(*tenant.Context)
	return ctx, ok
}
