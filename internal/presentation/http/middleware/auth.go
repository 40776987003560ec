package middleware

import (
	"net/http"
	"strings"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/gin-gonic/gin"
)

// DashboardAuthMiddleware guards dashboard routes (analytics, launches,
// backfill) with the tenant-scoped JWT issued by the login endpoint.
// Tracking pings and purchase webhooks stay unauthenticated; they carry no
// operator credentials by design of the tracking snippet.
func DashboardAuthMiddleware(logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantCtx, exists := GetTenantContext(c)
		if !exists {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
			c.Abort()
			return
		}

		token := extractBearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		claims, err := security.ValidateJWT(token, tenantCtx.Config.JWTSecret)
		if err != nil {
			logger.Auth().Warn("Rejected dashboard token",
				"error", err.Error(),
				"tenantId", tenantCtx.TenantID,
				"path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		// A token minted for one tenant must not open another tenant's
		// dashboard even if both secrets happen to match.
		if claimed, _ := claims["tenantId"].(string); claimed != tenantCtx.TenantID {
			logger.Auth().Warn("Dashboard token tenant mismatch",
				"tenantId", tenantCtx.TenantID,
				"path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("authRole", claims["role"])
		c.Next()
	}
}

func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	// Websocket clients cannot set headers from the browser.
	return c.Query("token")
}
