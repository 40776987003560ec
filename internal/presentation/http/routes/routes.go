// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/coursesignal/coursesignal-go/internal/application/container"
	"github.com/coursesignal/coursesignal-go/internal/presentation/http/handlers"
	"github.com/coursesignal/coursesignal-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware())

	// Initialize handlers
	trackingHandlers := handlers.NewTrackingHandlers(container.TrackingService, container.Logger)
	purchaseHandlers := handlers.NewPurchaseHandlers(container.IngestionService, container.AnalyticsService, container.Logger)
	analyticsHandlers := handlers.NewAnalyticsHandlers(container.AnalyticsService, container.BackfillService, container.Logger)
	launchHandlers := handlers.NewLaunchHandlers(container.LaunchService, container.AnalyticsService, container.ReportService, container.Logger)
	authHandlers := handlers.NewAuthHandlers(container.AuthService, container.Logger)
	streamHandlers := handlers.NewStreamHandlers(container.Broadcaster, container.Logger)
	healthHandlers := handlers.NewHealthHandlers(container.TenantManager, container.Broadcaster, container.PerfTracker)
	tenantHandlers := handlers.NewTenantHandlers(container.Provisioning, container.Logger)

	// Liveness probe, no tenant required
	r.GET("/health", healthHandlers.GetHealth)

	// Public, non-tenant-specific admin routes for provisioning.
	tenantAPI := r.Group("/api/v1/tenants")
	{
		tenantAPI.POST("/provision", tenantHandlers.PostProvision)
		tenantAPI.POST("/activate", tenantHandlers.PostActivate)
	}

	// API routes with tenant middleware
	api := r.Group("/api/v1")
	api.Use(middleware.TenantMiddleware(container.TenantManager, container.PerfTracker))
	{
		// Ingestion surface: called by tracking snippets and platform
		// webhooks, authenticated by tenant identity only.
		track := api.Group("/track")
		{
			track.POST("/touch", trackingHandlers.PostTouch)
			track.POST("/identify", trackingHandlers.PostIdentify)
		}
		api.POST("/purchases/webhook", purchaseHandlers.PostPurchaseWebhook)

		// Dashboard login
		api.POST("/auth/login", authHandlers.PostLogin)

		// Read-only shared launch view, token in the URL is the credential.
		api.GET("/launches/shared/:token", launchHandlers.GetSharedLaunch)

		// Dashboard endpoints require a valid JWT
		analytics := api.Group("/analytics")
		analytics.Use(middleware.DashboardAuthMiddleware(container.Logger))
		{
			analytics.GET("/summary", analyticsHandlers.GetSummary)
			analytics.GET("/sources", analyticsHandlers.GetSources)
			analytics.GET("/match-rate", analyticsHandlers.GetMatchRate)
			analytics.POST("/backfill", analyticsHandlers.PostBackfill)
			analytics.GET("/backfill", analyticsHandlers.GetBackfill)
		}

		launches := api.Group("/launches")
		launches.Use(middleware.DashboardAuthMiddleware(container.Logger))
		{
			launches.GET("", launchHandlers.GetLaunches)
			launches.POST("", launchHandlers.PostLaunch)
			launches.GET("/:id", launchHandlers.GetLaunch)
			launches.PUT("/:id", launchHandlers.PutLaunch)
			launches.DELETE("/:id", launchHandlers.DeleteLaunch)
			launches.POST("/:id/archive", launchHandlers.PostArchiveLaunch)
			launches.POST("/:id/share", launchHandlers.PostShareLaunch)
			launches.POST("/:id/report", launchHandlers.PostLaunchReport)
			launches.GET("/:id/analytics", launchHandlers.GetLaunchAnalytics)
		}

		purchases := api.Group("/purchases")
		purchases.Use(middleware.DashboardAuthMiddleware(container.Logger))
		{
			purchases.GET("/recent", purchaseHandlers.GetRecentPurchases)
			purchases.GET("/stream", streamHandlers.GetPurchaseStream)
		}
	}

	return r
}
