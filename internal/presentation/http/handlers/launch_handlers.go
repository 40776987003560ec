package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/application/services"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// LaunchHandlers contains the launch lifecycle and analytics HTTP handlers
type LaunchHandlers struct {
	launchService    *services.LaunchService
	analyticsService *services.AnalyticsService
	reportService    *services.ReportService
	logger           *logging.ChanneledLogger
}

// NewLaunchHandlers creates launch handlers with injected dependencies
func NewLaunchHandlers(launchService *services.LaunchService, analyticsService *services.AnalyticsService, reportService *services.ReportService, logger *logging.ChanneledLogger) *LaunchHandlers {
	return &LaunchHandlers{
		launchService:    launchService,
		analyticsService: analyticsService,
		reportService:    reportService,
		logger:           logger,
	}
}

// LaunchRequest is the create/update payload
type LaunchRequest struct {
	Name             string    `json:"name" binding:"required"`
	StartDate        time.Time `json:"startDate" binding:"required"`
	EndDate          time.Time `json:"endDate" binding:"required"`
	RevenueGoalCents *int64    `json:"revenueGoalCents"`
	SalesGoal        *int      `json:"salesGoal"`
}

func (r LaunchRequest) toInput() services.LaunchInput {
	return services.LaunchInput{
		Name:             r.Name,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		RevenueGoalCents: r.RevenueGoalCents,
		SalesGoal:        r.SalesGoal,
	}
}

// GetLaunches handles GET /api/v1/launches
func (h *LaunchHandlers) GetLaunches(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	launches, err := h.launchService.List(tenantCtx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load launches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"launches": launches})
}

// GetLaunch handles GET /api/v1/launches/:id
func (h *LaunchHandlers) GetLaunch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	launch, err := h.launchService.Get(tenantCtx, c.Param("id"))
	if err != nil {
		h.respondLaunchError(c, err, "failed to load launch")
		return
	}
	c.JSON(http.StatusOK, launch)
}

// PostLaunch handles POST /api/v1/launches
func (h *LaunchHandlers) PostLaunch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	launch, err := h.launchService.Create(tenantCtx, req.toInput())
	if err != nil {
		h.respondLaunchError(c, err, "failed to create launch")
		return
	}
	c.JSON(http.StatusCreated, launch)
}

// PutLaunch handles PUT /api/v1/launches/:id
func (h *LaunchHandlers) PutLaunch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req LaunchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	launch, err := h.launchService.Update(tenantCtx, c.Param("id"), req.toInput())
	if err != nil {
		h.respondLaunchError(c, err, "failed to update launch")
		return
	}
	c.JSON(http.StatusOK, launch)
}

// PostArchiveLaunch handles POST /api/v1/launches/:id/archive
func (h *LaunchHandlers) PostArchiveLaunch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	launch, err := h.launchService.Archive(tenantCtx, c.Param("id"))
	if err != nil {
		h.respondLaunchError(c, err, "failed to archive launch")
		return
	}
	c.JSON(http.StatusOK, launch)
}

// PostShareLaunch handles POST /api/v1/launches/:id/share
func (h *LaunchHandlers) PostShareLaunch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	launch, err := h.launchService.EnableSharing(tenantCtx, c.Param("id"))
	if err != nil {
		h.respondLaunchError(c, err, "failed to enable sharing")
		return
	}
	c.JSON(http.StatusOK, launch)
}

// DeleteLaunch handles DELETE /api/v1/launches/:id
func (h *LaunchHandlers) DeleteLaunch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	if err := h.launchService.Delete(tenantCtx, c.Param("id")); err != nil {
		h.respondLaunchError(c, err, "failed to delete launch")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetLaunchAnalytics handles GET /api/v1/launches/:id/analytics
func (h *LaunchHandlers) GetLaunchAnalytics(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	report, err := h.analyticsService.LaunchAnalytics(tenantCtx, c.Param("id"))
	if err != nil {
		h.respondLaunchError(c, err, "failed to compute launch analytics")
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetSharedLaunch handles GET /api/v1/launches/shared/:token. Public,
// read-only aggregates behind an unguessable token; no JWT required.
func (h *LaunchHandlers) GetSharedLaunch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	report, err := h.analyticsService.SharedLaunchAnalytics(tenantCtx, c.Param("token"))
	if err != nil {
		if errors.Is(err, services.ErrSharingNotEnabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": "launch not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load shared launch"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// PostLaunchReport handles POST /api/v1/launches/:id/report
func (h *LaunchHandlers) PostLaunchReport(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	if err := h.reportService.SendLaunchReport(tenantCtx, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, services.ErrLaunchNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "launch not found"})
		case errors.Is(err, services.ErrReportEmailNotSet):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send launch report"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

func (h *LaunchHandlers) respondLaunchError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrLaunchNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "launch not found"})
	case errors.Is(err, services.ErrInvalidLaunch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
