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

// AnalyticsHandlers contains the aggregate-read HTTP handlers
type AnalyticsHandlers struct {
	analyticsService *services.AnalyticsService
	backfillService  *services.BackfillService
	logger           *logging.ChanneledLogger
}

// NewAnalyticsHandlers creates analytics handlers with injected dependencies
func NewAnalyticsHandlers(analyticsService *services.AnalyticsService, backfillService *services.BackfillService, logger *logging.ChanneledLogger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		analyticsService: analyticsService,
		backfillService:  backfillService,
		logger:           logger,
	}
}

// parseWindow reads since/until query params (RFC 3339) with a default of
// the trailing 30 days.
func parseWindow(c *gin.Context) (services.Window, error) {
	now := time.Now().UTC()
	window := services.Window{Since: now.AddDate(0, 0, -30), Until: now}

	if since := c.Query("since"); since != "" {
		parsed, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return window, errors.New("since must be RFC 3339")
		}
		window.Since = parsed.UTC()
	}
	if until := c.Query("until"); until != "" {
		parsed, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return window, errors.New("until must be RFC 3339")
		}
		window.Until = parsed.UTC()
	}
	return window, nil
}

// GetSummary handles GET /api/v1/analytics/summary
func (h *AnalyticsHandlers) GetSummary(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	window, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	summary, err := h.analyticsService.Summarize(tenantCtx, window)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetSources handles GET /api/v1/analytics/sources
func (h *AnalyticsHandlers) GetSources(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	window, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sources, err := h.analyticsService.BySource(tenantCtx, window)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute source breakdown"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// GetMatchRate handles GET /api/v1/analytics/match-rate
func (h *AnalyticsHandlers) GetMatchRate(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	window, err := parseWindow(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rate, err := h.analyticsService.MatchRate(tenantCtx, window)
	if err != nil {
		if errors.Is(err, services.ErrInvalidWindow) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute match rate"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matchRate": rate})
}

// PostBackfill handles POST /api/v1/analytics/backfill
func (h *AnalyticsHandlers) PostBackfill(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	job, err := h.backfillService.Start(tenantCtx)
	if err != nil {
		if errors.Is(err, services.ErrBackfillRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start backfill"})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetBackfill handles GET /api/v1/analytics/backfill
func (h *AnalyticsHandlers) GetBackfill(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	job := h.backfillService.Progress(tenantCtx.TenantID)
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no backfill has run"})
		return
	}

	c.JSON(http.StatusOK, job)
}
