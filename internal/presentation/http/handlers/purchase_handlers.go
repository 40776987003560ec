package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/application/services"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// PurchaseHandlers contains the purchase ingestion and read HTTP handlers
type PurchaseHandlers struct {
	ingestionService *services.IngestionService
	analyticsService *services.AnalyticsService
	logger           *logging.ChanneledLogger
}

// NewPurchaseHandlers creates purchase handlers with injected dependencies
func NewPurchaseHandlers(ingestionService *services.IngestionService, analyticsService *services.AnalyticsService, logger *logging.ChanneledLogger) *PurchaseHandlers {
	return &PurchaseHandlers{
		ingestionService: ingestionService,
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// PurchaseWebhookRequest is the normalized purchase event posted by platform
// adapters. Raw Kajabi/Teachable/Skool payloads are normalized before they
// reach this endpoint.
type PurchaseWebhookRequest struct {
	Platform           string    `json:"platform" binding:"required"`
	PlatformPurchaseID string    `json:"platformPurchaseId" binding:"required"`
	Email              string    `json:"email" binding:"required"`
	AmountCents        int64     `json:"amountCents"`
	Currency           string    `json:"currency" binding:"required"`
	ProductName        string    `json:"productName"`
	PurchasedAt        time.Time `json:"purchasedAt" binding:"required"`
	DeviceFingerprint  *string   `json:"deviceFingerprint"`
	LaunchID           *string   `json:"launchId"`
}

// PostPurchaseWebhook handles POST /api/v1/purchases/webhook
func (h *PurchaseHandlers) PostPurchaseWebhook(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req PurchaseWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	purchase, err := h.ingestionService.IngestPurchase(tenantCtx, services.PurchaseInput{
		Platform:           req.Platform,
		PlatformPurchaseID: req.PlatformPurchaseID,
		Email:              req.Email,
		AmountCents:        req.AmountCents,
		Currency:           req.Currency,
		ProductName:        req.ProductName,
		PurchasedAt:        req.PurchasedAt,
		DeviceFingerprint:  req.DeviceFingerprint,
		LaunchID:           req.LaunchID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPurchase):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrLaunchNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to ingest purchase"})
		}
		return
	}

	c.JSON(http.StatusOK, purchase)
}

// GetRecentPurchases handles GET /api/v1/purchases/recent
func (h *PurchaseHandlers) GetRecentPurchases(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	purchases, err := h.analyticsService.RecentPurchases(tenantCtx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load recent purchases"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}
