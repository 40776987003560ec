// Package handlers provides HTTP request handlers for the presentation layer.
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

// TrackingHandlers contains the touch and identify HTTP handlers
type TrackingHandlers struct {
	trackingService *services.TrackingService
	logger          *logging.ChanneledLogger
}

// NewTrackingHandlers creates tracking handlers with injected dependencies
func NewTrackingHandlers(trackingService *services.TrackingService, logger *logging.ChanneledLogger) *TrackingHandlers {
	return &TrackingHandlers{trackingService: trackingService, logger: logger}
}

// TouchRequest is the tracking snippet's ping payload
type TouchRequest struct {
	VisitorKey  string     `json:"visitorKey" binding:"required"`
	Source      *string    `json:"source"`
	Medium      *string    `json:"medium"`
	Campaign    *string    `json:"campaign"`
	Referrer    *string    `json:"referrer"`
	LandingPage string     `json:"landingPage"`
	Timestamp   *time.Time `json:"timestamp"`
}

// IdentifyRequest is the email-capture payload
type IdentifyRequest struct {
	VisitorKey string `json:"visitorKey" binding:"required"`
	Email      string `json:"email" binding:"required"`
}

// PostTouch handles POST /api/v1/track/touch
func (h *TrackingHandlers) PostTouch(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req TouchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	input := services.TouchInput{
		Source:      req.Source,
		Medium:      req.Medium,
		Campaign:    req.Campaign,
		Referrer:    req.Referrer,
		LandingPage: req.LandingPage,
	}
	if req.Timestamp != nil {
		input.Timestamp = *req.Timestamp
	}

	identity, err := h.trackingService.RecordTouch(tenantCtx, req.VisitorKey, input)
	if err != nil {
		if errors.Is(err, services.ErrInvalidTouch) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record touch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"visitorId": identity.ID})
}

// PostIdentify handles POST /api/v1/track/identify
func (h *TrackingHandlers) PostIdentify(c *gin.Context) {
	tenantCtx, exists := middleware.GetTenantContext(c)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "tenant context not found"})
		return
	}

	var req IdentifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	identity, err := h.trackingService.Identify(tenantCtx, req.VisitorKey, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrInvalidIdentify) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to identify visitor"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"visitorId": identity.ID})
}
