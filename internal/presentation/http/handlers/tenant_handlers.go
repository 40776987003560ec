package handlers

import (
	"net/http"

	"github.com/coursesignal/coursesignal-go/internal/application/services"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// TenantHandlers contains the tenant provisioning HTTP handlers
type TenantHandlers struct {
	provisioning *services.ProvisioningService
	logger       *logging.ChanneledLogger
}

// NewTenantHandlers creates tenant handlers with injected dependencies
func NewTenantHandlers(provisioning *services.ProvisioningService, logger *logging.ChanneledLogger) *TenantHandlers {
	return &TenantHandlers{provisioning: provisioning, logger: logger}
}

// ActivationRequest is the payload for tenant activation
type ActivationRequest struct {
	Token string `json:"token" binding:"required"`
}

// PostProvision handles POST /api/v1/tenants/provision
func (h *TenantHandlers) PostProvision(c *gin.Context) {
	var req services.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.provisioning.ProvisionTenant(req); err != nil {
		h.logger.Tenant().Warn("Tenant provisioning rejected", "tenantId", req.TenantID, "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"tenantId": req.TenantID,
		"status":   "reserved",
		"message":  "Tenant reserved. Check the admin email for the activation link.",
	})
}

// PostActivate handles POST /api/v1/tenants/activate
func (h *TenantHandlers) PostActivate(c *gin.Context) {
	var req ActivationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "activation token is required"})
		return
	}

	if err := h.provisioning.ActivateTenant(req.Token); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid or expired activation token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "active"})
}
