package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/database"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/email"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	dbconn "github.com/coursesignal/coursesignal-go/internal/infrastructure/persistence/database"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
)

// ProvisioningService orchestrates tenant lifecycle operations.
type ProvisioningService struct {
	tenantManager *tenant.Manager
	emailService  email.Service
	logger        *logging.ChanneledLogger
	perfTracker   *performance.Tracker
}

// NewProvisioningService creates a new ProvisioningService.
func NewProvisioningService(
	tenantManager *tenant.Manager,
	emailService email.Service,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *ProvisioningService {
	return &ProvisioningService{
		tenantManager: tenantManager,
		emailService:  emailService,
		logger:        logger,
		perfTracker:   perfTracker,
	}
}

// ProvisionRequest defines the input for creating a new tenant workspace.
type ProvisionRequest struct {
	TenantID          string   `json:"tenantId"`
	AdminEmail        string   `json:"adminEmail"`
	DashboardPassword string   `json:"dashboardPassword"`
	Domains           []string `json:"domains"`
	TursoDatabaseURL  string   `json:"tursoDatabaseURL"`
	TursoAuthToken    string   `json:"tursoAuthToken"`
}

var tenantIDPattern = regexp.MustCompile(`^[a-z0-9-]{3,24}$`)

// ProvisionTenant creates a new reserved tenant and emails the activation link.
func (s *ProvisioningService) ProvisionTenant(req ProvisionRequest) error {
	marker := s.perfTracker.StartOperation("provision_tenant", req.TenantID)
	defer marker.Complete()

	if err := s.validateProvisionRequest(req); err != nil {
		marker.SetError(err)
		return err
	}

	jwtSecret, err := security.GenerateSecureKey(64)
	if err != nil {
		marker.SetError(err)
		return fmt.Errorf("secret generation failed: %w", err)
	}
	activationToken, err := security.GenerateSecureToken(32)
	if err != nil {
		marker.SetError(err)
		return fmt.Errorf("token generation failed: %w", err)
	}
	passwordHash, err := security.HashPassword(req.DashboardPassword)
	if err != nil {
		marker.SetError(err)
		s.logger.System().Error("Failed to hash dashboard password during provisioning", "error", err.Error(), "tenantId", req.TenantID)
		return fmt.Errorf("password hashing failed")
	}

	newConfig := &tenant.Config{
		TenantID:              req.TenantID,
		Domains:               req.Domains,
		Status:                "reserved",
		TursoDatabase:         req.TursoDatabaseURL,
		TursoToken:            req.TursoAuthToken,
		TursoEnabled:          req.TursoDatabaseURL != "" && req.TursoAuthToken != "",
		JWTSecret:             jwtSecret,
		DashboardPasswordHash: passwordHash,
		ReportEmail:           req.AdminEmail,
		ActivationToken:       activationToken,
	}
	if err := tenant.SaveTenantConfig(newConfig); err != nil {
		marker.SetError(err)
		return err
	}
	if err := s.updateTenantRegistry(req.TenantID, "reserved", req.Domains); err != nil {
		marker.SetError(err)
		return err
	}

	if s.emailService != nil {
		activationURL := fmt.Sprintf("https://%s/activate?token=%s", req.Domains[0], activationToken)
		if err := s.emailService.SendTenantActivationEmail(req.AdminEmail, req.TenantID, activationURL); err != nil {
			// Provisioning stands; the activation link can be re-sent.
			s.logger.Email().Error("Failed to send activation email", "error", err.Error(), "tenantId", req.TenantID)
		}
	}

	marker.SetSuccess(true)
	s.logger.Tenant().Info("Tenant provisioned", "tenantId", req.TenantID)
	return nil
}

// ActivateTenant finalizes tenant setup by creating the database schema and
// flipping the registry status to active.
func (s *ProvisioningService) ActivateTenant(token string) error {
	marker := s.perfTracker.StartOperation("activate_tenant", "unknown")
	defer marker.Complete()

	tenantID, err := s.findTenantByActivationToken(token)
	if err != nil {
		marker.SetError(err)
		return err
	}
	marker.TenantID = tenantID

	ctx, err := s.tenantManager.NewContextFromID(tenantID)
	if err != nil {
		marker.SetError(err)
		return fmt.Errorf("failed to create context for activation: %w", err)
	}

	tableCreator := database.NewTableCreator()
	if err := tableCreator.CreateSchema(ctx.Database.Conn); err != nil {
		marker.SetError(err)
		return fmt.Errorf("database schema creation failed: %w", err)
	}

	if err := s.updateTenantRegistry(tenantID, "active", nil); err != nil {
		marker.SetError(err)
		return err
	}
	s.tenantManager.GetDetector().UpdateTenantStatus(tenantID, "active", ctx.Config.DatabaseType)
	ctx.Status = "active"

	ctx.Config.Status = "active"
	ctx.Config.ActivationToken = ""
	if err := tenant.SaveTenantConfig(ctx.Config); err != nil {
		s.logger.Tenant().Warn("Failed to clear activation token after activation", "error", err.Error(), "tenantId", tenantID)
	}

	marker.SetSuccess(true)
	s.logger.Tenant().Info("Tenant activated", "tenantId", tenantID)
	return nil
}

func (s *ProvisioningService) validateProvisionRequest(req ProvisionRequest) error {
	if !tenantIDPattern.MatchString(req.TenantID) {
		return fmt.Errorf("invalid tenant ID format: must be 3-24 lowercase alphanumeric characters or hyphens")
	}
	if len(req.DashboardPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if len(req.Domains) == 0 || req.Domains[0] == "" {
		return fmt.Errorf("at least one domain is required")
	}
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("could not load tenant registry for validation")
	}
	if _, exists := registry.Tenants[req.TenantID]; exists {
		return fmt.Errorf("tenant ID %q already exists", req.TenantID)
	}
	// Verify hosted credentials before anything is written to disk.
	if req.TursoDatabaseURL != "" && req.TursoAuthToken != "" {
		if err := dbconn.TestTursoConnection(req.TursoDatabaseURL, req.TursoAuthToken); err != nil {
			return fmt.Errorf("turso connection check failed: %w", err)
		}
	}
	return nil
}

func (s *ProvisioningService) updateTenantRegistry(tenantID, status string, domains []string) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not find user home directory: %w", err)
	}
	registryPath := filepath.Join(homeDir, "coursesignal-server", "config", "system", "tenants.json")

	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to load registry to update: %w", err)
	}

	info, exists := registry.Tenants[tenantID]
	if !exists {
		info = tenant.Info{TenantID: tenantID}
	}
	info.Status = status
	if domains != nil {
		info.Domains = domains
	}
	registry.Tenants[tenantID] = info

	if err := os.MkdirAll(filepath.Dir(registryPath), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	registryData, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	return os.WriteFile(registryPath, registryData, 0644)
}

func (s *ProvisioningService) findTenantByActivationToken(token string) (string, error) {
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return "", err
	}

	for tenantID, info := range registry.Tenants {
		if info.Status != "reserved" {
			continue
		}
		cfg, err := tenant.LoadTenantConfig(tenantID)
		if err != nil {
			s.logger.System().Warn("Could not load config for reserved tenant during activation check", "tenantId", tenantID)
			continue
		}
		if cfg.ActivationToken != "" && cfg.ActivationToken == token {
			return tenantID, nil
		}
	}
	return "", fmt.Errorf("invalid or expired activation token")
}
