package services

import (
	"fmt"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/coursesignal/coursesignal-go/pkg/config"
)

// AuthService issues dashboard tokens for tenant operators.
type AuthService struct {
	logger *logging.ChanneledLogger
}

// NewAuthService creates a new auth service.
func NewAuthService(logger *logging.ChanneledLogger) *AuthService {
	return &AuthService{logger: logger}
}

// Login checks the dashboard password against the tenant's bcrypt hash and
// returns a signed JWT for the dashboard routes.
func (s *AuthService) Login(tenantCtx *tenant.Context, password string) (string, error) {
	if tenantCtx.Config.DashboardPasswordHash == "" {
		s.logger.Auth().Warn("Login attempted with no dashboard password configured", "tenantId", tenantCtx.TenantID)
		return "", ErrInvalidCredentials
	}
	if !security.CheckPassword(tenantCtx.Config.DashboardPasswordHash, password) {
		s.logger.Auth().Warn("Login failed", "tenantId", tenantCtx.TenantID)
		return "", ErrInvalidCredentials
	}

	expiry := time.Duration(config.DashboardTokenExpiryDays) * 24 * time.Hour
	token, err := security.GenerateDashboardToken(tenantCtx.TenantID, "admin", tenantCtx.Config.JWTSecret, expiry)
	if err != nil {
		return "", fmt.Errorf("token generation failed: %w", err)
	}

	s.logger.Auth().Info("Dashboard login succeeded", "tenantId", tenantCtx.TenantID)
	return token, nil
}
