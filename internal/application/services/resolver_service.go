package services

import (
	"fmt"
	"strings"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
)

// Resolution is the outcome of matching a purchase to a visitor identity.
// Status is StatusUnmatched exactly when Identity is nil.
type Resolution struct {
	Identity *visitor.Identity
	Status   commerce.AttributionStatus
}

// ResolverService finds the best-matching visitor identity for a purchase.
type ResolverService struct {
	logger *logging.ChanneledLogger
}

// NewResolverService creates a new resolver service.
func NewResolverService(logger *logging.ChanneledLogger) *ResolverService {
	return &ResolverService{logger: logger}
}

// Resolve matches a purchase email and optional device fingerprint against
// the tenant's visitor identities. Pure read; performs no writes.
func (s *ResolverService) Resolve(tenantID string, identities visitor.IdentityRepository, email string, fingerprint *string) (Resolution, error) {
	resolution, err := resolveIdentity(identities, email, fingerprint)
	if err != nil {
		s.logger.Attribution().Error("Identity resolution failed", "error", err.Error(), "tenantId", tenantID)
		return resolution, err
	}

	s.logger.Attribution().Debug("Identity resolved",
		"tenantId", tenantID,
		"status", string(resolution.Status),
		"byFingerprint", resolution.Identity != nil && fingerprint != nil && resolution.Identity.Fingerprint == *fingerprint)
	return resolution, nil
}

// resolveIdentity applies the precedence policy: email beats fingerprint,
// fingerprint beats nothing. Email is the most durable signal and survives
// cross-device journeys, so it is consulted first.
func resolveIdentity(identities visitor.IdentityRepository, email string, fingerprint *string) (Resolution, error) {
	unmatched := Resolution{Status: commerce.StatusUnmatched}

	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized != "" {
		identity, err := identities.FindByEmail(normalized)
		if err != nil {
			return unmatched, fmt.Errorf("email lookup failed: %w", err)
		}
		if identity != nil {
			return Resolution{Identity: identity, Status: commerce.StatusMatched}, nil
		}
	}

	if fingerprint != nil && *fingerprint != "" {
		identity, err := identities.FindByFingerprint(*fingerprint)
		if err != nil {
			return unmatched, fmt.Errorf("fingerprint lookup failed: %w", err)
		}
		if identity != nil {
			return Resolution{Identity: identity, Status: commerce.StatusMatched}, nil
		}
	}

	return unmatched, nil
}
