package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/coursesignal/coursesignal-go/pkg/config"
)

// TouchInput carries the marketing fields of one tracking ping.
type TouchInput struct {
	Source      *string
	Medium      *string
	Campaign    *string
	Referrer    *string
	LandingPage string
	Timestamp   time.Time
}

// TrackingService records touches and identity captures for tenant visitors.
type TrackingService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewTrackingService creates a new tracking service.
func NewTrackingService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *TrackingService {
	return &TrackingService{logger: logger, perfTracker: perfTracker}
}

// RecordTouch creates the visitor on first contact and appends an immutable
// touch to its log. The first-touch snapshot is fixed at creation and never
// recomputed from later touches.
func (s *TrackingService) RecordTouch(tenantCtx *tenant.Context, visitorKey string, input TouchInput) (*visitor.Identity, error) {
	marker := s.perfTracker.StartOperation("record_touch", tenantCtx.TenantID)
	defer marker.Complete()

	identity, created, err := recordTouch(tenantCtx.VisitorRepo(), tenantCtx.TouchRepo(), visitorKey, input, time.Now().UTC())
	if err != nil {
		marker.SetError(err)
		s.logger.Tracking().Error("Touch recording failed", "error", err.Error(), "tenantId", tenantCtx.TenantID)
		return nil, err
	}

	marker.SetSuccess(true)
	marker.AddMetadata("visitorCreated", created)
	s.logger.Tracking().Debug("Touch recorded",
		"tenantId", tenantCtx.TenantID,
		"visitorId", identity.ID,
		"visitorCreated", created,
		"duration", time.Since(marker.StartTime))
	return identity, nil
}

// Identify merges a captured email into the visitor identity for a visitor
// key. Email capture is monotonic; an existing different address is never
// overwritten. A previously-unseen visitor key creates an identity with an
// empty first-touch snapshot.
func (s *TrackingService) Identify(tenantCtx *tenant.Context, visitorKey, email string) (*visitor.Identity, error) {
	marker := s.perfTracker.StartOperation("identify_visitor", tenantCtx.TenantID)
	defer marker.Complete()

	identity, err := identifyVisitor(tenantCtx.VisitorRepo(), visitorKey, email, time.Now().UTC())
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	marker.SetSuccess(true)
	s.logger.LogIdentityCapture(tenantCtx.TenantID, identity.ID, email)
	return identity, nil
}

func recordTouch(identities visitor.IdentityRepository, touches visitor.TouchRepository, visitorKey string, input TouchInput, now time.Time) (*visitor.Identity, bool, error) {
	if err := validateTouchInput(visitorKey, input); err != nil {
		return nil, false, err
	}

	at := input.Timestamp
	if at.IsZero() {
		at = now
	}
	at = at.UTC()

	fingerprint := security.DeriveFingerprint(visitorKey)
	identity, err := identities.FindByFingerprint(fingerprint)
	if err != nil {
		return nil, false, fmt.Errorf("visitor lookup failed: %w", err)
	}

	created := false
	if identity == nil {
		identity = &visitor.Identity{
			ID:          security.GenerateULID(),
			Fingerprint: fingerprint,
			FirstTouch: visitor.TouchSnapshot{
				Source:   normalizeField(input.Source),
				Medium:   normalizeField(input.Medium),
				Campaign: normalizeField(input.Campaign),
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := identities.Create(identity); err != nil {
			return nil, false, fmt.Errorf("visitor creation failed: %w", err)
		}
		created = true
	}

	touch := &visitor.Touch{
		ID:          security.GenerateULID(),
		VisitorID:   identity.ID,
		Source:      normalizeField(input.Source),
		Medium:      normalizeField(input.Medium),
		Campaign:    normalizeField(input.Campaign),
		Referrer:    normalizeField(input.Referrer),
		LandingPage: input.LandingPage,
		CreatedAt:   at,
	}
	if err := touches.Create(touch); err != nil {
		return nil, false, fmt.Errorf("touch creation failed: %w", err)
	}

	if !created {
		if err := identities.MarkUpdated(identity.ID, now); err != nil {
			return nil, false, fmt.Errorf("visitor timestamp update failed: %w", err)
		}
	}
	return identity, created, nil
}

func identifyVisitor(identities visitor.IdentityRepository, visitorKey, email string, now time.Time) (*visitor.Identity, error) {
	if strings.TrimSpace(visitorKey) == "" {
		return nil, fmt.Errorf("%w: visitor key is required", ErrInvalidIdentify)
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return nil, fmt.Errorf("%w: a valid email is required", ErrInvalidIdentify)
	}

	fingerprint := security.DeriveFingerprint(visitorKey)
	identity, err := identities.FindByFingerprint(fingerprint)
	if err != nil {
		return nil, fmt.Errorf("visitor lookup failed: %w", err)
	}

	if identity == nil {
		// Identity capture before any tracking ping. The first-touch
		// snapshot stays empty; a later purchase from this visitor is
		// matched with direct attribution.
		identity = &visitor.Identity{
			ID:          security.GenerateULID(),
			Email:       &normalized,
			Fingerprint: fingerprint,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := identities.Create(identity); err != nil {
			return nil, fmt.Errorf("visitor creation failed: %w", err)
		}
		return identity, nil
	}

	if err := identities.SetEmail(identity.ID, normalized, now); err != nil {
		return nil, fmt.Errorf("email capture failed: %w", err)
	}
	if identity.Email == nil {
		identity.Email = &normalized
	}
	identity.UpdatedAt = now
	return identity, nil
}

func validateTouchInput(visitorKey string, input TouchInput) error {
	if strings.TrimSpace(visitorKey) == "" {
		return fmt.Errorf("%w: visitor key is required", ErrInvalidTouch)
	}
	for name, field := range map[string]*string{
		"source":   input.Source,
		"medium":   input.Medium,
		"campaign": input.Campaign,
	} {
		if field != nil && len(*field) > config.MaxTouchFieldLength {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidTouch, name, config.MaxTouchFieldLength)
		}
	}
	return nil
}

// normalizeField trims a touch field and collapses empty strings to nil so
// "direct" traffic is stored uniformly as NULL.
func normalizeField(field *string) *string {
	if field == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*field)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
