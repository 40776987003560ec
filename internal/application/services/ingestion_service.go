package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/caching"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/messaging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/coursesignal/coursesignal-go/pkg/config"
)

// PurchaseInput is the normalized purchase event shape. Platform adapters
// (Kajabi, Teachable, Skool webhooks) normalize to this before posting.
type PurchaseInput struct {
	Platform           string
	PlatformPurchaseID string
	Email              string
	AmountCents        int64
	Currency           string
	ProductName        string
	PurchasedAt        time.Time
	DeviceFingerprint  *string
	LaunchID           *string // launch hint; nil means derive from window
}

// IngestionService is the single write path for purchases. It runs the
// resolve, attribute, associate, persist pipeline.
type IngestionService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	broadcaster *messaging.PurchaseBroadcaster
	cache       *caching.AnalyticsCache
	resolver    *ResolverService
	attributor  *AttributionService
}

// NewIngestionService creates a new ingestion service.
func NewIngestionService(
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
	broadcaster *messaging.PurchaseBroadcaster,
	cache *caching.AnalyticsCache,
	resolver *ResolverService,
	attributor *AttributionService,
) *IngestionService {
	return &IngestionService{
		logger:      logger,
		perfTracker: perfTracker,
		broadcaster: broadcaster,
		cache:       cache,
		resolver:    resolver,
		attributor:  attributor,
	}
}

// IngestPurchase ingests one purchase event idempotently. Re-delivery of an
// already-seen (platform, platformPurchaseId) returns the original record.
func (s *IngestionService) IngestPurchase(tenantCtx *tenant.Context, input PurchaseInput) (*commerce.Purchase, error) {
	marker := s.perfTracker.StartOperation("ingest_purchase", tenantCtx.TenantID)
	defer marker.Complete()

	purchase, created, err := s.ingest(
		tenantCtx.TenantID,
		tenantCtx.VisitorRepo(),
		tenantCtx.TouchRepo(),
		tenantCtx.PurchaseRepo(),
		tenantCtx.LaunchRepo(),
		input,
		time.Now().UTC(),
		config.AttributionLookbackDays,
	)
	if err != nil {
		marker.SetError(err)
		s.logger.Attribution().Error("Purchase ingestion failed",
			"error", err.Error(),
			"tenantId", tenantCtx.TenantID,
			"platform", input.Platform,
			"platformPurchaseId", input.PlatformPurchaseID)
		return nil, err
	}

	marker.SetSuccess(true)
	marker.AddMetadata("created", created)
	marker.AddMetadata("status", string(purchase.Status))

	if created {
		s.cache.InvalidateTenant(tenantCtx.TenantID)
		s.logger.Attribution().Info("Purchase ingested",
			"tenantId", tenantCtx.TenantID,
			"purchaseId", purchase.ID,
			"platform", purchase.Platform,
			"amountCents", purchase.AmountCents,
			"status", string(purchase.Status),
			"launchId", purchase.LaunchID,
			"duration", time.Since(marker.StartTime))
		if s.broadcaster != nil {
			s.broadcaster.BroadcastPurchase(tenantCtx.TenantID, purchase)
		}
	} else {
		s.logger.Attribution().Debug("Duplicate purchase delivery ignored",
			"tenantId", tenantCtx.TenantID,
			"purchaseId", purchase.ID,
			"platform", purchase.Platform)
	}
	return purchase, nil
}

// ingest runs the five-step pipeline. The application-level idempotency
// pre-check is an optimization; the uniqueness constraint on
// (platform, platform_purchase_id) is the final arbiter under concurrent
// delivery, and a constraint rejection converts into the return-existing path.
func (s *IngestionService) ingest(
	tenantID string,
	identities visitor.IdentityRepository,
	touches visitor.TouchRepository,
	purchases commerce.PurchaseRepository,
	launches commerce.LaunchRepository,
	input PurchaseInput,
	now time.Time,
	lookbackDays int,
) (*commerce.Purchase, bool, error) {
	if err := validatePurchaseInput(input); err != nil {
		return nil, false, err
	}

	existing, err := purchases.FindByPlatformID(input.Platform, input.PlatformPurchaseID)
	if err != nil {
		return nil, false, fmt.Errorf("idempotency check failed: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	resolution, err := s.resolver.Resolve(tenantID, identities, input.Email, input.DeviceFingerprint)
	if err != nil {
		return nil, false, err
	}

	purchase := &commerce.Purchase{
		ID:                 security.GenerateULID(),
		Email:              strings.ToLower(strings.TrimSpace(input.Email)),
		AmountCents:        input.AmountCents,
		Currency:           strings.ToUpper(input.Currency),
		ProductName:        input.ProductName,
		Platform:           input.Platform,
		PlatformPurchaseID: input.PlatformPurchaseID,
		Status:             resolution.Status,
		PurchasedAt:        input.PurchasedAt.UTC(),
		CreatedAt:          now,
	}

	if resolution.Identity != nil {
		attribution, err := s.attributor.Attribute(tenantID, touches, resolution.Identity, purchase.PurchasedAt, lookbackDays)
		if err != nil {
			return nil, false, err
		}
		purchase.VisitorID = &resolution.Identity.ID
		purchase.FirstTouch = attribution.FirstTouch
		purchase.LastTouch = attribution.LastTouch
	}

	purchase.LaunchID, err = associateLaunch(launches, input.LaunchID, purchase.PurchasedAt)
	if err != nil {
		return nil, false, err
	}

	if err := purchases.Create(purchase); err != nil {
		if errors.Is(err, commerce.ErrDuplicatePurchase) {
			// A concurrent delivery won the insert race.
			winner, findErr := purchases.FindByPlatformID(input.Platform, input.PlatformPurchaseID)
			if findErr != nil {
				return nil, false, fmt.Errorf("duplicate purchase reload failed: %w", findErr)
			}
			if winner == nil {
				return nil, false, fmt.Errorf("duplicate purchase vanished: %w", err)
			}
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("purchase insert failed: %w", err)
	}
	return purchase, true, nil
}

func associateLaunch(launches commerce.LaunchRepository, hint *string, purchasedAt time.Time) (*string, error) {
	if hint != nil && *hint != "" {
		launch, err := launches.FindByID(*hint)
		if err != nil {
			return nil, fmt.Errorf("launch hint lookup failed: %w", err)
		}
		if launch == nil {
			return nil, fmt.Errorf("%w: launch hint %q", ErrLaunchNotFound, *hint)
		}
		return &launch.ID, nil
	}

	launch, err := launches.FindContaining(purchasedAt)
	if err != nil {
		return nil, fmt.Errorf("launch window lookup failed: %w", err)
	}
	if launch == nil {
		return nil, nil
	}
	return &launch.ID, nil
}

func validatePurchaseInput(input PurchaseInput) error {
	switch {
	case strings.TrimSpace(input.Platform) == "":
		return fmt.Errorf("%w: platform is required", ErrInvalidPurchase)
	case strings.TrimSpace(input.PlatformPurchaseID) == "":
		return fmt.Errorf("%w: platform purchase id is required", ErrInvalidPurchase)
	case strings.TrimSpace(input.Email) == "":
		return fmt.Errorf("%w: buyer email is required", ErrInvalidPurchase)
	case input.AmountCents < 0:
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidPurchase)
	case strings.TrimSpace(input.Currency) == "":
		return fmt.Errorf("%w: currency is required", ErrInvalidPurchase)
	case input.PurchasedAt.IsZero():
		return fmt.Errorf("%w: purchase timestamp is required", ErrInvalidPurchase)
	}
	return nil
}
