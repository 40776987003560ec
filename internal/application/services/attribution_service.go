package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
)

// Attribution pairs the first- and last-touch snapshots credited to a purchase.
type Attribution struct {
	FirstTouch visitor.TouchSnapshot
	LastTouch  visitor.TouchSnapshot
}

// AttributionService derives first/last-touch attribution for matched purchases.
type AttributionService struct {
	logger *logging.ChanneledLogger
}

// NewAttributionService creates a new attribution service.
func NewAttributionService(logger *logging.ChanneledLogger) *AttributionService {
	return &AttributionService{logger: logger}
}

// Attribute computes the attribution for a purchase by a known visitor.
// First touch is the identity's fixed snapshot; last touch is recomputed per
// purchase from the touch log.
func (s *AttributionService) Attribute(tenantID string, touches visitor.TouchRepository, identity *visitor.Identity, purchasedAt time.Time, lookbackDays int) (Attribution, error) {
	touchLog, err := touches.FindByVisitorID(identity.ID)
	if err != nil {
		return Attribution{}, fmt.Errorf("touch log load failed: %w", err)
	}

	attribution := attributeVisitor(identity, touchLog, purchasedAt, lookbackDays)
	s.logger.Attribution().Debug("Attribution computed",
		"tenantId", tenantID,
		"visitorId", identity.ID,
		"touches", len(touchLog),
		"direct", attribution.LastTouch.IsDirect())
	return attribution, nil
}

// attributeVisitor is the pure attribution calculation.
//
// First touch: the identity's snapshot, fixed at creation. Last touch: the
// touch with the greatest timestamp at or before purchasedAt, no older than
// the lookback window (lookbackDays 0 means unbounded). When no touch
// qualifies the first-touch snapshot serves for both ends; an identity with
// an empty touch log (identify-only visitor) therefore yields empty "direct"
// attribution while the purchase stays matched.
func attributeVisitor(identity *visitor.Identity, touches []*visitor.Touch, purchasedAt time.Time, lookbackDays int) Attribution {
	purchasedAt = purchasedAt.UTC()

	// Recorded order is not trusted across clock skew.
	sorted := make([]*visitor.Touch, len(touches))
	copy(sorted, touches)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var cutoff time.Time
	if lookbackDays > 0 {
		cutoff = purchasedAt.AddDate(0, 0, -lookbackDays)
	}

	var last *visitor.Touch
	for _, touch := range sorted {
		at := touch.CreatedAt.UTC()
		if at.After(purchasedAt) {
			continue
		}
		if lookbackDays > 0 && at.Before(cutoff) {
			continue
		}
		if last == nil || !at.Before(last.CreatedAt.UTC()) {
			last = touch
		}
	}

	attribution := Attribution{
		FirstTouch: identity.FirstTouch,
		LastTouch:  identity.FirstTouch,
	}
	if last != nil {
		attribution.LastTouch = last.Snapshot()
	}
	return attribution
}
