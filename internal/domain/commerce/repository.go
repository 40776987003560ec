// Package commerce defines the purchase and launch entities together with
// their repository interfaces. Purchases are written exactly once at
// ingestion time; attribution fields change only through an explicit
// re-attribution backfill.
package commerce

import (
	"errors"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
)

// AttributionStatus marks whether a purchase could be linked to a visitor identity.
type AttributionStatus string

const (
	StatusMatched   AttributionStatus = "matched"
	StatusUnmatched AttributionStatus = "unmatched"
)

// ErrDuplicatePurchase is returned by PurchaseRepository.Create when the
// (platform, platform_purchase_id) uniqueness constraint rejects the insert.
// Ingestion converts it into the idempotent return-existing path.
var ErrDuplicatePurchase = errors.New("purchase already ingested")

// Purchase represents one completed transaction on a connected course platform.
type Purchase struct {
	ID                 string                `json:"id"`
	VisitorID          *string               `json:"visitorId,omitempty"` // nil when unmatched
	Email              string                `json:"email"`
	AmountCents        int64                 `json:"amountCents"`
	Currency           string                `json:"currency"`
	ProductName        string                `json:"productName"`
	Platform           string                `json:"platform"`
	PlatformPurchaseID string                `json:"platformPurchaseId"`
	FirstTouch         visitor.TouchSnapshot `json:"firstTouch"`
	LastTouch          visitor.TouchSnapshot `json:"lastTouch"`
	Status             AttributionStatus     `json:"status"`
	LaunchID           *string               `json:"launchId,omitempty"`
	PurchasedAt        time.Time             `json:"purchasedAt"`
	CreatedAt          time.Time             `json:"createdAt"`
}

// LaunchStatus is derived from the launch window, except archived which is sticky.
type LaunchStatus string

const (
	LaunchUpcoming  LaunchStatus = "upcoming"
	LaunchActive    LaunchStatus = "active"
	LaunchCompleted LaunchStatus = "completed"
	LaunchArchived  LaunchStatus = "archived"
)

// Launch represents a bounded promotional period with optional goals.
type Launch struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	StartDate        time.Time  `json:"startDate"`
	EndDate          time.Time  `json:"endDate"`
	RevenueGoalCents *int64     `json:"revenueGoalCents,omitempty"`
	SalesGoal        *int       `json:"salesGoal,omitempty"`
	Archived         bool       `json:"archived"`
	ShareToken       *string    `json:"shareToken,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
}

// StatusAt computes the launch status as a pure function of the clock and the
// window. Archived is terminal and never recomputed from dates.
func (l *Launch) StatusAt(now time.Time) LaunchStatus {
	if l.Archived {
		return LaunchArchived
	}
	if now.Before(l.StartDate) {
		return LaunchUpcoming
	}
	if !now.After(l.EndDate) {
		return LaunchActive
	}
	return LaunchCompleted
}

// Contains reports whether a purchase timestamp falls inside the launch window.
func (l *Launch) Contains(at time.Time) bool {
	return !at.Before(l.StartDate) && !at.After(l.EndDate)
}

// PurchaseRepository defines the operations for persisting purchases.
type PurchaseRepository interface {
	FindByID(id string) (*Purchase, error)
	FindByPlatformID(platform, platformPurchaseID string) (*Purchase, error)
	// Create inserts a new purchase. The UNIQUE(platform, platform_purchase_id)
	// index is the final arbiter under concurrent delivery; a constraint
	// violation surfaces as ErrDuplicatePurchase.
	Create(purchase *Purchase) error
	FindInRange(since, until time.Time) ([]*Purchase, error)
	FindRecent(limit int) ([]*Purchase, error)
	// FindBatchAfter returns up to limit purchases ordered by id, strictly
	// after the given cursor id. Used by the re-attribution backfill for
	// resumable keyset pagination.
	FindBatchAfter(afterID string, limit int) ([]*Purchase, error)
	// UpdateAttribution rewrites the attribution fields of an existing
	// purchase. This is the only mutation path and exists solely for the
	// explicit backfill operation.
	UpdateAttribution(purchase *Purchase) error
	UnlinkLaunch(launchID string) error
	Count() (int, error)
}

// LaunchRepository defines the operations for persisting launches.
type LaunchRepository interface {
	FindByID(id string) (*Launch, error)
	FindAll() ([]*Launch, error)
	FindByShareToken(token string) (*Launch, error)
	// FindContaining returns the launch whose window contains the given
	// instant; overlapping windows resolve to the most recently created launch.
	FindContaining(at time.Time) (*Launch, error)
	Create(launch *Launch) error
	Update(launch *Launch) error
	Delete(id string) error
}
