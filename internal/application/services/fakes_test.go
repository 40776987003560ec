package services

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/caching"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/stretchr/testify/require"
)

// In-memory repository fakes mirroring the persistence layer's contracts:
// case-insensitive email lookup with most-recently-updated tie-break,
// monotonic SetEmail, keyset pagination, and the duplicate-purchase error.

type fakeIdentityRepo struct {
	identities []*visitor.Identity
}

func (r *fakeIdentityRepo) FindByID(id string) (*visitor.Identity, error) {
	for _, identity := range r.identities {
		if identity.ID == id {
			return identity, nil
		}
	}
	return nil, nil
}

func (r *fakeIdentityRepo) FindByEmail(email string) (*visitor.Identity, error) {
	normalized := strings.ToLower(email)
	var best *visitor.Identity
	for _, identity := range r.identities {
		if identity.Email == nil || strings.ToLower(*identity.Email) != normalized {
			continue
		}
		if best == nil || identity.UpdatedAt.After(best.UpdatedAt) {
			best = identity
		}
	}
	return best, nil
}

func (r *fakeIdentityRepo) FindByFingerprint(fingerprint string) (*visitor.Identity, error) {
	for _, identity := range r.identities {
		if identity.Fingerprint == fingerprint {
			return identity, nil
		}
	}
	return nil, nil
}

func (r *fakeIdentityRepo) Create(identity *visitor.Identity) error {
	r.identities = append(r.identities, identity)
	return nil
}

func (r *fakeIdentityRepo) SetEmail(id, email string, at time.Time) error {
	for _, identity := range r.identities {
		if identity.ID == id && identity.Email == nil {
			identity.Email = &email
			identity.UpdatedAt = at
		}
	}
	return nil
}

func (r *fakeIdentityRepo) MarkUpdated(id string, at time.Time) error {
	for _, identity := range r.identities {
		if identity.ID == id {
			identity.UpdatedAt = at
		}
	}
	return nil
}

func (r *fakeIdentityRepo) Count() (int, error) {
	return len(r.identities), nil
}

type fakeTouchRepo struct {
	touches []*visitor.Touch
}

func (r *fakeTouchRepo) Create(touch *visitor.Touch) error {
	r.touches = append(r.touches, touch)
	return nil
}

func (r *fakeTouchRepo) FindByVisitorID(visitorID string) ([]*visitor.Touch, error) {
	var out []*visitor.Touch
	for _, touch := range r.touches {
		if touch.VisitorID == visitorID {
			out = append(out, touch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeTouchRepo) FindInRange(since, until time.Time) ([]*visitor.Touch, error) {
	var out []*visitor.Touch
	for _, touch := range r.touches {
		if !touch.CreatedAt.Before(since) && touch.CreatedAt.Before(until) {
			out = append(out, touch)
		}
	}
	return out, nil
}

func (r *fakeTouchRepo) CountByVisitorID(visitorID string) (int, error) {
	count := 0
	for _, touch := range r.touches {
		if touch.VisitorID == visitorID {
			count++
		}
	}
	return count, nil
}

type fakePurchaseRepo struct {
	purchases []*commerce.Purchase
}

func (r *fakePurchaseRepo) FindByID(id string) (*commerce.Purchase, error) {
	for _, p := range r.purchases {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePurchaseRepo) FindByPlatformID(platform, platformPurchaseID string) (*commerce.Purchase, error) {
	for _, p := range r.purchases {
		if p.Platform == platform && p.PlatformPurchaseID == platformPurchaseID {
			return p, nil
		}
	}
	return nil, nil
}

func (r *fakePurchaseRepo) Create(purchase *commerce.Purchase) error {
	for _, p := range r.purchases {
		if p.Platform == purchase.Platform && p.PlatformPurchaseID == purchase.PlatformPurchaseID {
			return commerce.ErrDuplicatePurchase
		}
	}
	r.purchases = append(r.purchases, purchase)
	return nil
}

func (r *fakePurchaseRepo) FindInRange(since, until time.Time) ([]*commerce.Purchase, error) {
	var out []*commerce.Purchase
	for _, p := range r.purchases {
		if !p.PurchasedAt.Before(since) && p.PurchasedAt.Before(until) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) FindRecent(limit int) ([]*commerce.Purchase, error) {
	sorted := make([]*commerce.Purchase, len(r.purchases))
	copy(sorted, r.purchases)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PurchasedAt.After(sorted[j].PurchasedAt) })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (r *fakePurchaseRepo) FindBatchAfter(afterID string, limit int) ([]*commerce.Purchase, error) {
	sorted := make([]*commerce.Purchase, len(r.purchases))
	copy(sorted, r.purchases)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	var out []*commerce.Purchase
	for _, p := range sorted {
		if p.ID > afterID {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakePurchaseRepo) UpdateAttribution(purchase *commerce.Purchase) error {
	for i, p := range r.purchases {
		if p.ID == purchase.ID {
			copied := *purchase
			r.purchases[i] = &copied
		}
	}
	return nil
}

func (r *fakePurchaseRepo) UnlinkLaunch(launchID string) error {
	for _, p := range r.purchases {
		if p.LaunchID != nil && *p.LaunchID == launchID {
			p.LaunchID = nil
		}
	}
	return nil
}

func (r *fakePurchaseRepo) Count() (int, error) {
	return len(r.purchases), nil
}

type fakeLaunchRepo struct {
	launches []*commerce.Launch
}

func (r *fakeLaunchRepo) FindByID(id string) (*commerce.Launch, error) {
	for _, l := range r.launches {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeLaunchRepo) FindAll() ([]*commerce.Launch, error) {
	return r.launches, nil
}

func (r *fakeLaunchRepo) FindByShareToken(token string) (*commerce.Launch, error) {
	for _, l := range r.launches {
		if l.ShareToken != nil && *l.ShareToken == token {
			return l, nil
		}
	}
	return nil, nil
}

func (r *fakeLaunchRepo) FindContaining(at time.Time) (*commerce.Launch, error) {
	var best *commerce.Launch
	for _, l := range r.launches {
		if l.Archived || !l.Contains(at) {
			continue
		}
		if best == nil || l.CreatedAt.After(best.CreatedAt) {
			best = l
		}
	}
	return best, nil
}

func (r *fakeLaunchRepo) Create(launch *commerce.Launch) error {
	r.launches = append(r.launches, launch)
	return nil
}

func (r *fakeLaunchRepo) Update(launch *commerce.Launch) error {
	for i, l := range r.launches {
		if l.ID == launch.ID {
			r.launches[i] = launch
		}
	}
	return nil
}

func (r *fakeLaunchRepo) Delete(id string) error {
	var kept []*commerce.Launch
	for _, l := range r.launches {
		if l.ID != id {
			kept = append(kept, l)
		}
	}
	r.launches = kept
	return nil
}

func strPtr(s string) *string { return &s }

func at(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return parsed
}

func newTestLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	logger, err := logging.NewChanneledLogger(&logging.LoggerConfig{OutputToConsole: true})
	require.NoError(t, err)
	return logger
}

func newTestIngestionService(t *testing.T) *IngestionService {
	t.Helper()
	logger := newTestLogger(t)
	tracker := performance.NewTracker(performance.DefaultTrackerConfig())
	return NewIngestionService(logger, tracker, nil, caching.NewAnalyticsCache(),
		NewResolverService(logger), NewAttributionService(logger))
}

func newTestBackfillService(t *testing.T) *BackfillService {
	t.Helper()
	logger := newTestLogger(t)
	tracker := performance.NewTracker(performance.DefaultTrackerConfig())
	return NewBackfillService(logger, tracker, caching.NewAnalyticsCache(),
		NewResolverService(logger), NewAttributionService(logger))
}
