package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/caching"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/coursesignal/coursesignal-go/pkg/config"
)

// BackfillStatus is the lifecycle state of a re-attribution job.
type BackfillStatus string

const (
	BackfillRunning   BackfillStatus = "running"
	BackfillCompleted BackfillStatus = "completed"
	BackfillFailed    BackfillStatus = "failed"
)

// BackfillJob is the progress snapshot of one tenant's re-attribution run.
type BackfillJob struct {
	TenantID    string         `json:"tenantId"`
	Status      BackfillStatus `json:"status"`
	Cursor      string         `json:"cursor"`
	Processed   int            `json:"processed"`
	Updated     int            `json:"updated"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// BackfillService re-runs resolution and attribution over historical
// purchases. It pages with a keyset cursor so a run is resumable and never
// holds a long transaction that would block live ingestion.
type BackfillService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	cache       *caching.AnalyticsCache
	resolver    *ResolverService
	attributor  *AttributionService

	jobs   map[string]*BackfillJob
	jobsMu sync.Mutex
}

// NewBackfillService creates a new backfill service.
func NewBackfillService(
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
	cache *caching.AnalyticsCache,
	resolver *ResolverService,
	attributor *AttributionService,
) *BackfillService {
	return &BackfillService{
		logger:      logger,
		perfTracker: perfTracker,
		cache:       cache,
		resolver:    resolver,
		attributor:  attributor,
		jobs:        make(map[string]*BackfillJob),
	}
}

// Start launches a re-attribution run for a tenant. Only one run per tenant
// at a time; a finished job's record is replaced by the new run.
func (s *BackfillService) Start(tenantCtx *tenant.Context) (*BackfillJob, error) {
	s.jobsMu.Lock()
	if existing, ok := s.jobs[tenantCtx.TenantID]; ok && existing.Status == BackfillRunning {
		s.jobsMu.Unlock()
		return nil, ErrBackfillRunning
	}
	job := &BackfillJob{
		TenantID:  tenantCtx.TenantID,
		Status:    BackfillRunning,
		StartedAt: time.Now().UTC(),
	}
	s.jobs[tenantCtx.TenantID] = job
	s.jobsMu.Unlock()

	s.logger.Analytics().Info("Backfill started", "tenantId", tenantCtx.TenantID)
	go s.run(tenantCtx, job)

	return s.snapshot(tenantCtx.TenantID), nil
}

// Progress returns the current or last job for a tenant, or nil when no
// backfill has run this process lifetime.
func (s *BackfillService) Progress(tenantID string) *BackfillJob {
	return s.snapshot(tenantID)
}

func (s *BackfillService) run(tenantCtx *tenant.Context, job *BackfillJob) {
	marker := s.perfTracker.StartOperation("backfill", tenantCtx.TenantID)
	defer marker.Complete()

	identities := tenantCtx.VisitorRepo()
	touches := tenantCtx.TouchRepo()
	purchases := tenantCtx.PurchaseRepo()
	launches := tenantCtx.LaunchRepo()

	for {
		cursor := s.cursor(job.TenantID)
		batch, err := purchases.FindBatchAfter(cursor, config.BackfillBatchSize)
		if err != nil {
			s.fail(job.TenantID, err)
			marker.SetError(err)
			return
		}
		if len(batch) == 0 {
			break
		}

		updated, err := s.reattributeBatch(job.TenantID, identities, touches, purchases, launches, batch, config.AttributionLookbackDays)
		if err != nil {
			s.fail(job.TenantID, err)
			marker.SetError(err)
			return
		}
		s.advance(job.TenantID, batch[len(batch)-1].ID, len(batch), updated)

		if len(batch) < config.BackfillBatchSize {
			break
		}
		// Yield between batches so live ingestion is never starved.
		time.Sleep(config.BackfillBatchInterval)
	}

	s.complete(job.TenantID)
	s.cache.InvalidateTenant(job.TenantID)
	marker.SetSuccess(true)

	final := s.snapshot(job.TenantID)
	s.logger.Analytics().Info("Backfill completed",
		"tenantId", job.TenantID,
		"processed", final.Processed,
		"updated", final.Updated,
		"duration", time.Since(marker.StartTime))
}

// reattributeBatch re-resolves and re-attributes one batch of purchases,
// writing back only the rows whose attribution actually changed. Safe to
// re-run over the same purchase set.
func (s *BackfillService) reattributeBatch(
	tenantID string,
	identities visitor.IdentityRepository,
	touches visitor.TouchRepository,
	purchases commerce.PurchaseRepository,
	launches commerce.LaunchRepository,
	batch []*commerce.Purchase,
	lookbackDays int,
) (int, error) {
	updated := 0
	for _, purchase := range batch {
		resolution, err := s.resolver.Resolve(tenantID, identities, purchase.Email, nil)
		if err != nil {
			return updated, fmt.Errorf("re-resolution failed for purchase %s: %w", purchase.ID, err)
		}

		revised := *purchase
		revised.Status = resolution.Status
		revised.VisitorID = nil
		revised.FirstTouch = visitor.TouchSnapshot{}
		revised.LastTouch = visitor.TouchSnapshot{}

		if resolution.Identity != nil {
			attribution, err := s.attributor.Attribute(tenantID, touches, resolution.Identity, purchase.PurchasedAt, lookbackDays)
			if err != nil {
				return updated, fmt.Errorf("re-attribution failed for purchase %s: %w", purchase.ID, err)
			}
			revised.VisitorID = &resolution.Identity.ID
			revised.FirstTouch = attribution.FirstTouch
			revised.LastTouch = attribution.LastTouch
		}

		if purchase.LaunchID == nil {
			revised.LaunchID, err = associateLaunch(launches, nil, purchase.PurchasedAt)
			if err != nil {
				return updated, err
			}
		}

		if attributionChanged(purchase, &revised) {
			if err := purchases.UpdateAttribution(&revised); err != nil {
				return updated, fmt.Errorf("attribution update failed for purchase %s: %w", purchase.ID, err)
			}
			updated++
		}
	}
	return updated, nil
}

func attributionChanged(before, after *commerce.Purchase) bool {
	return before.Status != after.Status ||
		!stringPtrEqual(before.VisitorID, after.VisitorID) ||
		!snapshotEqual(before.FirstTouch, after.FirstTouch) ||
		!snapshotEqual(before.LastTouch, after.LastTouch) ||
		!stringPtrEqual(before.LaunchID, after.LaunchID)
}

func snapshotEqual(a, b visitor.TouchSnapshot) bool {
	return stringPtrEqual(a.Source, b.Source) &&
		stringPtrEqual(a.Medium, b.Medium) &&
		stringPtrEqual(a.Campaign, b.Campaign)
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *BackfillService) snapshot(tenantID string) *BackfillJob {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job, ok := s.jobs[tenantID]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func (s *BackfillService) cursor(tenantID string) string {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	return s.jobs[tenantID].Cursor
}

func (s *BackfillService) advance(tenantID, cursor string, processed, updated int) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job := s.jobs[tenantID]
	job.Cursor = cursor
	job.Processed += processed
	job.Updated += updated
}

func (s *BackfillService) complete(tenantID string) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job := s.jobs[tenantID]
	now := time.Now().UTC()
	job.Status = BackfillCompleted
	job.CompletedAt = &now
}

func (s *BackfillService) fail(tenantID string, err error) {
	s.jobsMu.Lock()
	defer s.jobsMu.Unlock()
	job := s.jobs[tenantID]
	now := time.Now().UTC()
	job.Status = BackfillFailed
	job.CompletedAt = &now
	job.Error = err.Error()
	s.logger.Analytics().Error("Backfill failed", "tenantId", tenantID, "error", err.Error())
}
