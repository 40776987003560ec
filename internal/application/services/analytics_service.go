package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/commerce"
	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/caching"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/coursesignal/coursesignal-go/pkg/config"
)

// Window is a half-open [Since, Until) reporting interval in UTC.
type Window struct {
	Since time.Time
	Until time.Time
}

// Prior returns the immediately preceding window of identical length.
func (w Window) Prior() Window {
	length := w.Until.Sub(w.Since)
	return Window{Since: w.Since.Add(-length), Until: w.Since}
}

// TrendDeltas are period-over-period percentage changes. A zero prior value
// yields a defined 0 rather than a division error.
type TrendDeltas struct {
	Revenue       float64 `json:"revenue"`
	Buyers        float64 `json:"buyers"`
	Purchases     float64 `json:"purchases"`
	AvgOrderValue float64 `json:"avgOrderValue"`
}

// Summary is the top-line rollup for a window, matched and unmatched alike.
type Summary struct {
	TotalRevenueCents  int64       `json:"totalRevenueCents"`
	TotalBuyers        int         `json:"totalBuyers"`
	TotalPurchases     int         `json:"totalPurchases"`
	AvgOrderValueCents int64       `json:"avgOrderValueCents"`
	Trends             TrendDeltas `json:"trends"`
}

// SourceMetrics is one row of the per-source breakdown. The grouping key is
// the last-touch source of matched purchases; unmatched purchases carry no
// source and are excluded here.
type SourceMetrics struct {
	Source                 string  `json:"source"`
	Visitors               int     `json:"visitors"`
	RevenueCents           int64   `json:"revenueCents"`
	Buyers                 int     `json:"buyers"`
	Purchases              int     `json:"purchases"`
	ConversionRate         float64 `json:"conversionRate"`
	AvgOrderValueCents     int64   `json:"avgOrderValueCents"`
	RevenuePerVisitorCents int64   `json:"revenuePerVisitorCents"`
}

// LaunchReport bundles every aggregate a launch dashboard needs.
type LaunchReport struct {
	Launch              *commerce.Launch      `json:"launch"`
	Status              commerce.LaunchStatus `json:"status"`
	Summary             Summary               `json:"summary"`
	Sources             []SourceMetrics       `json:"sources"`
	MatchRate           float64               `json:"matchRate"`
	RevenueGoalProgress *float64              `json:"revenueGoalProgress,omitempty"`
	SalesGoalProgress   *float64              `json:"salesGoalProgress,omitempty"`
}

const directSource = "direct"

// AnalyticsService rolls purchases and touches up into dashboard aggregates.
// Every operation is a pure read; computed windows are cached briefly since
// dashboards poll the same ranges.
type AnalyticsService struct {
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	cache       *caching.AnalyticsCache
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(logger *logging.ChanneledLogger, perfTracker *performance.Tracker, cache *caching.AnalyticsCache) *AnalyticsService {
	return &AnalyticsService{logger: logger, perfTracker: perfTracker, cache: cache}
}

// Summarize computes the top-line rollup for a window with trends against
// the immediately preceding window of identical length.
func (s *AnalyticsService) Summarize(tenantCtx *tenant.Context, window Window) (*Summary, error) {
	marker := s.perfTracker.StartOperation("analytics_summarize", tenantCtx.TenantID)
	defer marker.Complete()

	if err := validateWindow(window); err != nil {
		marker.SetError(err)
		return nil, err
	}

	cacheKey := caching.WindowKey("summary", window.Since, window.Until)
	if cached, ok := s.cache.Get(tenantCtx.TenantID, cacheKey); ok {
		marker.SetSuccess(true)
		marker.AddMetadata("cacheHit", true)
		summary := cached.(Summary)
		return &summary, nil
	}

	purchases, err := tenantCtx.PurchaseRepo().FindInRange(window.Since, window.Until)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("window load failed: %w", err)
	}
	prior := window.Prior()
	priorPurchases, err := tenantCtx.PurchaseRepo().FindInRange(prior.Since, prior.Until)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("prior window load failed: %w", err)
	}

	summary := summarize(purchases, priorPurchases)
	s.cache.Set(tenantCtx.TenantID, cacheKey, summary, config.AnalyticsCacheTTL)
	marker.SetSuccess(true)
	s.logger.Analytics().Debug("Window summarized",
		"tenantId", tenantCtx.TenantID,
		"purchases", summary.TotalPurchases,
		"revenueCents", summary.TotalRevenueCents,
		"duration", time.Since(marker.StartTime))
	return &summary, nil
}

// BySource computes the per-source breakdown for a window.
func (s *AnalyticsService) BySource(tenantCtx *tenant.Context, window Window) ([]SourceMetrics, error) {
	marker := s.perfTracker.StartOperation("analytics_by_source", tenantCtx.TenantID)
	defer marker.Complete()

	if err := validateWindow(window); err != nil {
		marker.SetError(err)
		return nil, err
	}

	cacheKey := caching.WindowKey("sources", window.Since, window.Until)
	if cached, ok := s.cache.Get(tenantCtx.TenantID, cacheKey); ok {
		marker.SetSuccess(true)
		marker.AddMetadata("cacheHit", true)
		return cached.([]SourceMetrics), nil
	}

	purchases, err := tenantCtx.PurchaseRepo().FindInRange(window.Since, window.Until)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("window load failed: %w", err)
	}
	touches, err := tenantCtx.TouchRepo().FindInRange(window.Since, window.Until)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("touch window load failed: %w", err)
	}

	sources := groupBySource(purchases, touches)
	s.cache.Set(tenantCtx.TenantID, cacheKey, sources, config.AnalyticsCacheTTL)
	marker.SetSuccess(true)
	return sources, nil
}

// MatchRate computes matched purchases over all purchases for a window, as a
// percentage. Unmatched purchases count in the denominator.
func (s *AnalyticsService) MatchRate(tenantCtx *tenant.Context, window Window) (float64, error) {
	if err := validateWindow(window); err != nil {
		return 0, err
	}

	purchases, err := tenantCtx.PurchaseRepo().FindInRange(window.Since, window.Until)
	if err != nil {
		return 0, fmt.Errorf("window load failed: %w", err)
	}
	return computeMatchRate(purchases), nil
}

// RecentPurchases returns the newest purchases, clamped to the configured
// maximum.
func (s *AnalyticsService) RecentPurchases(tenantCtx *tenant.Context, limit int) ([]*commerce.Purchase, error) {
	if limit <= 0 {
		limit = config.RecentPurchasesDefLimit
	}
	if limit > config.RecentPurchasesMaxLimit {
		limit = config.RecentPurchasesMaxLimit
	}
	purchases, err := tenantCtx.PurchaseRepo().FindRecent(limit)
	if err != nil {
		return nil, fmt.Errorf("recent purchases load failed: %w", err)
	}
	return purchases, nil
}

// LaunchAnalytics computes the summary aggregates scoped to one launch's
// inclusive window, plus goal progress.
func (s *AnalyticsService) LaunchAnalytics(tenantCtx *tenant.Context, launchID string) (*LaunchReport, error) {
	marker := s.perfTracker.StartOperation("launch_analytics", tenantCtx.TenantID)
	defer marker.Complete()

	launch, err := tenantCtx.LaunchRepo().FindByID(launchID)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("launch load failed: %w", err)
	}
	if launch == nil {
		marker.SetError(ErrLaunchNotFound)
		return nil, ErrLaunchNotFound
	}
	return s.buildLaunchReport(tenantCtx, launch, marker)
}

// SharedLaunchAnalytics resolves a public share token to its launch report.
func (s *AnalyticsService) SharedLaunchAnalytics(tenantCtx *tenant.Context, shareToken string) (*LaunchReport, error) {
	marker := s.perfTracker.StartOperation("shared_launch_analytics", tenantCtx.TenantID)
	defer marker.Complete()

	launch, err := tenantCtx.LaunchRepo().FindByShareToken(shareToken)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("launch load failed: %w", err)
	}
	if launch == nil {
		marker.SetError(ErrSharingNotEnabled)
		return nil, ErrSharingNotEnabled
	}
	return s.buildLaunchReport(tenantCtx, launch, marker)
}

func (s *AnalyticsService) buildLaunchReport(tenantCtx *tenant.Context, launch *commerce.Launch, marker *performance.Marker) (*LaunchReport, error) {
	// The launch window is inclusive of its end instant; fetch one step wide
	// and filter with Contains.
	fetched, err := tenantCtx.PurchaseRepo().FindInRange(launch.StartDate, launch.EndDate.Add(time.Second))
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("launch window load failed: %w", err)
	}
	purchases := make([]*commerce.Purchase, 0, len(fetched))
	for _, p := range fetched {
		if launch.Contains(p.PurchasedAt) {
			purchases = append(purchases, p)
		}
	}

	priorWindow := Window{Since: launch.StartDate, Until: launch.EndDate}.Prior()
	priorPurchases, err := tenantCtx.PurchaseRepo().FindInRange(priorWindow.Since, priorWindow.Until)
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("prior window load failed: %w", err)
	}

	touches, err := tenantCtx.TouchRepo().FindInRange(launch.StartDate, launch.EndDate.Add(time.Second))
	if err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("touch window load failed: %w", err)
	}

	report := &LaunchReport{
		Launch:    launch,
		Status:    launch.StatusAt(time.Now().UTC()),
		Summary:   summarize(purchases, priorPurchases),
		Sources:   groupBySource(purchases, touches),
		MatchRate: computeMatchRate(purchases),
	}
	if launch.RevenueGoalCents != nil && *launch.RevenueGoalCents > 0 {
		progress := float64(report.Summary.TotalRevenueCents) / float64(*launch.RevenueGoalCents) * 100
		report.RevenueGoalProgress = &progress
	}
	if launch.SalesGoal != nil && *launch.SalesGoal > 0 {
		progress := float64(report.Summary.TotalPurchases) / float64(*launch.SalesGoal) * 100
		report.SalesGoalProgress = &progress
	}

	marker.SetSuccess(true)
	s.logger.Analytics().Debug("Launch report built",
		"tenantId", tenantCtx.TenantID,
		"launchId", launch.ID,
		"purchases", report.Summary.TotalPurchases,
		"duration", time.Since(marker.StartTime))
	return report, nil
}

// summarize is the pure top-line reduction. Unmatched purchases are included;
// total revenue always reconciles to the sum of all purchases regardless of
// attribution success.
func summarize(current, prior []*commerce.Purchase) Summary {
	curRevenue, curBuyers, curCount := reducePurchases(current)
	priorRevenue, priorBuyers, priorCount := reducePurchases(prior)

	summary := Summary{
		TotalRevenueCents: curRevenue,
		TotalBuyers:       curBuyers,
		TotalPurchases:    curCount,
	}
	if curCount > 0 {
		summary.AvgOrderValueCents = curRevenue / int64(curCount)
	}

	var curAOV, priorAOV float64
	if curCount > 0 {
		curAOV = float64(curRevenue) / float64(curCount)
	}
	if priorCount > 0 {
		priorAOV = float64(priorRevenue) / float64(priorCount)
	}

	summary.Trends = TrendDeltas{
		Revenue:       trend(float64(curRevenue), float64(priorRevenue)),
		Buyers:        trend(float64(curBuyers), float64(priorBuyers)),
		Purchases:     trend(float64(curCount), float64(priorCount)),
		AvgOrderValue: trend(curAOV, priorAOV),
	}
	return summary
}

func reducePurchases(purchases []*commerce.Purchase) (revenueCents int64, buyers, count int) {
	buyerEmails := make(map[string]struct{})
	for _, p := range purchases {
		revenueCents += p.AmountCents
		buyerEmails[strings.ToLower(p.Email)] = struct{}{}
		count++
	}
	return revenueCents, len(buyerEmails), count
}

// trend is (current − prior) / prior × 100; a zero prior yields 0 by policy.
func trend(current, prior float64) float64 {
	if prior == 0 {
		return 0
	}
	return (current - prior) / prior * 100
}

// groupBySource groups matched purchases by last-touch source. The visitors
// denominator for a source counts distinct visitors whose last in-window
// touch carried that source, not purchase counts. A nil source buckets as
// "direct". Zero denominators yield defined-zero rates.
func groupBySource(purchases []*commerce.Purchase, touches []*visitor.Touch) []SourceMetrics {
	visitorsBySource := make(map[string]int)
	lastTouchByVisitor := make(map[string]*visitor.Touch)
	for _, t := range touches {
		prev, seen := lastTouchByVisitor[t.VisitorID]
		if !seen || !t.CreatedAt.Before(prev.CreatedAt) {
			lastTouchByVisitor[t.VisitorID] = t
		}
	}
	for _, t := range lastTouchByVisitor {
		visitorsBySource[sourceKey(t.Source)]++
	}

	type bucket struct {
		revenueCents int64
		purchases    int
		buyerEmails  map[string]struct{}
	}
	buckets := make(map[string]*bucket)
	for _, p := range purchases {
		if p.Status != commerce.StatusMatched {
			continue
		}
		key := sourceKey(p.LastTouch.Source)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{buyerEmails: make(map[string]struct{})}
			buckets[key] = b
		}
		b.revenueCents += p.AmountCents
		b.purchases++
		b.buyerEmails[strings.ToLower(p.Email)] = struct{}{}
	}

	metrics := make([]SourceMetrics, 0, len(buckets))
	for key, b := range buckets {
		row := SourceMetrics{
			Source:       key,
			Visitors:     visitorsBySource[key],
			RevenueCents: b.revenueCents,
			Buyers:       len(b.buyerEmails),
			Purchases:    b.purchases,
		}
		if b.purchases > 0 {
			row.AvgOrderValueCents = b.revenueCents / int64(b.purchases)
		}
		if row.Visitors > 0 {
			row.ConversionRate = float64(row.Buyers) / float64(row.Visitors) * 100
			row.RevenuePerVisitorCents = b.revenueCents / int64(row.Visitors)
		}
		metrics = append(metrics, row)
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].RevenueCents != metrics[j].RevenueCents {
			return metrics[i].RevenueCents > metrics[j].RevenueCents
		}
		return metrics[i].Source < metrics[j].Source
	})
	return metrics
}

func sourceKey(source *string) string {
	if source == nil || *source == "" {
		return directSource
	}
	return *source
}

// computeMatchRate is matched over total, as a percentage. Empty windows
// yield 0 rather than a division error.
func computeMatchRate(purchases []*commerce.Purchase) float64 {
	if len(purchases) == 0 {
		return 0
	}
	matched := 0
	for _, p := range purchases {
		if p.Status == commerce.StatusMatched {
			matched++
		}
	}
	return float64(matched) / float64(len(purchases)) * 100
}

func validateWindow(window Window) error {
	if window.Since.IsZero() || window.Until.IsZero() {
		return fmt.Errorf("%w: since and until are required", ErrInvalidWindow)
	}
	if !window.Until.After(window.Since) {
		return fmt.Errorf("%w: until must be after since", ErrInvalidWindow)
	}
	return nil
}
