// Package container provides dependency injection for all singleton services
package container

import (
	"github.com/coursesignal/coursesignal-go/internal/application/services"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/caching"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/email"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/messaging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Attribution core services (stateless singletons)
	TrackingService    *services.TrackingService
	ResolverService    *services.ResolverService
	AttributionService *services.AttributionService
	IngestionService   *services.IngestionService
	AnalyticsService   *services.AnalyticsService
	LaunchService      *services.LaunchService
	BackfillService    *services.BackfillService
	AuthService        *services.AuthService
	ReportService      *services.ReportService
	Provisioning       *services.ProvisioningService

	// Infrastructure dependencies
	TenantManager  *tenant.Manager
	Broadcaster    *messaging.PurchaseBroadcaster
	AnalyticsCache *caching.AnalyticsCache
	EmailService   email.Service
	Logger         *logging.ChanneledLogger
	PerfTracker    *performance.Tracker
}

// NewContainer creates and wires all singleton services
func NewContainer(
	tenantManager *tenant.Manager,
	emailService email.Service,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *Container {
	broadcaster := messaging.NewPurchaseBroadcaster(logger)
	analyticsCache := caching.NewAnalyticsCache()
	analytics := services.NewAnalyticsService(logger, perfTracker, analyticsCache)
	resolver := services.NewResolverService(logger)
	attributor := services.NewAttributionService(logger)

	return &Container{
		TrackingService:    services.NewTrackingService(logger, perfTracker),
		ResolverService:    resolver,
		AttributionService: attributor,
		IngestionService:   services.NewIngestionService(logger, perfTracker, broadcaster, analyticsCache, resolver, attributor),
		AnalyticsService:   analytics,
		LaunchService:      services.NewLaunchService(logger),
		BackfillService:    services.NewBackfillService(logger, perfTracker, analyticsCache, resolver, attributor),
		AuthService:        services.NewAuthService(logger),
		ReportService:      services.NewReportService(logger, emailService, analytics),
		Provisioning:       services.NewProvisioningService(tenantManager, emailService, logger, perfTracker),

		TenantManager:  tenantManager,
		Broadcaster:    broadcaster,
		AnalyticsCache: analyticsCache,
		EmailService:   emailService,
		Logger:         logger,
		PerfTracker:    perfTracker,
	}
}
