// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/application/container"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/database"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/email"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/performance"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/security"
	"github.com/coursesignal/coursesignal-go/internal/infrastructure/tenant"
	"github.com/coursesignal/coursesignal-go/internal/presentation/http/server"
	"github.com/coursesignal/coursesignal-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete multi-tenant startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	// Step 1: Initialize channeled logging
	log.Println("Initializing CourseSignal...")
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	// Step 2: Initialize tenant system
	logger.Startup().Info("Initializing tenant system")
	tenantManager, err := tenant.NewManager(logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tenant manager: %w", err)
	}

	// Step 3: Load tenant registry to discover all tenants
	registry, err := tenant.LoadTenantRegistry()
	if err != nil {
		return fmt.Errorf("failed to load tenant registry: %w", err)
	}

	if len(registry.Tenants) == 0 {
		logger.Startup().Info("No tenants found in registry - creating default tenant")
		if err := tenant.RegisterTenant("default"); err != nil {
			return fmt.Errorf("failed to register default tenant: %w", err)
		}
		registry, err = tenant.LoadTenantRegistry()
		if err != nil {
			return fmt.Errorf("failed to reload registry: %w", err)
		}
	}

	logger.Startup().Info("Tenant registry loaded", "tenantCount", len(registry.Tenants))

	// Single-tenant installs serve everything through "default"; it skips
	// the reserved/activate flow and boots straight to active.
	if _, ok := registry.Tenants["default"]; ok {
		if err := ensureDefaultTenant(tenantManager, logger); err != nil {
			return fmt.Errorf("default tenant bootstrap failed: %w", err)
		}
	}

	// Step 4: Pre-activate all active tenants
	if err := tenantManager.PreActivateAllTenants(); err != nil {
		return fmt.Errorf("tenant pre-activation failed: %w", err)
	}

	// Step 5: Validate tenant database connections
	if err := tenantManager.ValidatePreActivation(); err != nil {
		return fmt.Errorf("tenant validation failed: %w", err)
	}

	activeCount := tenantManager.GetActiveTenantCount()
	logger.Startup().Info("Tenant connections verified", "activeTenants", activeCount)

	// Step 6: Initialize email delivery (optional; reports degrade gracefully)
	var emailService email.Service
	if svc, err := email.NewService(); err != nil {
		logger.Startup().Warn("Email service disabled", "reason", err.Error())
	} else {
		emailService = svc
		logger.Startup().Info("Email service initialized")
	}

	// Step 7: Initialize performance tracking
	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())

	// Step 8: Create dependency injection container
	appContainer := container.NewContainer(tenantManager, emailService, logger, perfTracker)
	logger.Startup().Info("Dependency injection container created with singleton services")

	// Step 9: Start background workers
	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	go appContainer.Broadcaster.Run()
	go appContainer.AnalyticsCache.StartSweeper(ctx, config.AnalyticsCacheSweepInterval, logger)
	logger.Startup().Info("Purchase event broadcaster and cache sweeper started")

	// Step 10: Start HTTP server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	httpServer := server.New(port, appContainer)

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"activeTenants", activeCount,
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	logger.Shutdown().Info("Closing tenant manager...")
	if err := tenantManager.Close(); err != nil {
		logger.Shutdown().Error("Error closing tenant manager", "error", err.Error())
	} else {
		logger.Shutdown().Info("Tenant manager closed successfully")
	}

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// ensureDefaultTenant writes a ready-to-serve config and schema for the
// "default" tenant on first boot, and marks a pre-existing default config
// active. Provisioned tenants require email activation instead.
func ensureDefaultTenant(tenantManager *tenant.Manager, logger *logging.ChanneledLogger) error {
	if cfg, err := tenant.LoadTenantConfig("default"); err == nil {
		if cfg.Status == "active" {
			return nil
		}
		cfg.Status = "active"
		return tenant.SaveTenantConfig(cfg)
	}

	jwtSecret, err := security.GenerateSecureKey(64)
	if err != nil {
		return fmt.Errorf("secret generation failed: %w", err)
	}
	if err := tenant.SaveTenantConfig(&tenant.Config{
		TenantID:  "default",
		Domains:   []string{"*"},
		Status:    "active",
		JWTSecret: jwtSecret,
	}); err != nil {
		return err
	}

	ctx, err := tenantManager.NewContextFromID("default")
	if err != nil {
		return err
	}
	if err := database.NewTableCreator().CreateSchema(ctx.Database.Conn); err != nil {
		return fmt.Errorf("schema creation failed: %w", err)
	}

	logger.Startup().Info("Default tenant initialized", "tenantId", "default")
	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
