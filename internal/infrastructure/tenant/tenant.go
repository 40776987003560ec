package tenant

import (
	"fmt"
	"sync"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// Manager coordinates tenant detection and context creation
type Manager struct {
	detector *Detector
	logger   *logging.ChanneledLogger

	// Active tenant contexts keyed by tenant ID. Contexts are created lazily
	// on first request and reused for the lifetime of the process.
	contexts   map[string]*Context
	contextsMu sync.RWMutex

	// Per-tenant creation locks so concurrent first requests for the same
	// tenant do not race to open the same database.
	creationLocks   map[string]*sync.Mutex
	creationLocksMu sync.Mutex
}

// NewManager creates a new tenant manager
func NewManager(logger *logging.ChanneledLogger) (*Manager, error) {
	detector, err := NewDetector(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant detector: %w", err)
	}

	return &Manager{
		detector:      detector,
		logger:        logger,
		contexts:      make(map[string]*Context),
		creationLocks: make(map[string]*sync.Mutex),
	}, nil
}

// GetLogger returns the manager's logger
func (m *Manager) GetLogger() *logging.ChanneledLogger {
	return m.logger
}

// GetDetector returns the tenant detector
func (m *Manager) GetDetector() *Detector {
	return m.detector
}

// GetContext resolves the tenant for an incoming request and returns its
// context, creating it on first use.
func (m *Manager) GetContext(c *gin.Context) (*Context, error) {
	tenantID, err := m.detector.DetectTenant(c)
	if err != nil {
		return nil, err
	}
	return m.NewContextFromID(tenantID)
}

// NewContextFromID returns the context for a known tenant ID, creating it on
// first use. Callers outside the request path (startup, backfill workers)
// use this directly.
func (m *Manager) NewContextFromID(tenantID string) (*Context, error) {
	m.contextsMu.RLock()
	ctx, exists := m.contexts[tenantID]
	m.contextsMu.RUnlock()
	if exists {
		return ctx, nil
	}

	lock := m.getCreationLock(tenantID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the creation lock; another goroutine may have won.
	m.contextsMu.RLock()
	ctx, exists = m.contexts[tenantID]
	m.contextsMu.RUnlock()
	if exists {
		return ctx, nil
	}

	ctx, err := m.createContext(tenantID)
	if err != nil {
		return nil, err
	}

	m.contextsMu.Lock()
	m.contexts[tenantID] = ctx
	m.contextsMu.Unlock()

	return ctx, nil
}

func (m *Manager) getCreationLock(tenantID string) *sync.Mutex {
	m.creationLocksMu.Lock()
	defer m.creationLocksMu.Unlock()

	lock, exists := m.creationLocks[tenantID]
	if !exists {
		lock = &sync.Mutex{}
		m.creationLocks[tenantID] = lock
	}
	return lock
}

func (m *Manager) createContext(tenantID string) (*Context, error) {
	start := time.Now()

	config, err := LoadTenantConfig(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config for tenant %s: %w", tenantID, err)
	}

	db, err := NewDatabase(config, m.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for tenant %s: %w", tenantID, err)
	}

	ctx := &Context{
		TenantID: tenantID,
		Config:   config,
		Database: db,
		Status:   config.Status,
		Logger:   m.logger,
	}

	if m.logger != nil {
		m.logger.Tenant().Info("Tenant context created",
			"tenantId", tenantID,
			"status", config.Status,
			"database", db.GetConnectionInfo(),
			"duration", time.Since(start).String())
	}

	return ctx, nil
}

// PreActivateAllTenants eagerly creates contexts for every active tenant in
// the registry so first requests do not pay connection setup cost.
func (m *Manager) PreActivateAllTenants() error {
	registry := m.detector.GetRegistry()
	if registry == nil {
		return fmt.Errorf("tenant registry not loaded")
	}

	activated := 0
	for tenantID, info := range registry.Tenants {
		if info.Status != "active" {
			if m.logger != nil {
				m.logger.Tenant().Debug("Skipping pre-activation for inactive tenant",
					"tenantId", tenantID, "status", info.Status)
			}
			continue
		}

		if _, err := m.NewContextFromID(tenantID); err != nil {
			if m.logger != nil {
				m.logger.Tenant().Error("Failed to pre-activate tenant",
					"tenantId", tenantID, "error", err.Error())
			}
			return fmt.Errorf("pre-activation failed for tenant %s: %w", tenantID, err)
		}
		activated++
	}

	if m.logger != nil {
		m.logger.Startup().Info("Tenant pre-activation complete",
			"activated", activated,
			"registered", len(registry.Tenants))
	}

	return nil
}

// ValidatePreActivation verifies each pre-activated tenant can answer a
// trivial query against its own database.
func (m *Manager) ValidatePreActivation() error {
	m.contextsMu.RLock()
	defer m.contextsMu.RUnlock()

	for tenantID, ctx := range m.contexts {
		var one int
		if err := ctx.Database.Conn.QueryRow("SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("validation query failed for tenant %s: %w", tenantID, err)
		}
	}
	return nil
}

// GetActiveTenantCount returns the number of tenants with live contexts
func (m *Manager) GetActiveTenantCount() int {
	m.contextsMu.RLock()
	defer m.contextsMu.RUnlock()
	return len(m.contexts)
}

// GetActiveTenantIDs returns the IDs of tenants with live contexts
func (m *Manager) GetActiveTenantIDs() []string {
	m.contextsMu.RLock()
	defer m.contextsMu.RUnlock()

	ids := make([]string, 0, len(m.contexts))
	for id := range m.contexts {
		ids = append(ids, id)
	}
	return ids
}

// Close tears down all tenant contexts and the shared connection pools
func (m *Manager) Close() error {
	m.contextsMu.Lock()
	defer m.contextsMu.Unlock()

	var firstErr error
	for tenantID, ctx := range m.contexts {
		if err := ctx.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close tenant %s: %w", tenantID, err)
		}
		delete(m.contexts, tenantID)
	}

	if err := CloseAllPools(); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
