// Package caching provides a tenant-isolated TTL cache for computed
// analytics aggregates. Dashboards poll the same windows repeatedly; caching
// the reductions keeps repeated reads off the per-tenant database.
package caching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/infrastructure/observability/logging"
)

type entry struct {
	value     any
	expiresAt time.Time
}

type tenantCache struct {
	entries map[string]entry
	mu      sync.RWMutex
}

// AnalyticsCache holds computed aggregates keyed per tenant. Tenant buckets
// are fully isolated; an invalidation never crosses tenants.
type AnalyticsCache struct {
	tenants map[string]*tenantCache
	mu      sync.RWMutex
}

// NewAnalyticsCache creates an empty analytics cache.
func NewAnalyticsCache() *AnalyticsCache {
	return &AnalyticsCache{tenants: make(map[string]*tenantCache)}
}

// WindowKey builds the cache key for an aggregate kind over a time window.
func WindowKey(kind string, since, until time.Time) string {
	return fmt.Sprintf("%s:%d:%d", kind, since.UTC().Unix(), until.UTC().Unix())
}

// Get returns a cached value when present and not expired.
func (c *AnalyticsCache) Get(tenantID, key string) (any, bool) {
	c.mu.RLock()
	bucket, ok := c.tenants[tenantID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	bucket.mu.RLock()
	defer bucket.mu.RUnlock()
	e, ok := bucket.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value with the given TTL. A non-positive TTL stores nothing.
func (c *AnalyticsCache) Set(tenantID, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	bucket, ok := c.tenants[tenantID]
	if !ok {
		bucket = &tenantCache{entries: make(map[string]entry)}
		c.tenants[tenantID] = bucket
	}
	c.mu.Unlock()

	bucket.mu.Lock()
	bucket.entries[key] = entry{value: value, expiresAt: time.Now().Add(ttl)}
	bucket.mu.Unlock()
}

// InvalidateTenant drops every cached aggregate for one tenant. Called when a
// purchase is ingested or a backfill rewrites attribution.
func (c *AnalyticsCache) InvalidateTenant(tenantID string) {
	c.mu.Lock()
	delete(c.tenants, tenantID)
	c.mu.Unlock()
}

// Sweep removes expired entries and empty tenant buckets, returning the
// number of entries evicted.
func (c *AnalyticsCache) Sweep() int {
	now := time.Now()
	evicted := 0

	c.mu.Lock()
	defer c.mu.Unlock()
	for tenantID, bucket := range c.tenants {
		bucket.mu.Lock()
		for key, e := range bucket.entries {
			if now.After(e.expiresAt) {
				delete(bucket.entries, key)
				evicted++
			}
		}
		empty := len(bucket.entries) == 0
		bucket.mu.Unlock()
		if empty {
			delete(c.tenants, tenantID)
		}
	}
	return evicted
}

// StartSweeper runs a periodic sweep until the context is cancelled. Run as
// a goroutine at startup.
func (c *AnalyticsCache) StartSweeper(ctx context.Context, interval time.Duration, logger *logging.ChanneledLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := c.Sweep(); evicted > 0 {
				logger.Analytics().Debug("Analytics cache swept", "evicted", evicted)
			}
		}
	}
}
