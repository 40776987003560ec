package caching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsCacheRoundTrip(t *testing.T) {
	cache := NewAnalyticsCache()
	key := WindowKey("summary", time.Unix(1000, 0), time.Unix(2000, 0))

	_, ok := cache.Get("acme", key)
	assert.False(t, ok)

	cache.Set("acme", key, 42, time.Minute)
	got, ok := cache.Get("acme", key)
	require.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestAnalyticsCacheTenantIsolation(t *testing.T) {
	cache := NewAnalyticsCache()
	key := WindowKey("summary", time.Unix(1000, 0), time.Unix(2000, 0))

	cache.Set("acme", key, "acme-value", time.Minute)
	cache.Set("other", key, "other-value", time.Minute)

	cache.InvalidateTenant("acme")

	_, ok := cache.Get("acme", key)
	assert.False(t, ok)
	got, ok := cache.Get("other", key)
	require.True(t, ok)
	assert.Equal(t, "other-value", got)
}

func TestAnalyticsCacheExpiry(t *testing.T) {
	cache := NewAnalyticsCache()
	key := WindowKey("sources", time.Unix(1000, 0), time.Unix(2000, 0))

	cache.Set("acme", key, "stale", -time.Second)
	_, ok := cache.Get("acme", key)
	assert.False(t, ok, "negative TTL stores nothing")

	cache.Set("acme", key, "fresh", time.Nanosecond)
	time.Sleep(5 * time.Millisecond)
	_, ok = cache.Get("acme", key)
	assert.False(t, ok)
}

func TestAnalyticsCacheSweep(t *testing.T) {
	cache := NewAnalyticsCache()
	cache.Set("acme", "a", 1, time.Nanosecond)
	cache.Set("acme", "b", 2, time.Minute)
	time.Sleep(5 * time.Millisecond)

	evicted := cache.Sweep()

	assert.Equal(t, 1, evicted)
	_, ok := cache.Get("acme", "b")
	assert.True(t, ok)
}

func TestWindowKeyDistinguishesKindAndRange(t *testing.T) {
	since := time.Unix(1000, 0)
	until := time.Unix(2000, 0)

	assert.NotEqual(t, WindowKey("summary", since, until), WindowKey("sources", since, until))
	assert.NotEqual(t, WindowKey("summary", since, until), WindowKey("summary", since, until.Add(time.Second)))
	assert.Equal(t, WindowKey("summary", since, until), WindowKey("summary", since.UTC(), until.UTC()))
}
