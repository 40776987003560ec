// Package performance provides performance tracking and monitoring capabilities
// for CourseSignal operations with multi-tenant support.
package performance

import (
	"fmt"
	"sync"
	"time"
)

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	markers map[string]*Marker // Active and completed markers by unique ID
	mu      sync.RWMutex       // Protects concurrent access
	started time.Time          // When tracking started
	config  *TrackerConfig     // Tracker configuration
	nextID  uint64
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers int `json:"maxMarkers"` // Maximum number of markers to retain
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers: 10000,
	}
}

// NewTracker creates a new performance tracker
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}

	return &Tracker{
		markers: make(map[string]*Marker),
		started: time.Now(),
		config:  config,
	}
}

// StartOperation begins tracking a new operation and returns its marker
func (t *Tracker) StartOperation(operation, tenantID string) *Marker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	markerID := fmt.Sprintf("%s:%s:%d", operation, tenantID, t.nextID)

	marker := &Marker{
		Operation: operation,
		TenantID:  tenantID,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
	}

	if len(t.markers) >= t.config.MaxMarkers {
		t.evictOldestLocked()
	}
	t.markers[markerID] = marker

	return marker
}

// evictOldestLocked drops the oldest retained marker. Caller holds mu.
func (t *Tracker) evictOldestLocked() {
	var oldestID string
	var oldestTime time.Time
	for id, m := range t.markers {
		if oldestID == "" || m.StartTime.Before(oldestTime) {
			oldestID = id
			oldestTime = m.StartTime
		}
	}
	if oldestID != "" {
		delete(t.markers, oldestID)
	}
}

// Summary aggregates completed markers per operation
type Summary struct {
	Operation    string        `json:"operation"`
	Count        int           `json:"count"`
	Failures     int           `json:"failures"`
	TotalTime    time.Duration `json:"totalTime"`
	AvgDuration  time.Duration `json:"avgDuration"`
	MaxDuration  time.Duration `json:"maxDuration"`
	LastObserved time.Time     `json:"lastObserved"`
}

// GetSummaries returns per-operation aggregates over retained markers
func (t *Tracker) GetSummaries() map[string]*Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	summaries := make(map[string]*Summary)
	for _, m := range t.markers {
		if !m.Completed {
			continue
		}
		s, ok := summaries[m.Operation]
		if !ok {
			s = &Summary{Operation: m.Operation}
			summaries[m.Operation] = s
		}
		s.Count++
		if !m.Success {
			s.Failures++
		}
		s.TotalTime += m.Duration
		if m.Duration > s.MaxDuration {
			s.MaxDuration = m.Duration
		}
		if m.EndTime.After(s.LastObserved) {
			s.LastObserved = m.EndTime
		}
	}

	for _, s := range summaries {
		if s.Count > 0 {
			s.AvgDuration = s.TotalTime / time.Duration(s.Count)
		}
	}

	return summaries
}

// Uptime reports how long the tracker has been running
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
