package services

import (
	"testing"
	"time"

	"github.com/coursesignal/coursesignal-go/internal/domain/visitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touchAt(visitorID, source string, created time.Time) *visitor.Touch {
	t := &visitor.Touch{VisitorID: visitorID, LandingPage: "/", CreatedAt: created}
	if source != "" {
		t.Source = strPtr(source)
	}
	return t
}

func TestAttributeVisitorLastTouchBeforePurchase(t *testing.T) {
	identity := &visitor.Identity{
		ID:         "v1",
		FirstTouch: visitor.TouchSnapshot{Source: strPtr("youtube")},
	}
	touches := []*visitor.Touch{
		touchAt("v1", "youtube", at("2024-11-01T00:00:00Z")),
		touchAt("v1", "newsletter", at("2024-11-04T00:00:00Z")),
		touchAt("v1", "instagram", at("2024-11-05T00:00:00Z")), // after purchase
	}
	purchasedAt := at("2024-11-04T12:00:00Z")

	got := attributeVisitor(identity, touches, purchasedAt, 90)

	require.NotNil(t, got.LastTouch.Source)
	assert.Equal(t, "newsletter", *got.LastTouch.Source)
	require.NotNil(t, got.FirstTouch.Source)
	assert.Equal(t, "youtube", *got.FirstTouch.Source)
}

func TestAttributeVisitorFirstTouchIsFixedSnapshot(t *testing.T) {
	// The identity snapshot wins even when the touch log starts earlier;
	// first-touch is never recomputed.
	identity := &visitor.Identity{
		ID:         "v1",
		FirstTouch: visitor.TouchSnapshot{Source: strPtr("podcast")},
	}
	touches := []*visitor.Touch{
		touchAt("v1", "google", at("2024-10-01T00:00:00Z")),
	}

	got := attributeVisitor(identity, touches, at("2024-10-02T00:00:00Z"), 90)

	require.NotNil(t, got.FirstTouch.Source)
	assert.Equal(t, "podcast", *got.FirstTouch.Source)
}

func TestAttributeVisitorLookbackExcludesStaleTouches(t *testing.T) {
	identity := &visitor.Identity{
		ID:         "v1",
		FirstTouch: visitor.TouchSnapshot{Source: strPtr("youtube")},
	}
	touches := []*visitor.Touch{
		touchAt("v1", "facebook", at("2024-01-01T00:00:00Z")),
	}
	purchasedAt := at("2024-11-01T00:00:00Z")

	bounded := attributeVisitor(identity, touches, purchasedAt, 90)
	require.NotNil(t, bounded.LastTouch.Source)
	assert.Equal(t, "youtube", *bounded.LastTouch.Source, "stale touch falls back to first-touch snapshot")

	unbounded := attributeVisitor(identity, touches, purchasedAt, 0)
	require.NotNil(t, unbounded.LastTouch.Source)
	assert.Equal(t, "facebook", *unbounded.LastTouch.Source, "lookback 0 means unbounded")
}

func TestAttributeVisitorEmptyTouchLogYieldsDirect(t *testing.T) {
	// Identify-only visitor: no touches, empty first-touch snapshot.
	identity := &visitor.Identity{ID: "v1"}

	got := attributeVisitor(identity, nil, at("2024-11-01T00:00:00Z"), 90)

	assert.True(t, got.FirstTouch.IsDirect())
	assert.True(t, got.LastTouch.IsDirect())
}

func TestAttributeVisitorTimestampTieFavorsLaterRecord(t *testing.T) {
	identity := &visitor.Identity{ID: "v1"}
	ts := at("2024-11-03T00:00:00Z")
	touches := []*visitor.Touch{
		{VisitorID: "v1", Source: strPtr("a"), CreatedAt: ts},
		{VisitorID: "v1", Source: strPtr("b"), CreatedAt: ts},
	}

	got := attributeVisitor(identity, touches, at("2024-11-04T00:00:00Z"), 90)

	require.NotNil(t, got.LastTouch.Source)
	assert.Equal(t, "b", *got.LastTouch.Source)
}

func TestAttributeVisitorPurchaseBeforeAnyTouch(t *testing.T) {
	identity := &visitor.Identity{
		ID:         "v1",
		FirstTouch: visitor.TouchSnapshot{Source: strPtr("youtube")},
	}
	touches := []*visitor.Touch{
		touchAt("v1", "newsletter", at("2024-11-10T00:00:00Z")),
	}

	got := attributeVisitor(identity, touches, at("2024-11-01T00:00:00Z"), 90)

	require.NotNil(t, got.LastTouch.Source)
	assert.Equal(t, "youtube", *got.LastTouch.Source)
}

func TestAttributionServiceAttributeLoadsTouchLog(t *testing.T) {
	identity := &visitor.Identity{
		ID:         "v1",
		FirstTouch: visitor.TouchSnapshot{Source: strPtr("youtube")},
	}
	touches := &fakeTouchRepo{touches: []*visitor.Touch{
		touchAt("v1", "youtube", at("2024-11-01T00:00:00Z")),
		touchAt("v1", "newsletter", at("2024-11-04T00:00:00Z")),
	}}

	got, err := NewAttributionService(newTestLogger(t)).Attribute("acme", touches, identity, at("2024-11-04T12:00:00Z"), 90)
	require.NoError(t, err)
	require.NotNil(t, got.FirstTouch.Source)
	assert.Equal(t, "youtube", *got.FirstTouch.Source)
	require.NotNil(t, got.LastTouch.Source)
	assert.Equal(t, "newsletter", *got.LastTouch.Source)
}
