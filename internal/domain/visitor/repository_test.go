package visitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouchSnapshotIsDirect(t *testing.T) {
	src := "youtube"
	empty := ""

	assert.True(t, TouchSnapshot{}.IsDirect())
	assert.True(t, TouchSnapshot{Source: &empty}.IsDirect())
	assert.False(t, TouchSnapshot{Source: &src}.IsDirect())
}

func TestTouchSnapshot(t *testing.T) {
	src := "newsletter"
	medium := "email"
	touch := &Touch{
		ID:          "t1",
		VisitorID:   "v1",
		Source:      &src,
		Medium:      &medium,
		Referrer:    &src,
		LandingPage: "/offer",
		CreatedAt:   time.Now(),
	}

	snap := touch.Snapshot()
	require.NotNil(t, snap.Source)
	assert.Equal(t, "newsletter", *snap.Source)
	require.NotNil(t, snap.Medium)
	assert.Equal(t, "email", *snap.Medium)
	assert.Nil(t, snap.Campaign)
}
