package commerce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ts(value string) time.Time {
	parsed, _ := time.Parse(time.RFC3339, value)
	return parsed
}

func TestLaunchStatusAt(t *testing.T) {
	launch := &Launch{
		Name:      "Black Friday",
		StartDate: ts("2024-11-24T00:00:00Z"),
		EndDate:   ts("2024-11-27T23:59:59Z"),
	}

	tests := []struct {
		name string
		now  time.Time
		want LaunchStatus
	}{
		{name: "day before start", now: ts("2024-11-23T12:00:00Z"), want: LaunchUpcoming},
		{name: "instant before start", now: ts("2024-11-23T23:59:59Z"), want: LaunchUpcoming},
		{name: "start instant", now: ts("2024-11-24T00:00:00Z"), want: LaunchActive},
		{name: "mid window", now: ts("2024-11-25T18:00:00Z"), want: LaunchActive},
		{name: "end instant", now: ts("2024-11-27T23:59:59Z"), want: LaunchActive},
		{name: "just after end", now: ts("2024-11-28T00:00:00Z"), want: LaunchCompleted},
		{name: "long after end", now: ts("2025-01-01T00:00:00Z"), want: LaunchCompleted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, launch.StatusAt(tt.now))
		})
	}
}

func TestLaunchArchivedIsSticky(t *testing.T) {
	launch := &Launch{
		StartDate: ts("2024-11-24T00:00:00Z"),
		EndDate:   ts("2024-11-27T23:59:59Z"),
		Archived:  true,
	}

	assert.Equal(t, LaunchArchived, launch.StatusAt(ts("2024-11-23T00:00:00Z")))
	assert.Equal(t, LaunchArchived, launch.StatusAt(ts("2024-11-25T00:00:00Z")))
	assert.Equal(t, LaunchArchived, launch.StatusAt(ts("2024-12-25T00:00:00Z")))
}

func TestLaunchContainsIsInclusive(t *testing.T) {
	launch := &Launch{
		StartDate: ts("2024-11-24T00:00:00Z"),
		EndDate:   ts("2024-11-27T23:59:59Z"),
	}

	assert.False(t, launch.Contains(ts("2024-11-23T23:59:59Z")))
	assert.True(t, launch.Contains(ts("2024-11-24T00:00:00Z")))
	assert.True(t, launch.Contains(ts("2024-11-26T12:00:00Z")))
	assert.True(t, launch.Contains(ts("2024-11-27T23:59:59Z")))
	assert.False(t, launch.Contains(ts("2024-11-28T00:00:00Z")))
}
